// Package host 实现 P2P 主机
//
// Host 是 Swarm、地址簿和事件总线的门面：
//
//	Host.Connect()
//	  ├─> AddressBook.AddAddrs()  // 记录地址
//	  └─> Swarm.DialPeer()        // 实际拨号
//
//	Host.NewStream()
//	  ├─> Swarm.NewStream()       // 直连优先
//	  └─> multistream-select      // 协议协商（客户端）
//
// 入站流由 Swarm 交给 Host，经 multistream-select 服务端协商后
// 路由到 SetStreamHandler 注册的处理器。
//
// 连接建立/断开以 types.EvtPeerConnected / types.EvtPeerDisconnected
// 发布到事件总线。
package host

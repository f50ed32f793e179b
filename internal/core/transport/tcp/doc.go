// Package tcp 实现 TCP 传输层
//
// tcp 需要配合安全层（Noise）和多路复用器（Yamux）使用，
// Dial 与 Accept 返回的都是经 Upgrader 升级后的连接。
//
// # 端口复用
//
// 启用 ReusePort（默认）时，监听 socket 和出站 socket 都设置
// SO_REUSEADDR/SO_REUSEPORT，出站连接从监听端口发起。这样：
//   - 对端（尤其是中继）观测到的本节点地址端口与监听端口一致
//   - 打洞时双方从各自的监听端口互相拨号，NAT 映射可以复用，
//     TCP 同时打开（simultaneous open）得以成立
//
// # 地址格式
//
//	/ip4/1.2.3.4/tcp/4001
//	/ip6/::1/tcp/4001
//	/dns4/relay.example.com/tcp/4001
package tcp

// Package swarm 管理传输层、监听器和已升级连接
//
// 同一节点可同时持有多条连接，典型场景是中继电路与打洞得到的直连并存：
//   - ConnsToPeer 按直连优先排序
//   - NewStream 在最优连接上开流，中继连接只作备用
//   - DialPeer 默认复用已有连接；WithForceDirectDial 要求新建直连
//
// 连接事件通过 SwarmNotifier 同步回调，回调实现不得阻塞。
package swarm

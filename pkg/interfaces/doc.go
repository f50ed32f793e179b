// Package interfaces 定义 natpunch 的公共接口
//
// 核心组件（中继、地址学习、打洞、gossip）只依赖本包描述的连接底座，
// 不直接依赖 internal/core 下的具体实现：
//   - host.go       - Host 网络主机（协议路由门面）
//   - swarm.go      - Swarm 连接群、Connection、Stream
//   - transport.go  - Transport 传输层、Listener
//   - upgrader.go   - Upgrader 连接升级（安全 + 多路复用）
//   - security.go   - SecureTransport 安全层
//   - muxer.go      - StreamMuxer 多路复用
//   - addrbook.go   - AddressBook 地址簿
//   - eventbus.go   - EventBus 事件总线
//   - context.go    - 拨号上下文选项
package interfaces

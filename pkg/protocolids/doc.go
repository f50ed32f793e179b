// Package protocolids 定义 natpunch 使用的全部协议 ID。
//
// 所有模块在需要协议 ID 时引用本包常量，不在其他位置定义字面量。
//
// 协议 ID 与 libp2p 保持一致，以便与其他实现互通：
//   - 系统协议: /ipfs/id/1.0.0, /ipfs/ping/1.0.0
//   - 中继协议: /libp2p/circuit/relay/0.2.0/{hop,stop}
//   - 打洞协议: /libp2p/dcutr
//   - 发布订阅: /meshsub/1.1.0, /meshsub/1.0.0
//   - 连接升级: /noise, /yamux/1.0.0
package protocolids

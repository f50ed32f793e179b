// Package proto 定义跨网络传输的协议消息（wire format）
//
// 每个子包对应一组 libp2p 兼容的 Protobuf 消息，手写 Marshal/Unmarshal，
// 基于 google.golang.org/protobuf/encoding/protowire：
//
//   - identify: /ipfs/id/1.0.0 Identify 消息
//   - relay: Circuit Relay v2 的 HopMessage / StopMessage
//   - holepunch: /libp2p/dcutr 的 HolePunch 消息
//   - gossipsub: /meshsub/1.1.0 的 RPC
//   - noise: Noise 握手 payload
//
// 流上的消息以 uvarint 长度前缀分隔，见 ReadDelimited / WriteDelimited。
//
// # 与 pkg/types 的区别
//
// pkg/lib/proto 定义网络协议消息，pkg/types 定义 Go 内部数据结构。
// 协议消息中的地址和节点 ID 保持原始字节，由使用方转换。
package proto

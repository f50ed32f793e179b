// Package multiaddr 实现自描述网络地址（multiaddr）
//
// 地址由有序的协议段组成，例如：
//
//	/ip4/203.0.113.7/tcp/4001/p2p/12D3KooW...
//	/ip4/203.0.113.7/tcp/4001/p2p/<relay>/p2p-circuit/p2p/<target>
//
// 二进制编码与 multiformats 规范一致（varint 协议码 + 值），
// 因此可以直接放进 identify / relay / dcutr 协议消息中。
// 两个地址相等当且仅当二进制段序列完全相同，即使解析到同一 socket。
package multiaddr

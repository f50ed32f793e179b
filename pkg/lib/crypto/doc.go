// Package crypto 提供节点身份所需的密码学工具
//
// 支持 Ed25519 密钥：
//   - 生成（随机或由种子确定性派生）
//   - libp2p 兼容的 protobuf 序列化（PublicKey{Type, Data}）
//   - PeerID 派生与从 PeerID 中提取公钥
//
// PeerID 派生规则：
//
//	序列化公钥 ≤ 42 字节 → identity multihash（0x00 | len | key）
//	否则               → sha2-256 multihash（0x12 | 0x20 | digest）
package crypto

// Package noise 实现 libp2p-noise 安全通道
//
// 使用 Noise_XX_25519_ChaChaPoly_SHA256：
//
//	-> e
//	<- e, ee, s, es, payload
//	-> s, se, payload
//
// Noise 静态密钥由 Ed25519 身份密钥转换得到（Edwards -> Montgomery），
// payload 携带身份公钥以及对 "noise-libp2p-static-key:" + 静态公钥 的签名，
// 对端据此把静态密钥绑定到 PeerID。
//
// 握手与数据帧均为 2 字节大端长度前缀，单帧不超过 65535 字节。
package noise

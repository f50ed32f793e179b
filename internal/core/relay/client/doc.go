// Package client 实现 Circuit Relay v2 客户端
//
// 包含三部分：
//
//   - Reserve：通过 HOP 协议向中继申请预约，得到可发布的电路地址
//   - Client：中继电路传输层。出站经 HOP CONNECT 建立电路，入站由 STOP
//     处理器接收，电路流包装为 net.Conn 后交给 Upgrader 完成 Noise + Yamux 升级
//   - Manager：维护预约，到期前续约，续约失败时重试直到过期
//
// 电路地址格式：
//
//	<relay addr>/p2p/<relay>/p2p-circuit/p2p/<self>
package client

// Package holepunch 实现基于中继协调的直连升级（DCUtR）
//
// 两个 NAT 后的节点先经中继建立电路，再在电路上交换候选地址并对齐时间，
// 双方同时发起 TCP 连接（simultaneous open）打通 NAT。
//
// Initiator（经中继拨号的一方）：
//
//	Idle → AwaitingRelayRoute → SynchronizingAttempt → Punching → 终态
//
// Responder（收到入站中继连接的一方）：
//
//	Idle → NotifiedByRelay → SynchronizingAttempt → Punching → 终态
//
// 终态为 DirectConnected、RelayFallback 或 Failed。
// 握手角色：Responder 以客户端角色拨号，Initiator 以服务端角色拨号，
// 因此无论 SYN 是否交叉，双方对安全握手角色的判断一致。
package holepunch

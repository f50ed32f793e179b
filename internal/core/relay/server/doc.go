// Package server 实现 Circuit Relay v2 中继服务端
//
// HOP 协议处理两类请求：
//
//   - RESERVE：按节点限速，检查预约总数后授予 ReservationTTL 时长的预约
//   - CONNECT：目标节点持有未过期预约时，向其打开 STOP 流并双向转发字节，
//     每条电路受 Limit{Duration, Data} 约束
//
// 过期判断使用注入的 clock.Clock，预约在 Expiry 之前有效，之后一律拒绝。
package server

// Package system 实现系统协议
//
// 节点启动时自动注册：
//   - identify: 地址学习交换（/ipfs/id/1.0.0）
//   - ping: 存活检测（/ipfs/ping/1.0.0）
package system

// Package addrbook 实现内存地址簿
//
// 地址簿保存三类地址：
//   - 远端节点地址：带 TTL，过期后由 GC 清除（小根堆按过期时间排序）
//   - 本地发布地址：中继预约分配的电路地址等，预约过期时撤销
//   - 观测地址记录：对端在地址学习交换中报告的本节点外部地址，
//     每个报告者只保留最新一条，作为打洞候选地址
//
// 所有时间均取自注入的 clock.Clock，测试使用 clock.NewMock() 推进时间。
// 地址簿不做持久化。
package addrbook

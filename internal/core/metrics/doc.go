// Package metrics 定义 Prometheus 指标
//
// 指标为包级收集器，在 init 中注册到默认 Registry，
// 各组件直接调用本包的记录函数：
//
//	metrics.ReservationResult("ok")
//	metrics.HolePunchOutcome("direct", "initiator")
//
// 命令行通过 --metrics-addr 以 promhttp.Handler() 暴露。
package metrics

// Package eventbus 实现进程内事件总线
//
// 组件之间通过类型化事件通信（连接建立、地址学习完成、预约成功、
// 打洞状态变化等），而不是共享一个庞大的组合处理器。
//
// 提供类型安全的事件发布/订阅机制，支持：
//   - 多订阅者与缓冲区配置
//   - 发射器引用计数
//   - 有状态模式（Stateful）
//
// # 快速开始
//
//	bus := eventbus.NewBus()
//
//	sub, _ := bus.Subscribe(new(types.EvtPeerConnected))
//	defer sub.Close()
//
//	go func() {
//	    for evt := range sub.Out() {
//	        e := evt.(types.EvtPeerConnected)
//	        // 处理事件
//	    }
//	}()
//
//	em, _ := bus.Emitter(new(types.EvtPeerConnected))
//	defer em.Close()
//	em.Emit(types.EvtPeerConnected{...})
//
// 订阅者缓冲区满时事件被丢弃（不阻塞发射方），并周期性记录慢消费者警告。
package eventbus

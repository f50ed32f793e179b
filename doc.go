// Package natpunch 提供经中继协调的 NAT 打洞节点
//
// 两个位于 NAT 之后的节点先在公网中继上预约（Circuit Relay v2），
// 经中继电路建立连接后用 DCUtR 交换观测地址并同时拨号，
// 成功则升级为直连，失败时保留中继连接作为回退。
// 连接之上运行 GossipSub，演示聊天。
//
// # 快速开始
//
//	import "github.com/dep2p/go-natpunch"
//
//	// listen 端：在中继上预约
//	node, err := natpunch.New(ctx,
//	    natpunch.WithMode(config.ModeListen),
//	    natpunch.WithSecretKeySeed(2),
//	    natpunch.WithRelay(relayAddr),
//	)
//	if err != nil {
//	    return err
//	}
//	defer node.Close()
//	if err := node.Start(ctx); err != nil {
//	    return err
//	}
//	return node.Run(ctx, natpunch.ChatIO{In: os.Stdin, Out: os.Stdout})
//
// # 组件层次
//
//	┌──────────────────────────────────────────────┐
//	│  Node      Reserve / ConnectPeer / RunChat    │
//	├──────────────────────────────────────────────┤
//	│  GossipSub   HolePunch   Relay   Identify     │
//	├──────────────────────────────────────────────┤
//	│  Host → Swarm → TCP + Noise + Yamux           │
//	└──────────────────────────────────────────────┘
//
// # 错误
//
// 返回的错误为 *Error，KindOf 给出分类：TransportError、RelayError、
// PunchFailure、ValidationError、ConfigurationError。
// 单个对端的失败不会让节点停止；配置错误只出现在 New 与 Start。
//
// # 文件组织
//
//   - node.go: Node 生命周期与访问器
//   - node_connect.go: 中继预约、打洞连接、模式执行
//   - pubsub.go: 订阅、发布与聊天循环
//   - options.go: 函数式选项
//   - fx.go: Fx 组装与配置转换
//   - errors.go: 错误分类
package natpunch

package tcp

import (
	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
)

// Params TCP 传输层依赖
type Params struct {
	fx.In

	Upgrader pkgif.Upgrader
	Options  []Option `optional:"true"`
}

// Result TCP 传输层输出
type Result struct {
	fx.Out

	Transport *Transport
	Generic   pkgif.Transport `group:"transports"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("transport/tcp",
		fx.Provide(Provide),
	)
}

// Provide 创建 TCP 传输层，关闭由 Swarm 负责
func Provide(p Params) Result {
	t := NewTransport(p.Upgrader, p.Options...)
	return Result{Transport: t, Generic: t}
}

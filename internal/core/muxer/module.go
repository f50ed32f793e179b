package muxer

import (
	"github.com/libp2p/go-yamux/v5"
	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
)

// Params 多路复用依赖
type Params struct {
	fx.In

	Config *yamux.Config `optional:"true"`
}

// Result 多路复用输出
type Result struct {
	fx.Out

	Transport *Transport
	Muxer     pkgif.StreamMuxer `group:"muxers"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("muxer",
		fx.Provide(Provide),
	)
}

// Provide 创建 yamux 传输
func Provide(p Params) Result {
	t := NewTransport(p.Config)
	return Result{Transport: t, Muxer: t}
}

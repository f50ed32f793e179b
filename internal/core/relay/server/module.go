package server

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
)

// Params 中继服务依赖
type Params struct {
	fx.In

	Host   pkgif.Host
	Config *Config     `optional:"true"`
	Clock  clock.Clock `optional:"true"`
}

// Module 中继服务 Fx 模块
func Module() fx.Option {
	return fx.Module("relay/server",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide 创建中继服务
func Provide(p Params) (*Server, error) {
	cfg := DefaultConfig()
	if p.Config != nil {
		cfg = *p.Config
	}
	return New(p.Host, cfg, WithClock(p.Clock))
}

func registerLifecycle(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return s.Start()
		},
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
}

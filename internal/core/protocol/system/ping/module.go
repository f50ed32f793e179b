package ping

import (
	"context"

	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
)

// Params ping 模块依赖
type Params struct {
	fx.In

	Host   pkgif.Host
	Config *Config `optional:"true"`
}

// Module Ping Fx 模块
func Module() fx.Option {
	return fx.Module("ping",
		fx.Provide(func(p Params) *Service { return NewService(p.Host, p.Config) }),
		fx.Invoke(func(lc fx.Lifecycle, s *Service) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error { return s.Start() },
				OnStop:  func(context.Context) error { return s.Close() },
			})
		}),
	)
}

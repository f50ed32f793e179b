package identify

import (
	"context"

	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
)

// Params identify 模块依赖
type Params struct {
	fx.In

	Host   pkgif.Host
	Config *Config `optional:"true"`
}

// Module identify Fx 模块
func Module() fx.Option {
	return fx.Module("identify",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide 创建 identify 服务
func Provide(p Params) (*Service, error) {
	return NewService(p.Host, p.Config)
}

func registerLifecycle(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return s.Start()
		},
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
}

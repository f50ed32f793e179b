package holepunch

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
)

// Params 打洞协调器依赖
type Params struct {
	fx.In

	Host   pkgif.Host
	Config *Config     `optional:"true"`
	Clock  clock.Clock `optional:"true"`
}

// Module 打洞协调器 Fx 模块
func Module() fx.Option {
	return fx.Module("nat/holepunch",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide 创建打洞协调器
func Provide(p Params) (*Coordinator, error) {
	cfg := DefaultConfig()
	if p.Config != nil {
		cfg = *p.Config
	}
	return New(p.Host, cfg, WithClock(p.Clock))
}

func registerLifecycle(lc fx.Lifecycle, c *Coordinator) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return c.Start()
		},
		OnStop: func(context.Context) error {
			return c.Close()
		},
	})
}

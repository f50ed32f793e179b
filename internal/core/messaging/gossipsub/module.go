package gossipsub

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
)

// Params 路由器依赖
type Params struct {
	fx.In

	Host   pkgif.Host
	Config *Config     `optional:"true"`
	Clock  clock.Clock `optional:"true"`
	MsgID  MsgIDFn     `optional:"true"`
}

// Module GossipSub Fx 模块
func Module() fx.Option {
	return fx.Module("messaging/gossipsub",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide 创建路由器
func Provide(p Params) (*Router, error) {
	cfg := DefaultConfig()
	if p.Config != nil {
		cfg = *p.Config
	}
	return New(p.Host, cfg, WithClock(p.Clock), WithMsgIDFn(p.MsgID))
}

func registerLifecycle(lc fx.Lifecycle, r *Router) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return r.Start()
		},
		OnStop: func(context.Context) error {
			return r.Close()
		},
	})
}

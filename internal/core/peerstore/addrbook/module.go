package addrbook

import (
	"context"

	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
)

// Params 地址簿依赖
type Params struct {
	fx.In

	EventBus pkgif.EventBus
	Options  []Option `optional:"true"`
}

// Result 地址簿输出
type Result struct {
	fx.Out

	AddrBook    *AddrBook
	AddressBook pkgif.AddressBook
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("addrbook",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide 创建地址簿并接入事件总线
func Provide(p Params) (Result, error) {
	ab := New(p.Options...)
	if err := ab.SetEventBus(p.EventBus); err != nil {
		return Result{}, err
	}
	return Result{AddrBook: ab, AddressBook: ab}, nil
}

func registerLifecycle(lc fx.Lifecycle, ab *AddrBook) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ab.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			return ab.Close()
		},
	})
}

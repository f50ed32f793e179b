package host

import (
	"context"

	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
)

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Swarm       pkgif.Swarm
	AddressBook pkgif.AddressBook
	EventBus    pkgif.EventBus
	PrivKey     crypto.PrivateKey
	Config      *Config `optional:"true"`
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Host    *Host
	Generic pkgif.Host
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("host",
		fx.Provide(ProvideHost),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideHost 提供 Host 服务
func ProvideHost(input ModuleInput) (ModuleOutput, error) {
	h, err := New(
		WithSwarm(input.Swarm),
		WithAddressBook(input.AddressBook),
		WithEventBus(input.EventBus),
		WithPrivateKey(input.PrivKey),
		WithConfig(input.Config),
	)
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{Host: h, Generic: h}, nil
}

func registerLifecycle(lc fx.Lifecycle, h *Host) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return h.Close()
		},
	})
}

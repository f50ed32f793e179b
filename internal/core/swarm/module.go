package swarm

import (
	"context"

	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// Params Swarm 依赖参数
type Params struct {
	fx.In

	LocalPeer   types.PeerID
	AddressBook pkgif.AddressBook
	Config      *Config           `optional:"true"`
	Transports  []pkgif.Transport `group:"transports"`
}

// Result Swarm 模块输出
type Result struct {
	fx.Out

	Swarm   *Swarm
	Network pkgif.Swarm
}

// Module Swarm Fx 模块
func Module() fx.Option {
	return fx.Module("swarm",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide 创建 Swarm 并注册传输层
func Provide(p Params) (Result, error) {
	opts := []Option{WithAddressBook(p.AddressBook)}
	if p.Config != nil {
		opts = append(opts, WithConfig(p.Config))
	}
	s, err := New(p.LocalPeer, opts...)
	if err != nil {
		return Result{}, err
	}
	for _, t := range p.Transports {
		if err := s.AddTransport(t); err != nil {
			return Result{}, err
		}
	}
	return Result{Swarm: s, Network: s}, nil
}

func registerLifecycle(lc fx.Lifecycle, s *Swarm) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
}

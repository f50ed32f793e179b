package client

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

// Params 中继客户端依赖
type Params struct {
	fx.In

	Host     pkgif.Host
	Upgrader pkgif.Upgrader
	Config   *Config     `optional:"true"`
	Clock    clock.Clock `optional:"true"`
}

// Result 中继客户端输出
type Result struct {
	fx.Out

	Client  *Client
	Manager *Manager
}

// Module 中继客户端 Fx 模块
//
// 传输层在 Invoke 阶段注册到 Swarm，Swarm 本身不依赖中继客户端。
func Module() fx.Option {
	return fx.Module("relay/client",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide 创建中继客户端与预约管理器
func Provide(p Params) (Result, error) {
	cfg := DefaultConfig()
	if p.Config != nil {
		cfg = *p.Config
	}
	c, err := NewClient(p.Host, p.Upgrader, cfg)
	if err != nil {
		return Result{}, err
	}
	m, err := NewManager(c, WithClock(p.Clock))
	if err != nil {
		return Result{}, err
	}
	return Result{Client: c, Manager: m}, nil
}

func registerLifecycle(lc fx.Lifecycle, h pkgif.Host, c *Client, m *Manager) error {
	if err := h.Network().AddTransport(c); err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start()
			if err := h.Network().Listen(multiaddr.CircuitMarker); err != nil {
				return err
			}
			return m.Start()
		},
		OnStop: func(context.Context) error {
			err := m.Stop()
			c.Close()
			return err
		},
	})
	return nil
}

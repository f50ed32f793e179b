package natpunch

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-natpunch/config"
	"github.com/dep2p/go-natpunch/internal/core/eventbus"
	"github.com/dep2p/go-natpunch/internal/core/host"
	"github.com/dep2p/go-natpunch/internal/core/messaging/gossipsub"
	"github.com/dep2p/go-natpunch/internal/core/muxer"
	"github.com/dep2p/go-natpunch/internal/core/nat/holepunch"
	"github.com/dep2p/go-natpunch/internal/core/peerstore/addrbook"
	"github.com/dep2p/go-natpunch/internal/core/protocol/system/identify"
	"github.com/dep2p/go-natpunch/internal/core/protocol/system/ping"
	relayclient "github.com/dep2p/go-natpunch/internal/core/relay/client"
	relayserver "github.com/dep2p/go-natpunch/internal/core/relay/server"
	"github.com/dep2p/go-natpunch/internal/core/security/noise"
	"github.com/dep2p/go-natpunch/internal/core/swarm"
	"github.com/dep2p/go-natpunch/internal/core/transport/tcp"
	"github.com/dep2p/go-natpunch/internal/core/upgrader"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
)

// components fx.Populate 的目标
type components struct {
	Host     pkgif.Host
	Swarm    pkgif.Swarm
	Book     pkgif.AddressBook
	Bus      pkgif.EventBus
	Identify *identify.Service
	Ping     *ping.Service
	Relays   *relayclient.Manager
	Punch    *holepunch.Coordinator
	Gossip   *gossipsub.Router
	Server   *relayserver.Server
}

// buildApp 组装 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 身份与配置注入
//  2. EventBus → AddrBook → Noise/Yamux → Upgrader → TCP → Swarm → Host
//  3. Identify、Ping、中继客户端、打洞协调器、GossipSub
//  4. 中继服务（按配置加载）
func buildApp(cfg *config.Config, out *components) (*fx.App, error) {
	priv, err := cfg.Identity.PrivateKey()
	if err != nil {
		return nil, err
	}
	id, err := crypto.IDFromPrivateKey(priv)
	if err != nil {
		return nil, err
	}

	modules := []fx.Option{
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),

		// 身份与配置注入
		fx.Provide(func() crypto.PrivateKey { return priv }),
		fx.Supply(
			id,
			swarmConfig(cfg),
			hostConfig(cfg),
			identifyConfig(cfg),
			pingConfig(cfg),
			relayClientConfig(cfg),
			holePunchConfig(cfg),
			gossipConfig(cfg),
			tcpOptions(cfg),
		),

		// 基础组件
		eventbus.Module(),
		addrbook.Module(),

		// 传输栈
		noise.Module(),
		muxer.Module(),
		upgrader.Module(),
		tcp.Module(),
		swarm.Module(),
		host.Module(),

		// 系统协议与 NAT 穿透
		identify.Module(),
		ping.Module(),
		relayclient.Module(),
		holepunch.Module(),
		gossipsub.Module(),
	}

	populate := []interface{}{
		&out.Host, &out.Swarm, &out.Book, &out.Bus,
		&out.Identify, &out.Ping, &out.Relays, &out.Punch, &out.Gossip,
	}
	if cfg.Relay.Server.Enable {
		modules = append(modules,
			fx.Supply(relayServerConfig(cfg)),
			relayserver.Module(),
		)
		populate = append(populate, &out.Server)
	}
	modules = append(modules, fx.Populate(populate...))

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

func swarmConfig(cfg *config.Config) *swarm.Config {
	c := swarm.DefaultConfig()
	c.DialTimeout = cfg.Transport.DialTimeout.Duration()
	c.NewStreamTimeout = cfg.Transport.NewStreamTimeout.Duration()
	return c
}

func hostConfig(cfg *config.Config) *host.Config {
	c := host.DefaultConfig()
	c.NegotiationTimeout = cfg.Transport.NegotiationTimeout.Duration()
	return c
}

func tcpOptions(cfg *config.Config) []tcp.Option {
	return []tcp.Option{
		tcp.WithReusePort(cfg.Transport.ReusePort),
		tcp.WithDialTimeout(cfg.Transport.DialTimeout.Duration()),
		tcp.WithUpgradeTimeout(cfg.Transport.NegotiationTimeout.Duration()),
	}
}

func identifyConfig(cfg *config.Config) *identify.Config {
	c := identify.DefaultConfig()
	c.Timeout = cfg.Identify.Timeout.Duration()
	c.ProtocolVersion = cfg.Identify.ProtocolVersion
	c.AgentVersion = cfg.Identify.AgentVersion
	c.AddrTTL = cfg.Identify.AddrTTL.Duration()
	return c
}

func pingConfig(cfg *config.Config) *ping.Config {
	return &ping.Config{Interval: cfg.Transport.PingInterval.Duration()}
}

func relayClientConfig(cfg *config.Config) *relayclient.Config {
	c := relayclient.DefaultConfig()
	rc := cfg.Relay.Client
	c.ReserveTimeout = rc.ReserveTimeout.Duration()
	c.ConnectTimeout = rc.ConnectTimeout.Duration()
	c.RenewBefore = rc.RenewBefore.Duration()
	c.RetryInterval = rc.RetryInterval.Duration()
	return &c
}

func relayServerConfig(cfg *config.Config) *relayserver.Config {
	c := relayserver.DefaultConfig()
	s := cfg.Relay.Server
	c.ReservationTTL = s.ReservationTTL.Duration()
	c.MaxReservations = s.MaxReservations
	c.MaxCircuits = s.MaxCircuits
	c.MaxCircuitsPerPeer = s.MaxCircuitsPerPeer
	c.ReservationInterval = s.ReservationInterval.Duration()
	c.ReservationBurst = s.ReservationBurst
	c.CircuitDuration = s.CircuitDuration.Duration()
	c.CircuitData = s.CircuitData
	return &c
}

func holePunchConfig(cfg *config.Config) *holepunch.Config {
	c := holepunch.DefaultConfig()
	h := cfg.HolePunch
	c.RelayDialTimeout = h.RelayDialTimeout.Duration()
	c.StreamTimeout = h.StreamTimeout.Duration()
	c.DialTimeout = h.DialTimeout.Duration()
	c.PunchTimeout = h.PunchTimeout.Duration()
	c.MaxAttempts = h.MaxAttempts
	c.RetryBackoff = h.RetryBackoff.Duration()
	c.MaxAddresses = h.MaxAddresses
	c.AllowPrivateAddrs = h.AllowPrivateAddrs
	return &c
}

func gossipConfig(cfg *config.Config) *gossipsub.Config {
	c := gossipsub.ChatConfig()
	g := cfg.Gossip
	c.D = g.D
	c.Dlo = g.Dlo
	c.Dhi = g.Dhi
	c.HeartbeatInterval = g.HeartbeatInterval.Duration()
	c.SeenTTL = g.SeenTTL.Duration()
	c.MaxMessageSize = g.MaxMessageSize
	c.StrictSigning = g.StrictSigning
	return &c
}

package natpunch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-natpunch/config"
	"github.com/dep2p/go-natpunch/internal/core/messaging/gossipsub"
	"github.com/dep2p/go-natpunch/internal/core/nat/holepunch"
	relayclient "github.com/dep2p/go-natpunch/internal/core/relay/client"
	relayserver "github.com/dep2p/go-natpunch/internal/core/relay/server"
	"github.com/dep2p/go-natpunch/internal/util/logger"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var log = logger.Logger("natpunch")

// stopTimeout 关闭 Fx 应用的超时
const stopTimeout = 10 * time.Second

// Node NAT 穿透节点
//
// Node 聚合传输栈、中继客户端、打洞协调器与 GossipSub，是使用本库的入口。
//
// 使用示例：
//
//	node, err := natpunch.New(ctx,
//	    natpunch.WithMode(config.ModeDial),
//	    natpunch.WithRelay("/ip4/1.2.3.4/tcp/4001/p2p/12D3KooW..."),
//	    natpunch.WithRemotePeer(target),
//	)
//	if err != nil {
//	    return err
//	}
//	defer node.Close()
//
//	if err := node.Start(ctx); err != nil {
//	    return err
//	}
//	outcome, err := node.ConnectPeer(ctx, target)
type Node struct {
	cfg *config.Config
	app *fx.App
	c   components

	mu        sync.Mutex
	started   bool
	closed    bool
	startedAt time.Time

	subs   []pkgif.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 按选项创建节点，配置无效时返回 ConfigurationError
func New(ctx context.Context, opts ...Option) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := config.NewConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, &Error{Kind: ConfigurationError, Op: "new", Err: fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, wrap("new", err)
	}

	n := &Node{cfg: cfg}
	app, err := buildApp(cfg, &n.c)
	if err != nil {
		return nil, &Error{Kind: ConfigurationError, Op: "new", Err: err}
	}
	n.app = app
	n.ctx, n.cancel = context.WithCancel(context.Background())
	return n, nil
}

// Start 启动全部组件并开始监听
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrNodeClosed
	}
	if n.started {
		return ErrAlreadyStarted
	}

	if err := n.app.Start(ctx); err != nil {
		log.Error("节点启动失败", "error", err)
		return wrap("start", err)
	}

	addrs, err := n.cfg.Transport.Multiaddrs()
	if err != nil {
		n.stopApp()
		return wrap("start", err)
	}
	if err := n.c.Swarm.Listen(addrs...); err != nil {
		n.stopApp()
		return &Error{Kind: TransportError, Op: "listen", Err: err}
	}

	if err := n.trackPeers(); err != nil {
		n.stopApp()
		return wrap("start", err)
	}

	n.started = true
	n.startedAt = time.Now()

	id := n.ID()
	log.Info("节点已启动", "peer", id.ShortString(), "mode", n.cfg.Mode)
	for _, a := range n.c.Swarm.ListenAddrs() {
		log.Info("监听地址", "addr", fmt.Sprintf("%s/p2p/%s", a, id))
	}
	return nil
}

// Close 关闭节点，可重复调用
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()

	n.cancel()
	var errs error
	for _, s := range subs {
		errs = multierr.Append(errs, s.Close())
	}
	n.wg.Wait()

	errs = multierr.Append(errs, n.stopApp())
	log.Info("节点已关闭", "peer", n.ID().ShortString())
	return errs
}

func (n *Node) stopApp() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return n.app.Stop(ctx)
}

// running 节点已启动且未关闭
func (n *Node) running() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case n.closed:
		return ErrNodeClosed
	case !n.started:
		return ErrNotStarted
	}
	return nil
}

// ID 返回节点 ID
func (n *Node) ID() types.PeerID {
	return n.c.Host.ID()
}

// Addrs 返回可分享的地址（监听地址与已预约的电路地址）
func (n *Node) Addrs() []multiaddr.Multiaddr {
	return n.c.Host.Addrs()
}

// Config 返回节点配置的副本
func (n *Node) Config() config.Config {
	return *n.cfg
}

// Host 返回底层 Host
func (n *Node) Host() pkgif.Host {
	return n.c.Host
}

// AddressBook 返回地址簿
func (n *Node) AddressBook() pkgif.AddressBook {
	return n.c.Book
}

// EventBus 返回事件总线
func (n *Node) EventBus() pkgif.EventBus {
	return n.c.Bus
}

// Relays 返回中继预约管理器
func (n *Node) Relays() *relayclient.Manager {
	return n.c.Relays
}

// HolePunch 返回打洞协调器
func (n *Node) HolePunch() *holepunch.Coordinator {
	return n.c.Punch
}

// PubSub 返回 GossipSub 路由器
func (n *Node) PubSub() *gossipsub.Router {
	return n.c.Gossip
}

// RelayServer 返回中继服务，未启用时为 nil
func (n *Node) RelayServer() *relayserver.Server {
	return n.c.Server
}

// Ping 测量到已连接节点的往返时间
func (n *Node) Ping(ctx context.Context, peer types.PeerID) (time.Duration, error) {
	if err := n.running(); err != nil {
		return 0, err
	}
	rtt, err := n.c.Ping.Ping(ctx, peer)
	if err != nil {
		return 0, wrap("ping", err)
	}
	return rtt, nil
}

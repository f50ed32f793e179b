package holepunch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-natpunch/internal/util/logger"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/protocolids"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var log = logger.Logger("nat/holepunch")

// Coordinator 打洞协调器
//
// 同一时刻到同一节点只允许一个尝试（无论角色）。
type Coordinator struct {
	host   pkgif.Host
	swarm  pkgif.Swarm
	book   pkgif.AddressBook
	config Config
	clock  clock.Clock

	// candidates 自定义本地候选地址来源
	candidates func() []multiaddr.Multiaddr

	emitState   pkgif.Emitter
	emitOutcome pkgif.Emitter
	notifee     *pkgif.NotifyBundle

	mu      sync.Mutex
	active  map[types.PeerID]struct{}
	waiters map[types.PeerID][]chan pkgif.Connection
	closed  bool

	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option 协调器选项
type Option func(*Coordinator)

// WithClock 注入时钟，用于计时与重试退避
func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) {
		if c != nil {
			co.clock = c
		}
	}
}

// WithCandidates 替换本地候选地址来源（默认取观测地址与监听地址）
func WithCandidates(fn func() []multiaddr.Multiaddr) Option {
	return func(co *Coordinator) {
		co.candidates = fn
	}
}

// New 创建打洞协调器
func New(host pkgif.Host, cfg Config, opts ...Option) (*Coordinator, error) {
	if host == nil {
		return nil, errors.New("holepunch: nil host")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bus := host.EventBus()
	emitState, err := bus.Emitter(new(types.EvtHolePunchStateChanged))
	if err != nil {
		return nil, err
	}
	emitOutcome, err := bus.Emitter(new(types.EvtHolePunchOutcome))
	if err != nil {
		emitState.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		host:        host,
		swarm:       host.Network(),
		book:        host.AddressBook(),
		config:      cfg,
		clock:       clock.New(),
		emitState:   emitState,
		emitOutcome: emitOutcome,
		active:      make(map[types.PeerID]struct{}),
		waiters:     make(map[types.PeerID][]chan pkgif.Connection),
		ctx:         ctx,
		cancel:      cancel,
	}
	c.notifee = &pkgif.NotifyBundle{ConnectedF: c.connected}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config 返回配置
func (c *Coordinator) Config() Config {
	return c.config
}

// Start 注册 DCUtR 处理器并开始观察入站直连
func (c *Coordinator) Start() error {
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}
	c.host.SetStreamHandler(protocolids.DCUtR, c.handleStream)
	c.swarm.Notify(c.notifee)
	return nil
}

// Close 停止协调器，等待进行中的 Responder 尝试结束
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.started.Load() {
		c.host.RemoveStreamHandler(protocolids.DCUtR)
		c.swarm.StopNotify(c.notifee)
	}
	c.cancel()
	c.wg.Wait()
	return multierr.Combine(c.emitState.Close(), c.emitOutcome.Close())
}

// begin 登记到 peer 的尝试
func (c *Coordinator) begin(peer types.PeerID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCoordinatorClosed
	}
	if _, ok := c.active[peer]; ok {
		return ErrAttemptInProgress
	}
	c.active[peer] = struct{}{}
	c.wg.Add(1)
	return nil
}

func (c *Coordinator) end(peer types.PeerID) {
	c.mu.Lock()
	delete(c.active, peer)
	c.mu.Unlock()
	c.wg.Done()
}

// ============================================================================
//                              Initiator
// ============================================================================

// Connect 经中继连接目标并尝试升级为直连
//
// 返回的错误只对应 Failed；RelayFallback 视为成功，Outcome.Err 记录打洞失败原因。
func (c *Coordinator) Connect(ctx context.Context, target types.PeerID) (Outcome, error) {
	if target == c.host.ID() {
		return Outcome{}, fmt.Errorf("holepunch: cannot punch to self")
	}
	if err := c.begin(target); err != nil {
		return Outcome{}, err
	}
	defer c.end(target)

	ctx, cancel := context.WithTimeout(ctx, c.config.deadline())
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	a := c.newAttempt(target, types.RoleInitiator)
	if conn := c.directConn(target); conn != nil {
		return a.finish(types.StateDirectConnected, conn, nil), nil
	}

	a.transition(types.StateAwaitingRelayRoute)
	relayed, err := c.relayRoute(ctx, target)
	if err != nil {
		o := a.finish(types.StateFailed, nil, err)
		return o, err
	}

	a.transition(types.StateSynchronizingAttempt)
	remote, err := c.synchronize(ctx, relayed)
	if err != nil {
		return c.fallback(a, relayed, err)
	}

	a.transition(types.StatePunching)
	direct, err := c.punch(ctx, target, remote, false)
	if err != nil {
		return c.fallback(a, relayed, err)
	}
	return a.finish(types.StateDirectConnected, direct, nil), nil
}

// ConnectWithRetry 对 Failed 结果按指数退避重试
//
// 首次等待 RetryBackoff，之后逐次翻倍；MaxAttempts 次后返回 ErrPunchPermanentFailure。
func (c *Coordinator) ConnectWithRetry(ctx context.Context, target types.PeerID) (Outcome, error) {
	backoff := c.config.RetryBackoff
	var (
		last    Outcome
		lastErr error
	)
	for i := 1; i <= c.config.MaxAttempts; i++ {
		o, err := c.Connect(ctx, target)
		o.Attempts = i
		if err == nil {
			return o, nil
		}
		if errors.Is(err, ErrCoordinatorClosed) || errors.Is(err, ErrAttemptInProgress) || ctx.Err() != nil {
			return o, err
		}
		last, lastErr = o, err
		if i == c.config.MaxAttempts {
			break
		}

		log.Debug("打洞尝试失败，稍后重试",
			"peer", target.ShortString(),
			"attempt", i,
			"backoff", backoff,
			"err", err)
		t := c.clock.Timer(backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return o, ctx.Err()
		case <-c.ctx.Done():
			t.Stop()
			return o, ErrCoordinatorClosed
		}
		backoff *= 2
	}
	return last, fmt.Errorf("%w: %d attempts: %w", ErrPunchPermanentFailure, c.config.MaxAttempts, lastErr)
}

// fallback 打洞失败后的终态：仍有直连则 DirectConnected，中继存活则 RelayFallback，否则 Failed
func (c *Coordinator) fallback(a *attempt, relayed pkgif.Connection, cause error) (Outcome, error) {
	if conn := c.directConn(a.peer); conn != nil {
		return a.finish(types.StateDirectConnected, conn, nil), nil
	}
	if relayed != nil && !relayed.IsClosed() {
		return a.finish(types.StateRelayFallback, relayed, cause), nil
	}
	err := fmt.Errorf("%w: %w", ErrRelayClosed, cause)
	o := a.finish(types.StateFailed, nil, err)
	return o, err
}

// relayRoute 复用已有中继连接，否则拨号地址簿中的电路地址
func (c *Coordinator) relayRoute(ctx context.Context, target types.PeerID) (pkgif.Connection, error) {
	for _, conn := range c.swarm.ConnsToPeer(target) {
		if conn.IsRelayed() {
			return conn, nil
		}
	}

	addrs := multiaddr.FilterAddrs(c.book.Addrs(target), multiaddr.IsRelayAddr)
	if len(addrs) == 0 {
		return nil, ErrNoRelayRoute
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RelayDialTimeout)
	defer cancel()

	var errs error
	for _, addr := range addrs {
		conn, err := c.swarm.DialAddr(ctx, target, addr)
		if err == nil {
			log.Info("中继连接已建立",
				"peer", target.ShortString(),
				"addr", addr)
			return conn, nil
		}
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", addr, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrRelayDialFailed, errs)
}

// directConn 返回到 peer 的一条直连
func (c *Coordinator) directConn(peer types.PeerID) pkgif.Connection {
	for _, conn := range c.swarm.ConnsToPeer(peer) {
		if !conn.IsRelayed() {
			return conn
		}
	}
	return nil
}

// ============================================================================
//                              入站直连观察
// ============================================================================

// connected Swarm 通知回调，同步执行，不能阻塞
func (c *Coordinator) connected(conn pkgif.Connection) {
	if conn.IsRelayed() || conn.Direction() != types.DirInbound {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.waiters[conn.RemotePeer()] {
		select {
		case ch <- conn:
		default:
		}
	}
}

// watch 登记入站直连等待者
func (c *Coordinator) watch(peer types.PeerID) (<-chan pkgif.Connection, func()) {
	ch := make(chan pkgif.Connection, 1)
	c.mu.Lock()
	c.waiters[peer] = append(c.waiters[peer], ch)
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		ws := c.waiters[peer]
		for i, w := range ws {
			if w == ch {
				ws = append(ws[:i:i], ws[i+1:]...)
				break
			}
		}
		if len(ws) == 0 {
			delete(c.waiters, peer)
		} else {
			c.waiters[peer] = ws
		}
	}
}

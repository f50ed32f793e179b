package swarm

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/dep2p/go-natpunch/internal/util/logger"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var log = logger.Logger("core/swarm")

var _ pkgif.Swarm = (*Swarm)(nil)

// Swarm 连接群管理
type Swarm struct {
	local    types.PeerID
	addrBook pkgif.AddressBook
	config   *Config

	mu         sync.RWMutex
	conns      map[types.PeerID][]*Conn
	transports []pkgif.Transport
	listeners  []pkgif.Listener
	notifiers  []pkgif.SwarmNotifier
	handler    pkgif.InboundStreamHandler

	nextConnID atomic.Uint64
	closed     atomic.Bool
}

// New 创建 Swarm
func New(local types.PeerID, opts ...Option) (*Swarm, error) {
	if local.IsEmpty() {
		return nil, types.ErrEmptyPeerID
	}
	s := &Swarm{
		local:  local,
		config: DefaultConfig(),
		conns:  make(map[types.PeerID][]*Conn),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// LocalPeer 返回本地节点 ID
func (s *Swarm) LocalPeer() types.PeerID {
	return s.local
}

// AddTransport 注册传输层，先注册的优先
func (s *Swarm) AddTransport(t pkgif.Transport) error {
	if t == nil {
		return errors.New("swarm: nil transport")
	}
	if s.closed.Load() {
		return ErrSwarmClosed
	}
	s.mu.Lock()
	s.transports = append(s.transports, t)
	s.mu.Unlock()
	return nil
}

// transportFor 选择能处理 addr 的传输层
func (s *Swarm) transportFor(addr multiaddr.Multiaddr) pkgif.Transport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transports {
		if t.CanDial(addr) {
			return t
		}
	}
	return nil
}

// Peers 返回所有已连接的节点 ID
func (s *Swarm) Peers() []types.PeerID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	peers := make([]types.PeerID, 0, len(s.conns))
	for p := range s.conns {
		peers = append(peers, p)
	}
	return peers
}

// Conns 返回所有活跃连接
func (s *Swarm) Conns() []pkgif.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pkgif.Connection
	for _, cs := range s.conns {
		for _, c := range cs {
			out = append(out, c)
		}
	}
	return out
}

// ConnsToPeer 返回到指定节点的连接，直连在前，同类按建立时间从新到旧
func (s *Swarm) ConnsToPeer(p types.PeerID) []pkgif.Connection {
	conns := s.connsToPeer(p)
	out := make([]pkgif.Connection, len(conns))
	for i, c := range conns {
		out[i] = c
	}
	return out
}

func (s *Swarm) connsToPeer(p types.PeerID) []*Conn {
	s.mu.RLock()
	conns := make([]*Conn, 0, len(s.conns[p]))
	for _, c := range s.conns[p] {
		if !c.IsClosed() {
			conns = append(conns, c)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(conns, func(i, j int) bool {
		if conns[i].relayed != conns[j].relayed {
			return !conns[i].relayed
		}
		return conns[i].opened.After(conns[j].opened)
	})
	return conns
}

// bestConn 返回最优连接，directOnly 时忽略中继连接
func (s *Swarm) bestConn(p types.PeerID, directOnly bool) *Conn {
	for _, c := range s.connsToPeer(p) {
		if directOnly && c.relayed {
			continue
		}
		return c
	}
	return nil
}

// Connectedness 返回与指定节点的连接状态
func (s *Swarm) Connectedness(p types.PeerID) pkgif.Connectedness {
	c := s.bestConn(p, false)
	switch {
	case c == nil:
		return pkgif.NotConnected
	case c.relayed:
		return pkgif.Limited
	default:
		return pkgif.Connected
	}
}

// NewStream 在最优连接上开流，开流失败时依次尝试其它连接
func (s *Swarm) NewStream(ctx context.Context, p types.PeerID) (pkgif.Stream, error) {
	if s.closed.Load() {
		return nil, ErrSwarmClosed
	}
	conns := s.connsToPeer(p)
	if len(conns) == 0 {
		return nil, ErrNoConnection
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.NewStreamTimeout)
	defer cancel()

	var errs error
	for _, c := range conns {
		st, err := c.NewStream(ctx)
		if err == nil {
			return st, nil
		}
		errs = multierr.Append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errs
}

// ClosePeer 关闭与指定节点的所有连接
func (s *Swarm) ClosePeer(p types.PeerID) error {
	var errs error
	for _, c := range s.connsToPeer(p) {
		errs = multierr.Append(errs, c.Close())
	}
	return errs
}

// Notify 注册连接事件通知
func (s *Swarm) Notify(n pkgif.SwarmNotifier) {
	if n == nil {
		return
	}
	s.mu.Lock()
	s.notifiers = append(s.notifiers, n)
	s.mu.Unlock()
}

// StopNotify 注销连接事件通知
func (s *Swarm) StopNotify(n pkgif.SwarmNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.notifiers {
		if cur == n {
			s.notifiers = append(s.notifiers[:i:i], s.notifiers[i+1:]...)
			return
		}
	}
}

func (s *Swarm) notifyAll(fn func(pkgif.SwarmNotifier)) {
	s.mu.RLock()
	notifiers := append([]pkgif.SwarmNotifier(nil), s.notifiers...)
	s.mu.RUnlock()
	for _, n := range notifiers {
		fn(n)
	}
}

// SetInboundStreamHandler 设置入站流处理器
func (s *Swarm) SetInboundStreamHandler(handler pkgif.InboundStreamHandler) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

func (s *Swarm) inboundHandler() pkgif.InboundStreamHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}

// addConn 登记已升级连接并启动入站流循环
func (s *Swarm) addConn(uc pkgif.UpgradedConn) (*Conn, error) {
	c := newConn(s, uc, strconv.FormatUint(s.nextConnID.Add(1), 10))

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		uc.Close()
		return nil, ErrSwarmClosed
	}
	s.conns[c.RemotePeer()] = append(s.conns[c.RemotePeer()], c)
	s.mu.Unlock()

	log.Info("连接已建立",
		"peer", c.RemotePeer().ShortString(),
		"direction", c.Direction(),
		"relayed", c.relayed,
		"remote", c.RemoteMultiaddr())

	go c.acceptStreams()
	s.notifyAll(func(n pkgif.SwarmNotifier) { n.Connected(c) })
	return c, nil
}

// removeConn 连接关闭后由 Conn 调用
func (s *Swarm) removeConn(c *Conn) {
	p := c.RemotePeer()
	s.mu.Lock()
	conns := s.conns[p]
	for i, cur := range conns {
		if cur == c {
			conns = append(conns[:i:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(s.conns, p)
	} else {
		s.conns[p] = conns
	}
	s.mu.Unlock()

	log.Debug("连接已断开", "peer", p.ShortString(), "relayed", c.relayed)
	s.notifyAll(func(n pkgif.SwarmNotifier) { n.Disconnected(c) })
}

// Close 关闭所有监听器和连接
func (s *Swarm) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	listeners := s.listeners
	s.listeners = nil
	var conns []*Conn
	for _, cs := range s.conns {
		conns = append(conns, cs...)
	}
	transports := s.transports
	s.transports = nil
	s.mu.Unlock()

	var errs error
	for _, l := range listeners {
		errs = multierr.Append(errs, l.Close())
	}
	for _, c := range conns {
		errs = multierr.Append(errs, c.Close())
	}
	for _, t := range transports {
		errs = multierr.Append(errs, t.Close())
	}
	log.Debug("swarm 已关闭", "conns", len(conns))
	return errs
}

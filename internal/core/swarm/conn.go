package swarm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var _ pkgif.Connection = (*Conn)(nil)

// Conn Swarm 管理的连接
type Conn struct {
	id      string
	swarm   *Swarm
	conn    pkgif.UpgradedConn
	opened  time.Time
	relayed bool

	streamsMu sync.Mutex
	streams   map[*Stream]struct{}

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

func newConn(s *Swarm, uc pkgif.UpgradedConn, id string) *Conn {
	relayed := multiaddr.IsRelayAddr(uc.RemoteMultiaddr())
	if t := uc.Transport(); t != nil && t.Proxy() {
		relayed = true
	}
	return &Conn{
		id:      id,
		swarm:   s,
		conn:    uc,
		opened:  time.Now(),
		relayed: relayed,
		streams: make(map[*Stream]struct{}),
	}
}

func (c *Conn) ID() string                           { return c.id }
func (c *Conn) LocalPeer() types.PeerID              { return c.conn.LocalPeer() }
func (c *Conn) RemotePeer() types.PeerID             { return c.conn.RemotePeer() }
func (c *Conn) RemotePublicKey() crypto.PublicKey    { return c.conn.RemotePublicKey() }
func (c *Conn) LocalMultiaddr() multiaddr.Multiaddr  { return c.conn.LocalMultiaddr() }
func (c *Conn) RemoteMultiaddr() multiaddr.Multiaddr { return c.conn.RemoteMultiaddr() }
func (c *Conn) Direction() types.Direction           { return c.conn.Direction() }
func (c *Conn) IsRelayed() bool                      { return c.relayed }
func (c *Conn) Opened() time.Time                    { return c.opened }
func (c *Conn) IsClosed() bool                       { return c.closed.Load() || c.conn.IsClosed() }

func (c *Conn) String() string {
	kind := "direct"
	if c.relayed {
		kind = "relayed"
	}
	return "<conn " + c.id + " " + kind + " " + c.RemotePeer().ShortString() + ">"
}

// NewStream 在此连接上打开新流
func (c *Conn) NewStream(ctx context.Context) (pkgif.Stream, error) {
	if c.IsClosed() {
		return nil, ErrConnClosed
	}
	ms, err := c.conn.OpenStream(ctx)
	if err != nil {
		if c.conn.IsClosed() {
			c.Close()
		}
		return nil, err
	}
	return c.track(ms), nil
}

// GetStreams 返回此连接上的活跃流
func (c *Conn) GetStreams() []pkgif.Stream {
	c.streamsMu.Lock()
	defer c.streamsMu.Unlock()
	out := make([]pkgif.Stream, 0, len(c.streams))
	for st := range c.streams {
		out = append(out, st)
	}
	return out
}

func (c *Conn) track(ms pkgif.MuxedStream) *Stream {
	st := &Stream{stream: ms, conn: c}
	c.streamsMu.Lock()
	c.streams[st] = struct{}{}
	c.streamsMu.Unlock()
	return st
}

func (c *Conn) untrack(st *Stream) {
	c.streamsMu.Lock()
	delete(c.streams, st)
	c.streamsMu.Unlock()
}

// acceptStreams 入站流循环，会话结束时关闭连接
func (c *Conn) acceptStreams() {
	defer c.Close()
	for {
		ms, err := c.conn.AcceptStream()
		if err != nil {
			return
		}
		st := c.track(ms)
		handler := c.swarm.inboundHandler()
		if handler == nil {
			log.Warn("入站流处理器未设置，重置流", "peer", c.RemotePeer().ShortString())
			st.Reset()
			continue
		}
		go handler(st)
	}
}

// Close 关闭连接，重复调用返回首次结果
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
		c.streamsMu.Lock()
		c.streams = make(map[*Stream]struct{})
		c.streamsMu.Unlock()
		c.swarm.removeConn(c)
	})
	return c.closeErr
}

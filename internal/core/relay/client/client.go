package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-natpunch/internal/util/logger"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/lib/proto"
	relaypb "github.com/dep2p/go-natpunch/pkg/lib/proto/relay"
	"github.com/dep2p/go-natpunch/pkg/protocolids"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var log = logger.Logger("relay/client")

// ============================================================================
//                              Client 实现
// ============================================================================

// Client 中继客户端
//
// 同时是 /p2p-circuit 地址的传输层：Dial 经中继建立出站电路，
// Listen 返回的监听器接收 STOP 协议送来的入站电路。
type Client struct {
	host     pkgif.Host
	upgrader pkgif.Upgrader
	config   Config

	emitRelayed pkgif.Emitter

	mu       sync.Mutex
	listener *Listener

	closed atomic.Bool
}

var _ pkgif.Transport = (*Client)(nil)

// NewClient 创建中继客户端
func NewClient(host pkgif.Host, upgrader pkgif.Upgrader, cfg Config) (*Client, error) {
	if host == nil {
		return nil, errors.New("relay client: nil host")
	}
	if upgrader == nil {
		return nil, errors.New("relay client: nil upgrader")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	em, err := host.EventBus().Emitter(new(types.EvtRelayedConnection))
	if err != nil {
		return nil, err
	}
	return &Client{
		host:        host,
		upgrader:    upgrader,
		config:      cfg,
		emitRelayed: em,
	}, nil
}

// Config 返回客户端配置
func (c *Client) Config() Config {
	return c.config
}

// Start 注册 STOP 处理器
func (c *Client) Start() {
	c.host.SetStreamHandler(protocolids.RelayStop, c.handleStop)
}

// Dial 经中继建立到 peerID 的电路并完成升级
//
// raddr 形如 <relay addr>/p2p/<relay>/p2p-circuit[/p2p/<target>]。
func (c *Client) Dial(ctx context.Context, raddr multiaddr.Multiaddr, peerID types.PeerID) (pkgif.UpgradedConn, error) {
	if c.closed.Load() {
		return nil, ErrTransportClosed
	}
	relayAddr, rawTarget, err := multiaddr.SplitCircuit(raddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCircuitAddr, err)
	}
	if rawTarget != nil {
		target, err := types.PeerIDFromBytes(rawTarget)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCircuitAddr, err)
		}
		if peerID == "" {
			peerID = target
		} else if peerID != target {
			return nil, fmt.Errorf("%w: target %s does not match %s", ErrInvalidCircuitAddr, target.ShortString(), peerID.ShortString())
		}
	}
	if peerID == "" {
		return nil, fmt.Errorf("%w: no target peer", ErrInvalidCircuitAddr)
	}
	relay, err := types.AddrInfoFromP2pAddr(relayAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCircuitAddr, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	s, err := c.connect(ctx, *relay, peerID)
	if err != nil {
		return nil, err
	}

	raw := newCircuitConn(s, multiaddr.CircuitMarker, relayAddr.Encapsulate(multiaddr.CircuitMarker))
	uc, err := c.upgrader.Upgrade(ctx, c, raw, types.DirOutbound, peerID)
	if err != nil {
		return nil, fmt.Errorf("%w: upgrade: %v", ErrCircuitFailed, err)
	}
	log.Debug("出站电路已建立", "peer", peerID.ShortString(), "relay", relay.ID.ShortString())
	return uc, nil
}

// connect 发送 HOP CONNECT，成功时返回承载电路的流
func (c *Client) connect(ctx context.Context, relay types.AddrInfo, target types.PeerID) (pkgif.Stream, error) {
	if err := c.host.Connect(ctx, relay); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelayUnreachable, err)
	}
	s, err := c.host.NewStream(ctx, relay.ID, protocolids.RelayHop)
	if err != nil {
		return nil, fmt.Errorf("%w: open hop stream: %v", ErrRelayUnreachable, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(dl)
	}

	req := &relaypb.HopMessage{
		Type: relaypb.HopConnect,
		Peer: &relaypb.Peer{ID: target.Bytes()},
	}
	if err := proto.WriteDelimited(s, req); err != nil {
		s.Reset()
		return nil, wrapTimeout(ctx, fmt.Errorf("%w: write connect: %v", ErrCircuitFailed, err))
	}

	var resp relaypb.HopMessage
	if err := proto.ReadDelimited(s, MaxMessageSize, &resp); err != nil {
		s.Reset()
		return nil, wrapTimeout(ctx, fmt.Errorf("%w: read status: %v", ErrCircuitFailed, err))
	}
	if resp.Type != relaypb.HopStatus {
		s.Reset()
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedMessage, resp.Type)
	}
	switch resp.Status {
	case relaypb.StatusOK:
	case relaypb.StatusNoReservation:
		s.Reset()
		return nil, fmt.Errorf("%w: %s via %s", ErrNoReservation, target.ShortString(), relay.ID.ShortString())
	default:
		s.Reset()
		return nil, fmt.Errorf("%w: %s", ErrCircuitFailed, resp.Status)
	}

	_ = s.SetDeadline(time.Time{})
	return s, nil
}

// CanDial 只处理中继电路地址
func (c *Client) CanDial(addr multiaddr.Multiaddr) bool {
	return multiaddr.IsRelayAddr(addr)
}

// Listen 创建电路监听器，laddr 必须是 /p2p-circuit
func (c *Client) Listen(laddr multiaddr.Multiaddr) (pkgif.Listener, error) {
	if c.closed.Load() {
		return nil, ErrTransportClosed
	}
	if laddr == nil || !laddr.Equal(multiaddr.CircuitMarker) {
		return nil, fmt.Errorf("%w: listen address must be %s, got %v", ErrInvalidCircuitAddr, multiaddr.CircuitMarker, laddr)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener != nil {
		return nil, ErrAlreadyListening
	}
	c.listener = newListener(c)
	return c.listener, nil
}

func (c *Client) currentListener() *Listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listener
}

func (c *Client) removeListener(l *Listener) {
	c.mu.Lock()
	if c.listener == l {
		c.listener = nil
	}
	c.mu.Unlock()
}

// Protocols 返回支持的协议编号
func (c *Client) Protocols() []int {
	return []int{multiaddr.P_P2P_CIRCUIT}
}

// Proxy 中继电路是代理传输
func (c *Client) Proxy() bool {
	return true
}

// Close 关闭传输层与监听器
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.host.RemoveStreamHandler(protocolids.RelayStop)
	if l := c.currentListener(); l != nil {
		l.Close()
	}
	return c.emitRelayed.Close()
}

// wrapTimeout 将超时类错误归为 ErrTimeout
func wrapTimeout(ctx context.Context, err error) error {
	var ne net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	mss "github.com/multiformats/go-multistream"
	"go.uber.org/multierr"

	"github.com/dep2p/go-natpunch/internal/util/logger"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var log = logger.Logger("core/host")

var _ pkgif.Host = (*Host)(nil)

// Host P2P 主机实现
type Host struct {
	swarm    pkgif.Swarm
	addrBook pkgif.AddressBook
	eventbus pkgif.EventBus
	privKey  crypto.PrivateKey
	config   *Config

	// 入站协议协商
	mux *mss.MultistreamMuxer[types.ProtocolID]

	emitConnected    pkgif.Emitter
	emitDisconnected pkgif.Emitter
	notifee          *pkgif.NotifyBundle

	mu     sync.RWMutex
	closed atomic.Bool
}

// New 创建新的 Host
func New(opts ...Option) (*Host, error) {
	h := &Host{
		config: DefaultConfig(),
		mux:    mss.NewMultistreamMuxer[types.ProtocolID](),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if h.swarm == nil {
		return nil, fmt.Errorf("%w: swarm", ErrMissingDependency)
	}

	if h.eventbus != nil {
		var err error
		if h.emitConnected, err = h.eventbus.Emitter(new(types.EvtPeerConnected)); err != nil {
			return nil, err
		}
		if h.emitDisconnected, err = h.eventbus.Emitter(new(types.EvtPeerDisconnected)); err != nil {
			h.emitConnected.Close()
			return nil, err
		}
	}

	h.notifee = &pkgif.NotifyBundle{
		ConnectedF:    h.onConnected,
		DisconnectedF: h.onDisconnected,
	}
	h.swarm.Notify(h.notifee)
	h.swarm.SetInboundStreamHandler(h.handleInboundStream)
	return h, nil
}

// ID 返回节点 ID
func (h *Host) ID() types.PeerID {
	return h.swarm.LocalPeer()
}

// PrivateKey 返回节点私钥
func (h *Host) PrivateKey() crypto.PrivateKey {
	return h.privKey
}

// Network 返回底层 Swarm
func (h *Host) Network() pkgif.Swarm {
	return h.swarm
}

// AddressBook 返回地址簿
func (h *Host) AddressBook() pkgif.AddressBook {
	return h.addrBook
}

// EventBus 返回事件总线
func (h *Host) EventBus() pkgif.EventBus {
	return h.eventbus
}

// Connect 连接到指定节点
//
// 先把地址写入地址簿，再委托 Swarm.DialPeer。已有连接时直接返回。
func (h *Host) Connect(ctx context.Context, pi types.AddrInfo) error {
	if h.closed.Load() {
		return ErrHostClosed
	}
	if h.swarm.Connectedness(pi.ID) != pkgif.NotConnected {
		return nil
	}
	if h.addrBook != nil && len(pi.Addrs) > 0 {
		h.addrBook.AddAddrs(pi.ID, pi.Addrs, h.config.ConnectAddrTTL)
	}

	conn, err := h.swarm.DialPeer(ctx, pi.ID)
	if err != nil {
		log.Debug("连接节点失败", "peer", pi.ID.ShortString(), "error", err)
		return err
	}
	connType := "direct"
	if conn.IsRelayed() {
		connType = "relay"
	}
	log.Info("连接节点成功", "peer", pi.ID.ShortString(), "connType", connType)
	return nil
}

// NewStream 创建到指定节点的新流并协商协议，直连优先
func (h *Host) NewStream(ctx context.Context, p types.PeerID, protocolIDs ...types.ProtocolID) (pkgif.Stream, error) {
	if h.closed.Load() {
		return nil, ErrHostClosed
	}
	if len(protocolIDs) == 0 {
		return nil, ErrNoProtocol
	}
	s, err := h.swarm.NewStream(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}
	return h.selectProtocol(ctx, s, protocolIDs)
}

// NewStreamOnConn 在指定连接上创建新流并协商协议
func (h *Host) NewStreamOnConn(ctx context.Context, conn pkgif.Connection, protocolIDs ...types.ProtocolID) (pkgif.Stream, error) {
	if h.closed.Load() {
		return nil, ErrHostClosed
	}
	if len(protocolIDs) == 0 {
		return nil, ErrNoProtocol
	}
	s, err := conn.NewStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}
	return h.selectProtocol(ctx, s, protocolIDs)
}

// selectProtocol 客户端侧 multistream-select 协商
func (h *Host) selectProtocol(ctx context.Context, s pkgif.Stream, protos []types.ProtocolID) (pkgif.Stream, error) {
	deadline := time.Now().Add(h.config.NegotiationTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.SetDeadline(deadline)

	selected, err := mss.SelectOneOf(protos, s)
	if err != nil {
		s.Reset()
		return nil, fmt.Errorf("protocol negotiation failed: %w", err)
	}
	_ = s.SetDeadline(time.Time{})
	s.SetProtocol(selected)
	return s, nil
}

// SetStreamHandler 为指定协议设置流处理器
func (h *Host) SetStreamHandler(protocolID types.ProtocolID, handler pkgif.StreamHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mux.AddHandler(protocolID, func(proto types.ProtocolID, rwc io.ReadWriteCloser) error {
		s, ok := rwc.(pkgif.Stream)
		if !ok {
			return fmt.Errorf("unexpected stream type for protocol %s", proto)
		}
		handler(s)
		return nil
	})
	log.Debug("注册协议处理器", "protocol", protocolID)
}

// RemoveStreamHandler 移除指定协议的流处理器
func (h *Host) RemoveStreamHandler(protocolID types.ProtocolID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mux.RemoveHandler(protocolID)
	log.Debug("移除协议处理器", "protocol", protocolID)
}

// Protocols 返回已注册的协议
func (h *Host) Protocols() []types.ProtocolID {
	return h.mux.Protocols()
}

// handleInboundStream 服务端侧协商后路由到协议处理器
func (h *Host) handleInboundStream(s pkgif.Stream) {
	if h.closed.Load() {
		s.Reset()
		return
	}

	_ = s.SetDeadline(time.Now().Add(h.config.NegotiationTimeout))
	proto, handler, err := h.mux.Negotiate(s)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			log.Debug("协议协商失败", "peer", s.Conn().RemotePeer().ShortString(), "error", err)
		}
		s.Reset()
		return
	}
	_ = s.SetDeadline(time.Time{})
	s.SetProtocol(proto)

	if err := handler(proto, s); err != nil {
		log.Debug("协议处理失败", "peer", s.Conn().RemotePeer().ShortString(), "protocol", proto, "error", err)
		s.Reset()
	}
}

func (h *Host) onConnected(c pkgif.Connection) {
	if h.emitConnected == nil {
		return
	}
	p := c.RemotePeer()
	_ = h.emitConnected.Emit(types.EvtPeerConnected{
		BaseEvent: types.NewBaseEvent(),
		PeerID:    p,
		Direction: c.Direction(),
		Relayed:   c.IsRelayed(),
		NumConns:  len(h.swarm.ConnsToPeer(p)),
	})
}

// onDisconnected 最后一条连接断开时发布事件
func (h *Host) onDisconnected(c pkgif.Connection) {
	if h.emitDisconnected == nil {
		return
	}
	p := c.RemotePeer()
	if h.swarm.Connectedness(p) != pkgif.NotConnected {
		return
	}
	_ = h.emitDisconnected.Emit(types.EvtPeerDisconnected{
		BaseEvent: types.NewBaseEvent(),
		PeerID:    p,
	})
}

// Close 关闭 Host 及底层 Swarm
func (h *Host) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	log.Info("正在关闭 Host")

	errs := h.swarm.Close()
	h.swarm.StopNotify(h.notifee)
	if h.emitConnected != nil {
		errs = multierr.Append(errs, h.emitConnected.Close())
	}
	if h.emitDisconnected != nil {
		errs = multierr.Append(errs, h.emitDisconnected.Close())
	}
	return errs
}

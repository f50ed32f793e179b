package identify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-natpunch/internal/core/metrics"
	"github.com/dep2p/go-natpunch/internal/util/logger"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/lib/proto"
	pb "github.com/dep2p/go-natpunch/pkg/lib/proto/identify"
	"github.com/dep2p/go-natpunch/pkg/protocolids"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var log = logger.Logger("protocol/identify")

// ProtocolID identify 协议 ID
const ProtocolID = protocolids.Identify

// connState 单条连接上的交换状态
//
// Handler 可能早于 Connected 通知被调用，所以状态按需创建。
type connState struct {
	sent     chan struct{}
	received chan struct{}
	gone     chan struct{}

	sentOnce   sync.Once
	recvOnce   sync.Once
	goneOnce   sync.Once
	clientOnce sync.Once
	failOnce   sync.Once

	// recvErr 在 received 关闭前写入
	recvErr      error
	unidentified atomic.Bool
}

func newConnState() *connState {
	return &connState{
		sent:     make(chan struct{}),
		received: make(chan struct{}),
		gone:     make(chan struct{}),
	}
}

func (st *connState) markSent() {
	st.sentOnce.Do(func() { close(st.sent) })
}

func (st *connState) markReceived(err error) {
	st.recvOnce.Do(func() {
		st.recvErr = err
		close(st.received)
	})
}

func (st *connState) markGone() {
	st.goneOnce.Do(func() { close(st.gone) })
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Service identify 服务
type Service struct {
	host   pkgif.Host
	config *Config

	emitIdentified pkgif.Emitter
	emitFailed     pkgif.Emitter
	notifee        *pkgif.NotifyBundle

	mu    sync.Mutex
	conns map[pkgif.Connection]*connState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
	closed  atomic.Bool
}

// NewService 创建 identify 服务
func NewService(host pkgif.Host, cfg *Config) (*Service, error) {
	if host == nil {
		return nil, errors.New("identify: host is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		host:   host,
		config: cfg,
		conns:  make(map[pkgif.Connection]*connState),
		ctx:    ctx,
		cancel: cancel,
	}
	if bus := host.EventBus(); bus != nil {
		var err error
		if s.emitIdentified, err = bus.Emitter(new(types.EvtPeerIdentified)); err != nil {
			cancel()
			return nil, err
		}
		if s.emitFailed, err = bus.Emitter(new(types.EvtIdentifyFailed)); err != nil {
			s.emitIdentified.Close()
			cancel()
			return nil, err
		}
	}
	s.notifee = &pkgif.NotifyBundle{
		ConnectedF:    s.onConnected,
		DisconnectedF: s.onDisconnected,
	}
	return s, nil
}

// Start 注册协议处理器并对已有连接发起交换
func (s *Service) Start() error {
	if s.closed.Load() {
		return ErrServiceClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	s.host.SetStreamHandler(ProtocolID, s.Handler)
	s.host.Network().Notify(s.notifee)
	for _, c := range s.host.Network().Conns() {
		s.onConnected(c)
	}
	return nil
}

// Close 停止服务，等待中的 IdentifyWait 返回 ErrServiceClosed
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.started.Load() {
		s.host.RemoveStreamHandler(ProtocolID)
		s.host.Network().StopNotify(s.notifee)
	}
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	for c, st := range s.conns {
		st.markGone()
		delete(s.conns, c)
	}
	s.mu.Unlock()

	var errs error
	if s.emitIdentified != nil {
		errs = multierr.Append(errs, s.emitIdentified.Close())
	}
	if s.emitFailed != nil {
		errs = multierr.Append(errs, s.emitFailed.Close())
	}
	return errs
}

// state 返回连接状态，不存在时创建
func (s *Service) state(c pkgif.Connection) *connState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.conns[c]
	if !ok {
		st = newConnState()
		if c.IsClosed() || s.closed.Load() {
			st.markGone()
			return st
		}
		s.conns[c] = st
	}
	return st
}

func (s *Service) onConnected(c pkgif.Connection) {
	st := s.state(c)
	s.startClient(c, st)
}

func (s *Service) onDisconnected(c pkgif.Connection) {
	s.mu.Lock()
	st, ok := s.conns[c]
	delete(s.conns, c)
	s.mu.Unlock()
	if ok {
		st.markGone()
	}
}

func (s *Service) startClient(c pkgif.Connection, st *connState) {
	st.clientOnce.Do(func() {
		if s.closed.Load() {
			st.markReceived(ErrServiceClosed)
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.identifyConn(c, st); err != nil {
				s.fail(c, st, err)
			}
		}()
	})
}

// ============================================================================
//                              服务端方向
// ============================================================================

// Handler 应答对端的 identify 请求
func (s *Service) Handler(stream pkgif.Stream) {
	defer stream.Close()

	conn := stream.Conn()
	_ = stream.SetDeadline(time.Now().Add(s.config.Timeout))

	msg := s.localInfo(conn)
	if err := proto.WriteDelimited(stream, msg); err != nil {
		log.Debug("发送 identify 消息失败",
			"peer", conn.RemotePeer().ShortString(),
			"err", err)
		stream.Reset()
		return
	}
	s.state(conn).markSent()
	log.Debug("已发送 identify 消息", "peer", conn.RemotePeer().ShortString())
}

func (s *Service) localInfo(conn pkgif.Connection) *pb.Identify {
	msg := &pb.Identify{
		ProtocolVersion: s.config.ProtocolVersion,
		AgentVersion:    s.config.AgentVersion,
	}
	if priv := s.host.PrivateKey(); priv != nil {
		if raw, err := crypto.MarshalPublicKey(priv.GetPublic()); err == nil {
			msg.PublicKey = raw
		}
	}
	for _, a := range s.host.Addrs() {
		msg.ListenAddrs = append(msg.ListenAddrs, a.Bytes())
	}
	for _, p := range s.host.Protocols() {
		msg.Protocols = append(msg.Protocols, string(p))
	}
	if ra := conn.RemoteMultiaddr(); ra != nil {
		msg.ObservedAddr = ra.Bytes()
	}
	return msg
}

// ============================================================================
//                              客户端方向
// ============================================================================

// identifyConn 向对端请求 identify 消息并写入地址簿
func (s *Service) identifyConn(c pkgif.Connection, st *connState) (err error) {
	defer func() { st.markReceived(err) }()

	ctx, cancel := context.WithTimeout(s.ctx, s.config.Timeout)
	defer cancel()

	stream, err := s.host.NewStreamOnConn(ctx, c, ProtocolID)
	if err != nil {
		return s.wrapTimeout(ctx, fmt.Errorf("open identify stream: %w", err))
	}
	defer stream.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(dl)
	}
	var msg pb.Identify
	if err := proto.ReadDelimited(stream, MaxMessageSize, &msg); err != nil {
		stream.Reset()
		return s.wrapTimeout(ctx, fmt.Errorf("read identify message: %w", err))
	}
	return s.consume(c, &msg)
}

func (s *Service) wrapTimeout(ctx context.Context, err error) error {
	var ne net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if s.ctx.Err() != nil {
		return ErrServiceClosed
	}
	return err
}

// consume 处理收到的 identify 消息
func (s *Service) consume(c pkgif.Connection, msg *pb.Identify) error {
	p := c.RemotePeer()

	if len(msg.PublicKey) > 0 {
		pub, err := crypto.UnmarshalPublicKey(msg.PublicKey)
		if err != nil {
			return fmt.Errorf("invalid public key: %w", err)
		}
		if !crypto.VerifyPeerID(pub, p) {
			return ErrPeerIDMismatch
		}
	}

	listen := decodeAddrs(msg.ListenAddrs)
	book := s.host.AddressBook()
	if book != nil && len(listen) > 0 {
		book.AddAddrs(p, listen, s.config.AddrTTL)
	}

	protos := make([]types.ProtocolID, 0, len(msg.Protocols))
	for _, id := range msg.Protocols {
		protos = append(protos, types.ProtocolID(id))
	}
	if book != nil {
		book.SetProtocols(p, protos)
	}

	var observed multiaddr.Multiaddr
	if len(msg.ObservedAddr) > 0 {
		if m, err := multiaddr.NewMultiaddrBytes(msg.ObservedAddr); err == nil {
			observed = m
		} else {
			log.Debug("忽略无法解析的观测地址", "peer", p.ShortString(), "err", err)
		}
	}
	if observed != nil && !multiaddr.IsRelayAddr(observed) && book != nil {
		book.AddObservedAddr(types.ObservedAddrRecord{
			Addr:      observed,
			Reporter:  p,
			Timestamp: time.Now(),
		})
	}

	metrics.IdentifyResult("ok")
	log.Info("地址学习交换完成",
		"peer", p.ShortString(),
		"agent", msg.AgentVersion,
		"observed", observed,
		"listenAddrs", len(listen))

	if s.emitIdentified != nil {
		_ = s.emitIdentified.Emit(types.EvtPeerIdentified{
			BaseEvent:       types.NewBaseEvent(),
			PeerID:          p,
			ListenAddrs:     listen,
			Protocols:       protos,
			ObservedAddr:    observed,
			ProtocolVersion: msg.ProtocolVersion,
			AgentVersion:    msg.AgentVersion,
		})
	}
	return nil
}

func decodeAddrs(raw [][]byte) []multiaddr.Multiaddr {
	out := make([]multiaddr.Multiaddr, 0, len(raw))
	for _, b := range raw {
		m, err := multiaddr.NewMultiaddrBytes(b)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

// fail 标记连接为未识别并发布失败事件，每条连接至多一次
func (s *Service) fail(c pkgif.Connection, st *connState, err error) {
	st.unidentified.Store(true)
	st.failOnce.Do(func() {
		result := "error"
		if errors.Is(err, ErrTimeout) {
			result = "timeout"
		}
		metrics.IdentifyResult(result)
		log.Debug("地址学习交换失败",
			"peer", c.RemotePeer().ShortString(),
			"err", err)
		if s.emitFailed != nil {
			_ = s.emitFailed.Emit(types.EvtIdentifyFailed{
				BaseEvent: types.NewBaseEvent(),
				PeerID:    c.RemotePeer(),
				Reason:    err,
			})
		}
	})
}

// ============================================================================
//                              等待
// ============================================================================

// IdentifyWait 等待连接上两个方向的交换都完成
//
// 超过 Timeout 时连接被标记为未识别并返回 ErrTimeout，连接不会被关闭。
func (s *Service) IdentifyWait(ctx context.Context, c pkgif.Connection) error {
	if s.closed.Load() {
		return ErrServiceClosed
	}
	st := s.state(c)
	s.startClient(c, st)

	wctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	sent, received := st.sent, st.received
	for sent != nil || received != nil {
		select {
		case <-sent:
			sent = nil
		case <-received:
			received = nil
			if st.recvErr != nil {
				return st.recvErr
			}
		case <-st.gone:
			if s.closed.Load() {
				return ErrServiceClosed
			}
			return ErrConnClosed
		case <-wctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err := fmt.Errorf("%w: peer %s", ErrTimeout, c.RemotePeer().ShortString())
			s.fail(c, st, err)
			return err
		}
	}
	return nil
}

// IsIdentified 连接上的两个方向是否都已成功完成
func (s *Service) IsIdentified(c pkgif.Connection) bool {
	s.mu.Lock()
	st, ok := s.conns[c]
	s.mu.Unlock()
	if !ok || st.unidentified.Load() {
		return false
	}
	return isClosed(st.sent) && isClosed(st.received) && st.recvErr == nil
}

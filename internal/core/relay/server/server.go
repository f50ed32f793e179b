package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-natpunch/internal/core/metrics"
	"github.com/dep2p/go-natpunch/internal/util/logger"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/lib/proto"
	relaypb "github.com/dep2p/go-natpunch/pkg/lib/proto/relay"
	"github.com/dep2p/go-natpunch/pkg/protocolids"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var log = logger.Logger("relay/server")

const (
	// MaxMessageSize HOP/STOP 消息最大长度
	MaxMessageSize = 4096

	gcInterval = time.Minute
)

// ============================================================================
//                              Server 实现
// ============================================================================

// Server 中继服务端
type Server struct {
	host   pkgif.Host
	config Config
	clock  clock.Clock

	mu           sync.Mutex
	reservations map[types.PeerID]time.Time
	limiters     map[types.PeerID]*rate.Limiter
	circuits     map[types.PeerID]int
	numCircuits  int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option 中继服务选项
type Option func(*Server)

// WithClock 注入时钟
func WithClock(c clock.Clock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// New 创建中继服务
func New(host pkgif.Host, cfg Config, opts ...Option) (*Server, error) {
	if host == nil {
		return nil, ErrNilHost
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		host:         host,
		config:       cfg,
		clock:        clock.New(),
		reservations: make(map[types.PeerID]time.Time),
		limiters:     make(map[types.PeerID]*rate.Limiter),
		circuits:     make(map[types.PeerID]int),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start 注册 HOP 处理器并启动过期清理
func (s *Server) Start() error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	s.host.SetStreamHandler(protocolids.RelayHop, s.handleHop)
	s.wg.Add(1)
	go s.gcLoop()
	log.Info("中继服务已启动", "peer", s.host.ID().ShortString(), "ttl", s.config.ReservationTTL)
	return nil
}

// Close 停止服务，已建立的电路随各自的流结束
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.host.RemoveStreamHandler(protocolids.RelayHop)
	s.cancel()
	s.wg.Wait()
	return nil
}

// HasReservation 目标节点是否持有未过期的预约
func (s *Server) HasReservation(p types.PeerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validLocked(p, s.clock.Now())
}

// NumReservations 当前有效预约数
func (s *Server) NumReservations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countValidLocked(s.clock.Now())
}

func (s *Server) validLocked(p types.PeerID, now time.Time) bool {
	expiry, ok := s.reservations[p]
	return ok && now.Before(expiry)
}

func (s *Server) countValidLocked(now time.Time) int {
	n := 0
	for _, expiry := range s.reservations {
		if now.Before(expiry) {
			n++
		}
	}
	return n
}

// ============================================================================
//                              HOP 协议
// ============================================================================

func (s *Server) handleHop(stream pkgif.Stream) {
	_ = stream.SetDeadline(time.Now().Add(s.config.ConnectTimeout))

	var msg relaypb.HopMessage
	if err := proto.ReadDelimited(stream, MaxMessageSize, &msg); err != nil {
		log.Debug("读取 HOP 消息失败", "peer", stream.Conn().RemotePeer().ShortString(), "error", err)
		s.hopStatus(stream, relaypb.StatusMalformedMessage)
		return
	}

	switch msg.Type {
	case relaypb.HopReserve:
		s.handleReserve(stream)
	case relaypb.HopConnect:
		s.handleConnect(stream, &msg)
	default:
		s.hopStatus(stream, relaypb.StatusUnexpectedMessage)
	}
}

func (s *Server) handleReserve(stream pkgif.Stream) {
	p := stream.Conn().RemotePeer()
	if stream.Conn().IsRelayed() {
		log.Debug("拒绝经中继发起的预约", "peer", p.ShortString())
		metrics.ReservationResult("refused")
		s.hopStatus(stream, relaypb.StatusPermissionDenied)
		return
	}

	now := s.clock.Now()
	s.mu.Lock()
	lim, ok := s.limiters[p]
	if !ok {
		lim = rate.NewLimiter(rate.Every(s.config.ReservationInterval), s.config.ReservationBurst)
		s.limiters[p] = lim
	}
	if !lim.AllowN(now, 1) {
		s.mu.Unlock()
		log.Debug("预约请求过于频繁", "peer", p.ShortString())
		metrics.ReservationResult("refused")
		s.hopStatus(stream, relaypb.StatusResourceLimitExceeded)
		return
	}
	if !s.validLocked(p, now) && s.countValidLocked(now) >= s.config.MaxReservations {
		s.mu.Unlock()
		log.Debug("预约数已达上限", "peer", p.ShortString())
		metrics.ReservationResult("refused")
		s.hopStatus(stream, relaypb.StatusReservationRefused)
		return
	}
	expiry := now.Add(s.config.ReservationTTL)
	s.reservations[p] = expiry
	s.mu.Unlock()

	resp := &relaypb.HopMessage{
		Type:   relaypb.HopStatus,
		Status: relaypb.StatusOK,
		Reservation: &relaypb.Reservation{
			Expire: uint64(expiry.Unix()),
			Addrs:  s.advertisedAddrs(),
		},
		Limit: s.limit(),
	}
	if err := proto.WriteDelimited(stream, resp); err != nil {
		log.Debug("发送预约响应失败", "peer", p.ShortString(), "error", err)
		stream.Reset()
		return
	}
	stream.Close()
	metrics.ReservationResult("granted")
	log.Info("授予中继预约", "peer", p.ShortString(), "expiry", expiry)
}

func (s *Server) handleConnect(stream pkgif.Stream, msg *relaypb.HopMessage) {
	src := stream.Conn().RemotePeer()
	if stream.Conn().IsRelayed() {
		metrics.CircuitResult("denied")
		s.hopStatus(stream, relaypb.StatusPermissionDenied)
		return
	}
	if msg.Peer == nil {
		metrics.CircuitResult("malformed")
		s.hopStatus(stream, relaypb.StatusMalformedMessage)
		return
	}
	dst, err := types.PeerIDFromBytes(msg.Peer.ID)
	if err != nil {
		metrics.CircuitResult("malformed")
		s.hopStatus(stream, relaypb.StatusMalformedMessage)
		return
	}
	if !s.HasReservation(dst) {
		log.Debug("目标没有预约", "src", src.ShortString(), "dst", dst.ShortString())
		metrics.CircuitResult("no_reservation")
		s.hopStatus(stream, relaypb.StatusNoReservation)
		return
	}
	if !s.acquireCircuit(dst) {
		metrics.CircuitResult("limited")
		s.hopStatus(stream, relaypb.StatusResourceLimitExceeded)
		return
	}

	dstStream, err := s.openStop(src, dst)
	if err != nil {
		s.releaseCircuit(dst)
		log.Debug("打开 STOP 流失败", "dst", dst.ShortString(), "error", err)
		metrics.CircuitResult("failed")
		s.hopStatus(stream, relaypb.StatusConnectionFailed)
		return
	}

	resp := &relaypb.HopMessage{Type: relaypb.HopStatus, Status: relaypb.StatusOK, Limit: s.limit()}
	if err := proto.WriteDelimited(stream, resp); err != nil {
		s.releaseCircuit(dst)
		stream.Reset()
		dstStream.Reset()
		metrics.CircuitResult("failed")
		return
	}

	metrics.CircuitResult("ok")
	log.Debug("电路已建立", "src", src.ShortString(), "dst", dst.ShortString())
	s.splice(stream, dstStream, func() { s.releaseCircuit(dst) })
}

// openStop 向目标打开 STOP 流并完成握手
func (s *Server) openStop(src, dst types.PeerID) (pkgif.Stream, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.ConnectTimeout)
	defer cancel()

	st, err := s.host.NewStream(ctx, dst, protocolids.RelayStop)
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = st.SetDeadline(dl)
	}
	req := &relaypb.StopMessage{
		Type:  relaypb.StopConnect,
		Peer:  &relaypb.Peer{ID: src.Bytes()},
		Limit: s.limit(),
	}
	if err := proto.WriteDelimited(st, req); err != nil {
		st.Reset()
		return nil, err
	}
	var resp relaypb.StopMessage
	if err := proto.ReadDelimited(st, MaxMessageSize, &resp); err != nil {
		st.Reset()
		return nil, err
	}
	if resp.Type != relaypb.StopStatus || resp.Status != relaypb.StatusOK {
		st.Reset()
		return nil, &statusError{typ: resp.Type.String(), status: resp.Status}
	}
	_ = st.SetDeadline(time.Time{})
	return st, nil
}

func (s *Server) hopStatus(stream pkgif.Stream, status relaypb.Status) {
	_ = proto.WriteDelimited(stream, &relaypb.HopMessage{Type: relaypb.HopStatus, Status: status})
	stream.Close()
}

func (s *Server) limit() *relaypb.Limit {
	if s.config.CircuitDuration == 0 && s.config.CircuitData == 0 {
		return nil
	}
	return &relaypb.Limit{
		Duration: uint32(s.config.CircuitDuration / time.Second),
		Data:     s.config.CircuitData,
	}
}

// advertisedAddrs 中继的直连地址，附带 /p2p/<relay>
func (s *Server) advertisedAddrs() [][]byte {
	var out [][]byte
	for _, a := range s.host.Addrs() {
		if multiaddr.IsRelayAddr(a) {
			continue
		}
		m, err := multiaddr.Join(a, s.host.ID().Bytes())
		if err != nil {
			continue
		}
		out = append(out, m.Bytes())
	}
	return out
}

func (s *Server) acquireCircuit(dst types.PeerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.numCircuits >= s.config.MaxCircuits || s.circuits[dst] >= s.config.MaxCircuitsPerPeer {
		return false
	}
	s.numCircuits++
	s.circuits[dst]++
	return true
}

func (s *Server) releaseCircuit(dst types.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numCircuits--
	if s.circuits[dst]--; s.circuits[dst] <= 0 {
		delete(s.circuits, dst)
	}
}

// gcLoop 定期清理过期预约与闲置限速器
func (s *Server) gcLoop() {
	defer s.wg.Done()
	t := s.clock.Ticker(gcInterval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			s.gc()
		}
	}
}

func (s *Server) gc() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, expiry := range s.reservations {
		if !now.Before(expiry) {
			delete(s.reservations, p)
			log.Debug("移除过期预约", "peer", p.ShortString())
		}
	}
	for p, lim := range s.limiters {
		if _, ok := s.reservations[p]; !ok && lim.TokensAt(now) >= float64(s.config.ReservationBurst) {
			delete(s.limiters, p)
		}
	}
}

package ping

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-natpunch/internal/util/logger"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/protocolids"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var log = logger.Logger("protocol/ping")

// ProtocolID ping 协议 ID
const ProtocolID = protocolids.Ping

const (
	// PingSize Ping 消息大小（32 字节）
	PingSize = 32

	// PingTimeout Ping 超时时间
	PingTimeout = 10 * time.Second

	// HandlerIdleTimeout Handler 空闲超时时间
	HandlerIdleTimeout = 60 * time.Second
)

// ErrDataMismatch Ping 回显数据不匹配
var ErrDataMismatch = errors.New("ping: echo data mismatch")

// Config Ping 服务配置
type Config struct {
	// Interval 对每个已连接节点周期性 ping 的间隔，0 表示只响应不主动 ping
	Interval time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{Interval: 15 * time.Second}
}

// Option 服务选项
type Option func(*Service)

// WithClock 注入时钟（测试用 clock.NewMock()）
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// Service Ping 服务
//
// 响应对端的 ping，并按 Interval 对所有已连接节点测量 RTT。
type Service struct {
	host     pkgif.Host
	clock    clock.Clock
	interval time.Duration
	started  atomic.Bool

	mu       sync.Mutex
	rtts     map[types.PeerID]time.Duration
	inflight map[types.PeerID]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService 创建 Ping 服务，cfg 为 nil 时只响应不主动 ping
func NewService(host pkgif.Host, cfg *Config, opts ...Option) *Service {
	s := &Service{
		host:     host,
		clock:    clock.New(),
		rtts:     make(map[types.PeerID]time.Duration),
		inflight: make(map[types.PeerID]struct{}),
	}
	if cfg != nil {
		s.interval = cfg.Interval
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 注册协议处理器并启动周期 ping
func (s *Service) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	s.host.SetStreamHandler(ProtocolID, s.Handler)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if s.interval > 0 {
		s.wg.Add(1)
		go s.loop()
	}
	return nil
}

// Close 移除协议处理器并停止周期 ping
func (s *Service) Close() error {
	if s.started.CompareAndSwap(true, false) {
		s.host.RemoveStreamHandler(ProtocolID)
		s.cancel()
		s.wg.Wait()
	}
	return nil
}

// RTT 返回最近一次测得的往返时间
func (s *Service) RTT(peer types.PeerID) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rtt, ok := s.rtts[peer]
	return rtt, ok
}

func (s *Service) loop() {
	defer s.wg.Done()
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			peers := s.host.Network().Peers()
			s.forgetExcept(peers)
			for _, p := range peers {
				s.pingAsync(p)
			}
		}
	}
}

// forgetExcept 丢弃已断开节点的 RTT
func (s *Service) forgetExcept(peers []types.PeerID) {
	keep := make(map[types.PeerID]struct{}, len(peers))
	for _, p := range peers {
		keep[p] = struct{}{}
	}
	s.mu.Lock()
	for p := range s.rtts {
		if _, ok := keep[p]; !ok {
			delete(s.rtts, p)
		}
	}
	s.mu.Unlock()
}

// pingAsync 每个节点同时只有一个进行中的 ping
func (s *Service) pingAsync(peer types.PeerID) {
	s.mu.Lock()
	if _, ok := s.inflight[peer]; ok || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.inflight[peer] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, PingTimeout)
		defer cancel()
		_, _ = s.Ping(ctx, peer)

		s.mu.Lock()
		delete(s.inflight, peer)
		s.mu.Unlock()
	}()
}

// Handler 处理 Ping 请求（服务器端），读取数据并回显
func (s *Service) Handler(stream pkgif.Stream) {
	defer stream.Close()

	buf := make([]byte, PingSize)
	for {
		_ = stream.SetReadDeadline(time.Now().Add(HandlerIdleTimeout))
		if _, err := io.ReadFull(stream, buf); err != nil {
			return
		}
		if _, err := stream.Write(buf); err != nil {
			return
		}
	}
}

// Ping 测量到指定节点的 RTT 并记录日志
func (s *Service) Ping(ctx context.Context, peer types.PeerID) (time.Duration, error) {
	rtt, err := Ping(ctx, s.host, peer)
	if err != nil {
		log.Debug("ping 失败", "peer", peer.ShortString(), "err", err)
		return 0, err
	}
	s.mu.Lock()
	s.rtts[peer] = rtt
	s.mu.Unlock()
	log.Info("ping", "peer", peer.ShortString(), "rtt", rtt)
	return rtt, nil
}

// Ping 主动 Ping 节点（客户端），返回往返时间
func Ping(ctx context.Context, host pkgif.Host, peer types.PeerID) (time.Duration, error) {
	stream, err := host.NewStream(ctx, peer, ProtocolID)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	deadline := time.Now().Add(PingTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = stream.SetDeadline(deadline)

	buf := make([]byte, PingSize)
	if _, err := rand.Read(buf); err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := stream.Write(buf); err != nil {
		return 0, err
	}
	echo := make([]byte, PingSize)
	if _, err := io.ReadFull(stream, echo); err != nil {
		return 0, err
	}
	rtt := time.Since(start)

	if !bytes.Equal(buf, echo) {
		return 0, ErrDataMismatch
	}
	return rtt, nil
}

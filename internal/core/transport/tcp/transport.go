package tcp

import (
	"context"
	"fmt"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-natpunch/internal/util/logger"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var log = logger.Logger("transport/tcp")

const (
	// DefaultDialTimeout 默认拨号超时
	DefaultDialTimeout = 10 * time.Second

	// DefaultUpgradeTimeout 入站连接升级超时
	DefaultUpgradeTimeout = 15 * time.Second

	keepAlivePeriod = 30 * time.Second
)

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport TCP 传输层实现
type Transport struct {
	upgrader       pkgif.Upgrader
	reusePort      bool
	dialTimeout    time.Duration
	upgradeTimeout time.Duration

	mu        sync.Mutex
	listeners []*Listener

	closed atomic.Bool
}

var _ pkgif.Transport = (*Transport)(nil)

// Option 传输层选项
type Option func(*Transport)

// WithReusePort 启用/禁用端口复用
func WithReusePort(enable bool) Option {
	return func(t *Transport) { t.reusePort = enable }
}

// WithDialTimeout 设置拨号超时
func WithDialTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.dialTimeout = d
		}
	}
}

// WithUpgradeTimeout 设置入站升级超时
func WithUpgradeTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.upgradeTimeout = d
		}
	}
}

// NewTransport 创建 TCP 传输层
func NewTransport(upgrader pkgif.Upgrader, opts ...Option) *Transport {
	t := &Transport{
		upgrader:       upgrader,
		reusePort:      true,
		dialTimeout:    DefaultDialTimeout,
		upgradeTimeout: DefaultUpgradeTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ReusePort 是否实际启用端口复用
func (t *Transport) ReusePort() bool {
	return t.reusePort && reuseportAvailable
}

// ============================================================================
//                              拨号
// ============================================================================

// Dial 建立出站连接并升级
func (t *Transport) Dial(ctx context.Context, raddr multiaddr.Multiaddr, peerID types.PeerID) (pkgif.UpgradedConn, error) {
	raw, err := t.DialRaw(ctx, raddr)
	if err != nil {
		return nil, err
	}
	uc, err := t.upgrader.Upgrade(ctx, t, raw, types.DirOutbound, peerID)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return uc, nil
}

// DialRaw 建立未升级的 TCP 连接
//
// 启用端口复用时从监听端口发起。同时打开的拨号遇到四元组冲突直接失败，
// 说明对端已经从该端口连了过来；普通拨号则退回临时端口。
func (t *Transport) DialRaw(ctx context.Context, raddr multiaddr.Multiaddr) (pkgif.MultiaddrConn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	network, hostport, err := toNetAddr(raddr)
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: t.dialTimeout, KeepAlive: keepAlivePeriod}

	if t.ReusePort() {
		if laddr := t.reuseLocalAddr(network, raddr); laddr != nil {
			rd := dialer
			rd.LocalAddr = laddr
			rd.Control = reuseControl
			c, err := rd.DialContext(ctx, network, hostport)
			if err == nil {
				return wrapConn(c)
			}
			simOpen, _, _ := pkgif.GetSimultaneousConnect(ctx)
			if simOpen || !isReuseConflict(err) {
				return nil, err
			}
			log.Debug("端口复用拨号冲突，改用临时端口", "raddr", raddr.String(), "err", err)
		}
	}

	c, err := dialer.DialContext(ctx, network, hostport)
	if err != nil {
		return nil, err
	}
	return wrapConn(c)
}

// reuseLocalAddr 选择出站连接绑定的本地地址
//
// 回环目标只能从回环或通配监听地址发起；非回环目标不使用回环监听地址。
func (t *Transport) reuseLocalAddr(network string, raddr multiaddr.Multiaddr) *net.TCPAddr {
	remoteIP, _ := multiaddr.ToIP(raddr)
	remoteLoopback := remoteIP != nil && remoteIP.IsLoopback()

	t.mu.Lock()
	defer t.mu.Unlock()

	var fallback *net.TCPAddr
	for _, l := range t.listeners {
		la, ok := l.nl.Addr().(*net.TCPAddr)
		if !ok {
			continue
		}
		isV4 := la.IP.To4() != nil
		if (network == "tcp4" && !isV4) || (network == "tcp6" && isV4) {
			continue
		}
		switch {
		case la.IP.IsUnspecified():
			return &net.TCPAddr{IP: la.IP, Port: la.Port}
		case la.IP.IsLoopback() != remoteLoopback:
			continue
		case fallback == nil:
			fallback = &net.TCPAddr{IP: la.IP, Port: la.Port}
		}
	}
	return fallback
}

// ============================================================================
//                              监听
// ============================================================================

// Listen 监听入站连接
func (t *Transport) Listen(laddr multiaddr.Multiaddr) (pkgif.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	network, hostport, err := toNetAddr(laddr)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{KeepAlive: keepAlivePeriod}
	if t.ReusePort() {
		lc.Control = reuseControl
	}
	nl, err := lc.Listen(context.Background(), network, hostport)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", laddr, err)
	}
	maddr, err := multiaddr.FromNetAddr(nl.Addr())
	if err != nil {
		_ = nl.Close()
		return nil, err
	}

	l := newListener(t, nl, maddr)
	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()

	log.Info("TCP 监听", "addr", maddr.String(), "reuseport", t.ReusePort())
	return l, nil
}

func (t *Transport) removeListener(l *Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = slices.DeleteFunc(t.listeners, func(x *Listener) bool { return x == l })
}

// ============================================================================
//                              其他接口方法
// ============================================================================

// CanDial 检查是否可以拨号到指定地址（不含中继段的 TCP 地址）
func (t *Transport) CanDial(addr multiaddr.Multiaddr) bool {
	if t.closed.Load() || addr == nil || !multiaddr.IsTCPMultiaddr(addr) {
		return false
	}
	_, _, err := toNetAddr(addr)
	return err == nil
}

// Protocols 返回支持的协议编号
func (t *Transport) Protocols() []int {
	return []int{multiaddr.P_TCP}
}

// Proxy TCP 是直连传输
func (t *Transport) Proxy() bool {
	return false
}

// Close 关闭传输层及其全部监听器
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.mu.Lock()
	ls := slices.Clone(t.listeners)
	t.mu.Unlock()

	var lastErr error
	for _, l := range ls {
		if err := l.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// ============================================================================
//                              辅助函数
// ============================================================================

// toNetAddr 将 /ip4|ip6|dns*/.../tcp/<port> 转换为 net 拨号参数
func toNetAddr(m multiaddr.Multiaddr) (network, hostport string, err error) {
	if m == nil {
		return "", "", ErrUnsupportedAddr
	}
	var host, port string
	multiaddr.ForEach(m, func(c multiaddr.Component) bool {
		switch c.Protocol().Code {
		case multiaddr.P_IP4:
			network, host = "tcp4", c.Value()
		case multiaddr.P_IP6:
			network, host = "tcp6", c.Value()
		case multiaddr.P_DNS4:
			network, host = "tcp4", c.Value()
		case multiaddr.P_DNS6:
			network, host = "tcp6", c.Value()
		case multiaddr.P_DNS:
			network, host = "tcp", c.Value()
		case multiaddr.P_TCP:
			port = c.Value()
			return false
		default:
			err = fmt.Errorf("%w: %s", ErrUnsupportedAddr, m)
			return false
		}
		return true
	})
	if err != nil {
		return "", "", err
	}
	if host == "" || port == "" {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedAddr, m)
	}
	return network, net.JoinHostPort(host, port), nil
}

package client

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// ============================================================================
//                              预约管理
// ============================================================================

// Manager 预约管理器
//
// 每个中继一个维护协程：预约成功后发布电路地址，Expiry-RenewBefore 时续约；
// 续约失败按 RetryInterval 重试，到期仍失败则撤销地址并发布 EvtReservationExpired，
// 之后继续尝试重新预约。与中继的连接及其它连接不受影响。
type Manager struct {
	client *Client
	book   pkgif.AddressBook
	clock  clock.Clock

	emitAccepted pkgif.Emitter
	emitExpired  pkgif.Emitter

	mu           sync.Mutex
	reservations map[types.PeerID]*Reservation
	kept         map[types.PeerID]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ManagerOption 预约管理器选项
type ManagerOption func(*Manager)

// WithClock 注入时钟（测试用 clock.NewMock()）
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// NewManager 创建预约管理器
func NewManager(c *Client, opts ...ManagerOption) (*Manager, error) {
	bus := c.host.EventBus()
	accepted, err := bus.Emitter(new(types.EvtReservationAccepted))
	if err != nil {
		return nil, err
	}
	expired, err := bus.Emitter(new(types.EvtReservationExpired))
	if err != nil {
		accepted.Close()
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		client:       c,
		book:         c.host.AddressBook(),
		clock:        clock.New(),
		emitAccepted: accepted,
		emitExpired:  expired,
		reservations: make(map[types.PeerID]*Reservation),
		kept:         make(map[types.PeerID]struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start 为配置中的每个中继启动维护协程
func (m *Manager) Start() error {
	for _, relay := range m.client.config.Relays {
		m.keep(relay, nil)
	}
	return nil
}

// Reserve 立即预约并持续维护
//
// 已在维护的中继只返回新的预约结果，不会重复启动协程。
func (m *Manager) Reserve(ctx context.Context, relay types.AddrInfo) (*Reservation, error) {
	if m.ctx.Err() != nil {
		return nil, ErrManagerClosed
	}
	rsv, err := m.client.Reserve(ctx, relay)
	if err != nil {
		return nil, err
	}
	m.install(rsv)
	m.keep(relay, rsv)
	return rsv, nil
}

// Reservation 返回指定中继的当前预约
func (m *Manager) Reservation(relay types.PeerID) (*Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[relay]
	return r, ok
}

// Reservations 返回所有当前预约
func (m *Manager) Reservations() []*Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Reservation, 0, len(m.reservations))
	for _, r := range m.reservations {
		out = append(out, r)
	}
	return out
}

// Stop 停止维护，撤销已发布的电路地址
func (m *Manager) Stop() error {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	rs := m.reservations
	m.reservations = make(map[types.PeerID]*Reservation)
	m.mu.Unlock()
	for _, r := range rs {
		for _, a := range r.Addrs {
			m.book.RemoveLocalAddr(a)
		}
	}
	return multierr.Combine(m.emitAccepted.Close(), m.emitExpired.Close())
}

func (m *Manager) keep(relay types.AddrInfo, current *Reservation) {
	m.mu.Lock()
	if _, ok := m.kept[relay.ID]; ok || m.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.kept[relay.ID] = struct{}{}
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(relay, current)
}

// run 单个中继的预约维护循环
func (m *Manager) run(relay types.AddrInfo, current *Reservation) {
	defer m.wg.Done()
	cfg := m.client.config

	for {
		if current == nil {
			rsv, err := m.client.Reserve(m.ctx, relay)
			if err != nil {
				if m.ctx.Err() != nil {
					return
				}
				log.Debug("中继预约失败，稍后重试", "relay", relay.ID.ShortString(), "error", err)
				if !m.sleep(cfg.RetryInterval) {
					return
				}
				continue
			}
			current = rsv
			m.install(rsv)
		}

		if !m.sleep(renewDelay(current.Expiry.Sub(m.clock.Now()), cfg.RenewBefore, cfg.RetryInterval)) {
			return
		}

		// 续约，失败时重试直到过期
		for {
			rsv, err := m.client.Reserve(m.ctx, relay)
			if err == nil {
				current = rsv
				m.install(rsv)
				break
			}
			if m.ctx.Err() != nil {
				return
			}
			now := m.clock.Now()
			if !current.Valid(now) {
				m.expire(current, err)
				current = nil
				break
			}
			log.Debug("续约失败，稍后重试", "relay", relay.ID.ShortString(), "error", err)
			wait := cfg.RetryInterval
			if left := current.Expiry.Sub(now); left < wait {
				wait = left
			}
			if !m.sleep(wait) {
				return
			}
		}
	}
}

// renewDelay 距下次续约的等待时间
//
// 通常为剩余有效期减去 RenewBefore。中继给出的有效期不超过 RenewBefore 时
// 改为剩余有效期的一半，且不少于 minWait。
func renewDelay(left, renewBefore, minWait time.Duration) time.Duration {
	d := left - renewBefore
	if half := left / 2; d < half {
		d = half
	}
	if d < minWait {
		d = minWait
	}
	return d
}

// sleep 按注入的时钟等待，管理器停止时返回 false
func (m *Manager) sleep(d time.Duration) bool {
	if d <= 0 {
		return m.ctx.Err() == nil
	}
	t := m.clock.Timer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-m.ctx.Done():
		return false
	}
}

// install 记录预约并发布电路地址
func (m *Manager) install(r *Reservation) {
	m.mu.Lock()
	old := m.reservations[r.Relay]
	m.reservations[r.Relay] = r
	m.mu.Unlock()

	if old != nil {
		for _, a := range old.Addrs {
			if !multiaddr.Contains(r.Addrs, a) {
				m.book.RemoveLocalAddr(a)
			}
		}
	}
	for _, a := range r.Addrs {
		m.book.AddLocalAddr(a)
	}
	_ = m.emitAccepted.Emit(types.EvtReservationAccepted{
		BaseEvent: types.NewBaseEvent(),
		Relay:     r.Relay,
		Expiry:    r.Expiry,
		Addrs:     r.Addrs,
	})
}

// expire 撤销过期预约的地址
func (m *Manager) expire(r *Reservation, cause error) {
	m.mu.Lock()
	if m.reservations[r.Relay] == r {
		delete(m.reservations, r.Relay)
	}
	m.mu.Unlock()

	for _, a := range r.Addrs {
		m.book.RemoveLocalAddr(a)
	}
	log.Warn("中继预约已过期", "relay", r.Relay.ShortString(), "error", cause)
	_ = m.emitExpired.Emit(types.EvtReservationExpired{
		BaseEvent: types.NewBaseEvent(),
		Relay:     r.Relay,
		Err:       cause,
	})
}

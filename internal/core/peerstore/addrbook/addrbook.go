package addrbook

import (
	"container/heap"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-natpunch/internal/util/logger"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var log = logger.Logger("core/addrbook")

const (
	// DefaultObservedAddrTTL 观测地址记录的有效期
	DefaultObservedAddrTTL = 30 * time.Minute

	// DefaultGCInterval 过期地址清理间隔
	DefaultGCInterval = time.Minute
)

// ObservedAddrRecord 观测地址记录
type ObservedAddrRecord = types.ObservedAddrRecord

// AddrBook 内存地址簿
type AddrBook struct {
	mu sync.RWMutex

	clock       clock.Clock
	observedTTL time.Duration
	gcInterval  time.Duration

	// addrs PeerID → (addr bytes → *expiringAddr)
	addrs        map[types.PeerID]map[string]*expiringAddr
	expiringHeap expiringAddrHeap

	protocols map[types.PeerID][]types.ProtocolID

	// observed Reporter → 最新记录
	observed map[types.PeerID]ObservedAddrRecord

	local []multiaddr.Multiaddr

	emitter pkgif.Emitter

	gcCancel context.CancelFunc
	gcDone   chan struct{}
}

var _ pkgif.AddressBook = (*AddrBook)(nil)

// Option 地址簿选项
type Option func(*AddrBook)

// WithClock 注入时钟
func WithClock(c clock.Clock) Option {
	return func(ab *AddrBook) { ab.clock = c }
}

// WithObservedAddrTTL 设置观测地址有效期
func WithObservedAddrTTL(ttl time.Duration) Option {
	return func(ab *AddrBook) { ab.observedTTL = ttl }
}

// WithGCInterval 设置 GC 间隔
func WithGCInterval(d time.Duration) Option {
	return func(ab *AddrBook) { ab.gcInterval = d }
}

// New 创建地址簿
func New(opts ...Option) *AddrBook {
	ab := &AddrBook{
		clock:       clock.New(),
		observedTTL: DefaultObservedAddrTTL,
		gcInterval:  DefaultGCInterval,
		addrs:       make(map[types.PeerID]map[string]*expiringAddr),
		protocols:   make(map[types.PeerID][]types.ProtocolID),
		observed:    make(map[types.PeerID]ObservedAddrRecord),
	}
	for _, opt := range opts {
		opt(ab)
	}
	return ab
}

// SetEventBus 设置事件总线，本地地址变化时发布 EvtLocalAddrsUpdated
func (ab *AddrBook) SetEventBus(bus pkgif.EventBus) error {
	em, err := bus.Emitter(new(types.EvtLocalAddrsUpdated), pkgif.Stateful())
	if err != nil {
		return err
	}
	ab.mu.Lock()
	ab.emitter = em
	ab.mu.Unlock()
	return nil
}

// ============================================================================
//                              远端节点地址
// ============================================================================

// AddAddrs 添加地址，已存在的地址只在新过期时间更晚时延长
func (ab *AddrBook) AddAddrs(peerID types.PeerID, addrs []multiaddr.Multiaddr, ttl time.Duration) {
	if ttl <= 0 || peerID.IsEmpty() {
		return
	}
	ab.mu.Lock()
	defer ab.mu.Unlock()

	now := ab.clock.Now()
	expiry := now.Add(ttl)
	book := ab.addrs[peerID]
	if book == nil {
		book = make(map[string]*expiringAddr)
		ab.addrs[peerID] = book
	}

	for _, addr := range addrs {
		if addr == nil {
			continue
		}
		key := string(addr.Bytes())
		if existing, ok := book[key]; ok {
			if expiry.After(existing.Expiry) {
				existing.TTL = ttl
				existing.Expiry = expiry
				heap.Fix(&ab.expiringHeap, existing.heapIndex)
			}
			continue
		}
		ea := &expiringAddr{Addr: addr, TTL: ttl, Expiry: expiry, PeerID: peerID}
		book[key] = ea
		heap.Push(&ab.expiringHeap, ea)
	}
}

// SetAddrs 覆盖地址的 TTL，ttl<=0 时删除这些地址
func (ab *AddrBook) SetAddrs(peerID types.PeerID, addrs []multiaddr.Multiaddr, ttl time.Duration) {
	if peerID.IsEmpty() {
		return
	}
	ab.mu.Lock()
	defer ab.mu.Unlock()

	book := ab.addrs[peerID]
	if book == nil {
		if ttl <= 0 {
			return
		}
		book = make(map[string]*expiringAddr)
		ab.addrs[peerID] = book
	}

	expiry := ab.clock.Now().Add(ttl)
	for _, addr := range addrs {
		if addr == nil {
			continue
		}
		key := string(addr.Bytes())
		existing, ok := book[key]
		switch {
		case ttl <= 0 && ok:
			ab.removeLocked(existing)
		case ttl <= 0:
		case ok:
			existing.TTL = ttl
			existing.Expiry = expiry
			heap.Fix(&ab.expiringHeap, existing.heapIndex)
		default:
			ea := &expiringAddr{Addr: addr, TTL: ttl, Expiry: expiry, PeerID: peerID}
			book[key] = ea
			heap.Push(&ab.expiringHeap, ea)
		}
	}
}

// Addrs 返回未过期的地址
func (ab *AddrBook) Addrs(peerID types.PeerID) []multiaddr.Multiaddr {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	now := ab.clock.Now()
	book := ab.addrs[peerID]
	out := make([]multiaddr.Multiaddr, 0, len(book))
	for _, ea := range book {
		if !ea.expiredBy(now) {
			out = append(out, ea.Addr)
		}
	}
	slices.SortFunc(out, func(a, b multiaddr.Multiaddr) int {
		return slices.Compare(a.Bytes(), b.Bytes())
	})
	return out
}

// ClearAddrs 清除节点的全部地址
func (ab *AddrBook) ClearAddrs(peerID types.PeerID) {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	for _, ea := range ab.addrs[peerID] {
		ab.removeLocked(ea)
	}
	delete(ab.addrs, peerID)
}

// PeersWithAddrs 返回有未过期地址的节点
func (ab *AddrBook) PeersWithAddrs() []types.PeerID {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	now := ab.clock.Now()
	out := make([]types.PeerID, 0, len(ab.addrs))
	for p, book := range ab.addrs {
		for _, ea := range book {
			if !ea.expiredBy(now) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// removeLocked 删除单个地址（已持有锁）
func (ab *AddrBook) removeLocked(ea *expiringAddr) {
	if ea.heapIndex >= 0 {
		heap.Remove(&ab.expiringHeap, ea.heapIndex)
	}
	book := ab.addrs[ea.PeerID]
	delete(book, string(ea.Addr.Bytes()))
	if len(book) == 0 {
		delete(ab.addrs, ea.PeerID)
	}
}

// ============================================================================
//                              协议
// ============================================================================

// SetProtocols 记录节点支持的协议（覆盖）
func (ab *AddrBook) SetProtocols(peerID types.PeerID, protos []types.ProtocolID) {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	ab.protocols[peerID] = slices.Clone(protos)
}

// Protocols 返回节点支持的协议
func (ab *AddrBook) Protocols(peerID types.PeerID) []types.ProtocolID {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return slices.Clone(ab.protocols[peerID])
}

// SupportsProtocol 节点是否声明支持指定协议
func (ab *AddrBook) SupportsProtocol(peerID types.PeerID, proto types.ProtocolID) bool {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return slices.Contains(ab.protocols[peerID], proto)
}

// ============================================================================
//                              GC
// ============================================================================

// GC 删除已过期的远端地址和观测记录
func (ab *AddrBook) GC() {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	now := ab.clock.Now()
	removed := 0
	for {
		ea := ab.expiringHeap.peek()
		if ea == nil || !ea.expiredBy(now) {
			break
		}
		ab.removeLocked(ea)
		removed++
	}

	for reporter, rec := range ab.observed {
		if !now.Before(rec.Timestamp.Add(ab.observedTTL)) {
			delete(ab.observed, reporter)
			removed++
		}
	}

	if removed > 0 {
		log.Debug("清理过期地址", "count", removed)
	}
}

// Start 启动周期 GC
func (ab *AddrBook) Start() {
	ab.mu.Lock()
	if ab.gcCancel != nil {
		ab.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	ab.gcCancel = cancel
	ab.gcDone = make(chan struct{})
	ab.mu.Unlock()

	go func() {
		defer close(ab.gcDone)
		ticker := ab.clock.Ticker(ab.gcInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ab.GC()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close 停止周期 GC
func (ab *AddrBook) Close() error {
	ab.mu.Lock()
	cancel, done := ab.gcCancel, ab.gcDone
	ab.gcCancel = nil
	ab.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if ab.emitter != nil {
		return ab.emitter.Close()
	}
	return nil
}

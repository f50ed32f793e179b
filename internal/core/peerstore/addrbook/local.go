package addrbook

import (
	"slices"

	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// ============================================================================
//                              观测地址
// ============================================================================

// AddObservedAddr 添加观测地址记录
//
// 同一 Reporter 的记录按时间戳单调，早于现有记录的报告被忽略。
// Timestamp 为零值时取当前时间。
func (ab *AddrBook) AddObservedAddr(rec ObservedAddrRecord) bool {
	if rec.Addr == nil || rec.Reporter.IsEmpty() {
		return false
	}
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = ab.clock.Now()
	}
	if existing, ok := ab.observed[rec.Reporter]; ok && rec.Timestamp.Before(existing.Timestamp) {
		log.Debug("忽略过期的观测地址",
			"reporter", rec.Reporter.ShortString(),
			"addr", rec.Addr.String())
		return false
	}
	ab.observed[rec.Reporter] = rec
	return true
}

// ObservedAddrs 返回未过期的观测记录，按时间从新到旧排序
func (ab *AddrBook) ObservedAddrs() []ObservedAddrRecord {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	now := ab.clock.Now()
	out := make([]ObservedAddrRecord, 0, len(ab.observed))
	for _, rec := range ab.observed {
		if now.Before(rec.Timestamp.Add(ab.observedTTL)) {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b ObservedAddrRecord) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out
}

// ObservedAddrsFrom 返回指定报告者的观测记录
func (ab *AddrBook) ObservedAddrsFrom(reporter types.PeerID) (ObservedAddrRecord, bool) {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	rec, ok := ab.observed[reporter]
	return rec, ok
}

// ============================================================================
//                              本地发布地址
// ============================================================================

// AddLocalAddr 发布本地地址
func (ab *AddrBook) AddLocalAddr(addr multiaddr.Multiaddr) {
	if addr == nil {
		return
	}
	ab.mu.Lock()
	if multiaddr.Contains(ab.local, addr) {
		ab.mu.Unlock()
		return
	}
	ab.local = append(ab.local, addr)
	ab.emitLocalLocked()
	ab.mu.Unlock()

	log.Info("发布本地地址", "addr", addr.String())
}

// RemoveLocalAddr 撤销本地地址
func (ab *AddrBook) RemoveLocalAddr(addr multiaddr.Multiaddr) {
	if addr == nil {
		return
	}
	ab.mu.Lock()
	n := len(ab.local)
	ab.local = slices.DeleteFunc(ab.local, func(a multiaddr.Multiaddr) bool { return a.Equal(addr) })
	changed := len(ab.local) != n
	if changed {
		ab.emitLocalLocked()
	}
	ab.mu.Unlock()

	if changed {
		log.Info("撤销本地地址", "addr", addr.String())
	}
}

// LocalAddrs 返回已发布的本地地址
func (ab *AddrBook) LocalAddrs() []multiaddr.Multiaddr {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return slices.Clone(ab.local)
}

func (ab *AddrBook) emitLocalLocked() {
	if ab.emitter == nil {
		return
	}
	_ = ab.emitter.Emit(types.EvtLocalAddrsUpdated{
		BaseEvent: types.BaseEvent{Time: ab.clock.Now()},
		Current:   slices.Clone(ab.local),
	})
}

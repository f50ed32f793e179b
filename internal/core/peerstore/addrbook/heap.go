package addrbook

import (
	"time"

	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// expiringAddr 带过期时间的地址
type expiringAddr struct {
	Addr      multiaddr.Multiaddr
	TTL       time.Duration
	Expiry    time.Time
	PeerID    types.PeerID
	heapIndex int
}

// expiredBy 判断地址在 now 时刻是否已过期
func (e *expiringAddr) expiredBy(now time.Time) bool {
	return !now.Before(e.Expiry)
}

// expiringAddrHeap 按过期时间排序的小根堆
type expiringAddrHeap []*expiringAddr

func (h expiringAddrHeap) Len() int { return len(h) }

func (h expiringAddrHeap) Less(i, j int) bool { return h[i].Expiry.Before(h[j].Expiry) }

func (h expiringAddrHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *expiringAddrHeap) Push(x interface{}) {
	a := x.(*expiringAddr)
	a.heapIndex = len(*h)
	*h = append(*h, a)
}

func (h *expiringAddrHeap) Pop() interface{} {
	old := *h
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	a.heapIndex = -1
	*h = old[:n-1]
	return a
}

// peek 返回最早过期的地址
func (h expiringAddrHeap) peek() *expiringAddr {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

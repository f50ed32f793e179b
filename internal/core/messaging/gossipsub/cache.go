package gossipsub

import (
	"sync"
	"time"

	arc "github.com/hashicorp/golang-lru/arc/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	pb "github.com/dep2p/go-natpunch/pkg/lib/proto/gossipsub"
)

// ============================================================================
//                              消息缓存
// ============================================================================

type cacheEntry struct {
	id    string
	topic string
}

// messageCache 最近若干心跳窗口内的消息，用于响应 IWANT 和生成 IHAVE
//
// history[0] 为当前窗口，每次心跳 shift 一次，超过 HistoryLength 的窗口被丢弃。
type messageCache struct {
	msgs    map[string]*pb.Message
	history [][]cacheEntry
	gossip  int
}

func newMessageCache(gossip, history int) *messageCache {
	if gossip > history {
		gossip = history
	}
	return &messageCache{
		msgs:    make(map[string]*pb.Message),
		history: make([][]cacheEntry, history),
		gossip:  gossip,
	}
}

func (mc *messageCache) put(id string, m *pb.Message) {
	if _, ok := mc.msgs[id]; ok {
		return
	}
	mc.msgs[id] = m
	mc.history[0] = append(mc.history[0], cacheEntry{id: id, topic: m.Topic})
}

func (mc *messageCache) get(id string) (*pb.Message, bool) {
	m, ok := mc.msgs[id]
	return m, ok
}

// gossipIDs 返回最近 gossip 个窗口中属于 topic 的消息 ID
func (mc *messageCache) gossipIDs(topic string) []string {
	var ids []string
	for _, window := range mc.history[:mc.gossip] {
		for _, e := range window {
			if e.topic == topic {
				ids = append(ids, e.id)
			}
		}
	}
	return ids
}

func (mc *messageCache) shift() {
	last := mc.history[len(mc.history)-1]
	for _, e := range last {
		delete(mc.msgs, e.id)
	}
	copy(mc.history[1:], mc.history[:len(mc.history)-1])
	mc.history[0] = nil
}

func (mc *messageCache) len() int {
	return len(mc.msgs)
}

// ============================================================================
//                              去重集合
// ============================================================================

// seenSet 按主题记录已处理的消息 ID，条目在 ttl 后过期
type seenSet struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, struct{}]
}

func newSeenSet(size int, ttl time.Duration) *seenSet {
	return &seenSet{lru: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

func seenKey(topic, id string) string {
	return topic + "\x00" + id
}

// markSeen 记录消息，首次出现返回 true
func (s *seenSet) markSeen(topic, id string) bool {
	key := seenKey(topic, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Contains 不检查过期时间
	if _, ok := s.lru.Get(key); ok {
		return false
	}
	s.lru.Add(key, struct{}{})
	return true
}

func (s *seenSet) has(topic, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lru.Get(seenKey(topic, id))
	return ok
}

// ============================================================================
//                              IWANT 去重
// ============================================================================

// wantTracker 记录已发出 IWANT 的消息 ID，避免向多个对端重复索取
type wantTracker struct {
	cache *arc.ARCCache[string, struct{}]
}

func newWantTracker(size int) (*wantTracker, error) {
	c, err := arc.NewARC[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &wantTracker{cache: c}, nil
}

// want 首次请求返回 true
func (w *wantTracker) want(id string) bool {
	if w.cache.Contains(id) {
		return false
	}
	w.cache.Add(id, struct{}{})
	return true
}

func (w *wantTracker) forget(id string) {
	w.cache.Remove(id)
}

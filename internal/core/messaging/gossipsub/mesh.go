package gossipsub

import (
	"math/rand"
	"sort"
	"time"

	"github.com/dep2p/go-natpunch/pkg/types"
)

// ============================================================================
//                              网格状态
// ============================================================================

type peerSet map[types.PeerID]struct{}

func (s peerSet) list() []types.PeerID {
	out := make([]types.PeerID, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// meshState 主题网格与对端订阅关系
//
// 不加锁，由 Router.mu 保护。
type meshState struct {
	d, dlo, dhi, dlazy int

	// joined 本地加入的主题及其网格
	joined map[string]peerSet
	// topics 对端宣告的订阅
	topics map[string]peerSet
	// peers 支持 meshsub 的已连接对端
	peers peerSet
	// explicit 显式节点始终接收转发，不进入网格
	explicit peerSet
	// backoff 被 PRUNE 后在截止时间前不再 GRAFT
	backoff map[string]map[types.PeerID]time.Time

	rng *rand.Rand
}

func newMeshState(cfg Config, seed int64) *meshState {
	return &meshState{
		d:        cfg.D,
		dlo:      cfg.Dlo,
		dhi:      cfg.Dhi,
		dlazy:    cfg.Dlazy,
		joined:   make(map[string]peerSet),
		topics:   make(map[string]peerSet),
		peers:    make(peerSet),
		explicit: make(peerSet),
		backoff:  make(map[string]map[types.PeerID]time.Time),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (ms *meshState) addPeer(p types.PeerID) bool {
	if _, ok := ms.peers[p]; ok {
		return false
	}
	ms.peers[p] = struct{}{}
	return true
}

// removePeer 从所有网格和订阅中移除对端
func (ms *meshState) removePeer(p types.PeerID) {
	delete(ms.peers, p)
	for _, mesh := range ms.joined {
		delete(mesh, p)
	}
	for topic, subs := range ms.topics {
		delete(subs, p)
		if len(subs) == 0 {
			delete(ms.topics, topic)
		}
	}
}

func (ms *meshState) isJoined(topic string) bool {
	_, ok := ms.joined[topic]
	return ok
}

// join 加入主题，返回需要 GRAFT 的对端
func (ms *meshState) join(topic string, now time.Time) []types.PeerID {
	if ms.isJoined(topic) {
		return nil
	}
	mesh := make(peerSet)
	ms.joined[topic] = mesh

	candidates := ms.selectPeers(topic, ms.d, func(p types.PeerID) bool {
		return ms.graftable(topic, p, now)
	})
	for _, p := range candidates {
		mesh[p] = struct{}{}
	}
	return candidates
}

// leave 离开主题，返回需要 PRUNE 的网格成员
func (ms *meshState) leave(topic string) []types.PeerID {
	mesh, ok := ms.joined[topic]
	if !ok {
		return nil
	}
	delete(ms.joined, topic)
	return mesh.list()
}

// subscribe 记录对端订阅，本地已加入且网格未满时返回 true 表示应 GRAFT
func (ms *meshState) subscribe(p types.PeerID, topic string, now time.Time) bool {
	subs, ok := ms.topics[topic]
	if !ok {
		subs = make(peerSet)
		ms.topics[topic] = subs
	}
	subs[p] = struct{}{}

	mesh, ok := ms.joined[topic]
	if !ok || len(mesh) >= ms.dhi {
		return false
	}
	if _, in := mesh[p]; in || !ms.graftable(topic, p, now) {
		return false
	}
	mesh[p] = struct{}{}
	return true
}

func (ms *meshState) unsubscribe(p types.PeerID, topic string) {
	if subs, ok := ms.topics[topic]; ok {
		delete(subs, p)
		if len(subs) == 0 {
			delete(ms.topics, topic)
		}
	}
	if mesh, ok := ms.joined[topic]; ok {
		delete(mesh, p)
	}
}

// handleGraft 处理对端的 GRAFT，返回 false 时应回复 PRUNE
func (ms *meshState) handleGraft(p types.PeerID, topic string, now time.Time) bool {
	mesh, ok := ms.joined[topic]
	if !ok {
		return false
	}
	if _, in := mesh[p]; in {
		return true
	}
	if _, exp := ms.explicit[p]; exp {
		return false
	}
	if ms.inBackoff(topic, p, now) || len(mesh) >= ms.dhi {
		return false
	}
	mesh[p] = struct{}{}
	return true
}

// prune 将对端移出网格并设置退避
func (ms *meshState) prune(p types.PeerID, topic string, backoff time.Duration, now time.Time) {
	if mesh, ok := ms.joined[topic]; ok {
		delete(mesh, p)
	}
	if backoff <= 0 {
		return
	}
	bo, ok := ms.backoff[topic]
	if !ok {
		bo = make(map[types.PeerID]time.Time)
		ms.backoff[topic] = bo
	}
	if until := now.Add(backoff); until.After(bo[p]) {
		bo[p] = until
	}
}

func (ms *meshState) inBackoff(topic string, p types.PeerID, now time.Time) bool {
	until, ok := ms.backoff[topic][p]
	return ok && now.Before(until)
}

func (ms *meshState) graftable(topic string, p types.PeerID, now time.Time) bool {
	if _, ok := ms.peers[p]; !ok {
		return false
	}
	if _, exp := ms.explicit[p]; exp {
		return false
	}
	return !ms.inBackoff(topic, p, now)
}

func (ms *meshState) meshPeers(topic string) []types.PeerID {
	return ms.joined[topic].list()
}

func (ms *meshState) topicPeers(topic string) []types.PeerID {
	return ms.topics[topic].list()
}

func (ms *meshState) addExplicit(p types.PeerID) {
	ms.explicit[p] = struct{}{}
	for _, mesh := range ms.joined {
		delete(mesh, p)
	}
}

func (ms *meshState) removeExplicit(p types.PeerID) {
	delete(ms.explicit, p)
}

func (ms *meshState) isExplicit(p types.PeerID) bool {
	_, ok := ms.explicit[p]
	return ok
}

// explicitPeersIn 订阅了 topic 的已连接显式节点
func (ms *meshState) explicitPeersIn(topic string) []types.PeerID {
	var out []types.PeerID
	for _, p := range ms.explicit.list() {
		if _, ok := ms.peers[p]; !ok {
			continue
		}
		if _, ok := ms.topics[topic][p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// selectPeers 随机选出最多 n 个订阅了 topic 且满足 filter 的对端
func (ms *meshState) selectPeers(topic string, n int, filter func(types.PeerID) bool) []types.PeerID {
	var pool []types.PeerID
	for _, p := range ms.topics[topic].list() {
		if filter(p) {
			pool = append(pool, p)
		}
	}
	ms.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > n {
		pool = pool[:n]
	}
	return pool
}

// ============================================================================
//                              心跳维护
// ============================================================================

// maintenance 一次心跳产生的网格变更
type maintenance struct {
	graft map[types.PeerID][]string
	prune map[types.PeerID][]string
}

func (m *maintenance) addGraft(p types.PeerID, topic string) {
	if m.graft == nil {
		m.graft = make(map[types.PeerID][]string)
	}
	m.graft[p] = append(m.graft[p], topic)
}

func (m *maintenance) addPrune(p types.PeerID, topic string) {
	if m.prune == nil {
		m.prune = make(map[types.PeerID][]string)
	}
	m.prune[p] = append(m.prune[p], topic)
}

// maintain 将每个主题的网格规模调整回 [Dlo, Dhi]，目标为 D
func (ms *meshState) maintain(now time.Time, backoff time.Duration) maintenance {
	var out maintenance

	for topic, mesh := range ms.joined {
		for p := range mesh {
			// 断开或取消订阅的对端
			if _, ok := ms.topics[topic][p]; !ok {
				delete(mesh, p)
			}
		}

		if len(mesh) < ms.dlo {
			need := ms.d - len(mesh)
			for _, p := range ms.selectPeers(topic, need, func(p types.PeerID) bool {
				_, in := mesh[p]
				return !in && ms.graftable(topic, p, now)
			}) {
				mesh[p] = struct{}{}
				out.addGraft(p, topic)
			}
		}

		if len(mesh) > ms.dhi {
			members := mesh.list()
			ms.rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
			for _, p := range members[ms.d:] {
				ms.prune(p, topic, backoff, now)
				out.addPrune(p, topic)
			}
		}
	}

	// 清理已过期的退避
	for topic, bo := range ms.backoff {
		for p, until := range bo {
			if !now.Before(until) {
				delete(bo, p)
			}
		}
		if len(bo) == 0 {
			delete(ms.backoff, topic)
		}
	}
	return out
}

// gossipTargets 网格外的主题节点中随机选出 Dlazy 个接收 IHAVE
func (ms *meshState) gossipTargets(topic string) []types.PeerID {
	mesh := ms.joined[topic]
	return ms.selectPeers(topic, ms.dlazy, func(p types.PeerID) bool {
		if _, in := mesh[p]; in {
			return false
		}
		if _, ok := ms.peers[p]; !ok {
			return false
		}
		return !ms.isExplicit(p)
	})
}

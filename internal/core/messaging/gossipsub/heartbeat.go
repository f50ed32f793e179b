package gossipsub

import (
	"time"

	pb "github.com/dep2p/go-natpunch/pkg/lib/proto/gossipsub"
)

// heartbeatLoop 首次延迟后按固定间隔心跳
func (r *Router) heartbeatLoop() {
	defer r.wg.Done()

	timer := r.clock.Timer(r.config.HeartbeatInitialDelay)
	select {
	case <-r.ctx.Done():
		timer.Stop()
		return
	case <-timer.C:
	}
	r.heartbeat()

	ticker := r.clock.Ticker(r.config.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.heartbeat()
		}
	}
}

// heartbeat 维护网格、发送 IHAVE、移动缓存窗口
func (r *Router) heartbeat() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	out := make(outbox)
	mt := r.mesh.maintain(r.clock.Now(), r.config.PruneBackoff)
	for p, topics := range mt.graft {
		for _, topic := range topics {
			out.control(p).Graft = append(out.control(p).Graft, &pb.ControlGraft{TopicID: topic})
		}
	}
	for p, topics := range mt.prune {
		for _, topic := range topics {
			out.control(p).Prune = append(out.control(p).Prune, r.pruneMsg(topic))
		}
	}

	for topic := range r.mesh.joined {
		ids := r.cache.gossipIDs(topic)
		if len(ids) == 0 {
			continue
		}
		if len(ids) > r.config.MaxIHaveLength {
			ids = ids[len(ids)-r.config.MaxIHaveLength:]
		}
		for _, p := range r.mesh.gossipTargets(topic) {
			out.control(p).IHave = append(out.control(p).IHave, &pb.ControlIHave{TopicID: topic, MessageIDs: ids})
		}
	}

	r.cache.shift()
	r.flush(out)

	if len(mt.graft)+len(mt.prune) > 0 {
		log.Debug("心跳调整网格", "graft", len(mt.graft), "prune", len(mt.prune))
	}
}

func secondsToDuration(s uint64) time.Duration {
	const limit = uint64(1<<63-1) / uint64(time.Second)
	if s > limit {
		s = limit
	}
	return time.Duration(s) * time.Second
}

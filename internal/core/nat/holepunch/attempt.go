package holepunch

import (
	"time"

	"github.com/google/uuid"

	"github.com/dep2p/go-natpunch/internal/core/metrics"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// Outcome 一次打洞尝试的结果
type Outcome struct {
	AttemptID string
	Peer      types.PeerID
	Role      types.HolePunchRole
	State     types.HolePunchState

	// Conn 直连或回退使用的中继连接，Failed 时为 nil
	Conn pkgif.Connection
	// Addr 直连的远端地址
	Addr multiaddr.Multiaddr

	// Attempts ConnectWithRetry 实际尝试次数
	Attempts int
	Duration time.Duration
	Err      error
}

// Direct 是否建立了直连
func (o Outcome) Direct() bool {
	return o.State == types.StateDirectConnected
}

// attempt 单次尝试的状态机，只在一个协程内推进
type attempt struct {
	c     *Coordinator
	id    string
	peer  types.PeerID
	role  types.HolePunchRole
	state types.HolePunchState
	start time.Time
}

func (c *Coordinator) newAttempt(peer types.PeerID, role types.HolePunchRole) *attempt {
	return &attempt{
		c:     c,
		id:    uuid.NewString(),
		peer:  peer,
		role:  role,
		state: types.StateIdle,
		start: c.clock.Now(),
	}
}

// transition 迁移状态并发布 EvtHolePunchStateChanged
func (a *attempt) transition(to types.HolePunchState) {
	from := a.state
	if from == to {
		return
	}
	a.state = to
	log.Debug("打洞状态迁移",
		"attempt", a.id,
		"peer", a.peer.ShortString(),
		"role", a.role.String(),
		"from", from.String(),
		"to", to.String())
	a.c.emitState.Emit(types.EvtHolePunchStateChanged{
		BaseEvent: types.NewBaseEvent(),
		AttemptID: a.id,
		PeerID:    a.peer,
		Role:      a.role,
		From:      from,
		To:        to,
	})
}

// finish 进入终态，记录指标并发布 EvtHolePunchOutcome
func (a *attempt) finish(state types.HolePunchState, conn pkgif.Connection, err error) Outcome {
	a.transition(state)
	o := Outcome{
		AttemptID: a.id,
		Peer:      a.peer,
		Role:      a.role,
		State:     state,
		Conn:      conn,
		Attempts:  1,
		Duration:  a.c.clock.Since(a.start),
		Err:       err,
	}
	if state == types.StateDirectConnected && conn != nil {
		o.Addr = conn.RemoteMultiaddr()
	}

	metrics.HolePunchOutcome(state.String(), a.role.String())
	metrics.HolePunchDuration(state.String(), o.Duration)

	switch state {
	case types.StateDirectConnected:
		log.Info("直连已建立",
			"peer", a.peer.ShortString(),
			"role", a.role.String(),
			"addr", o.Addr,
			"took", o.Duration)
	case types.StateRelayFallback:
		log.Info("打洞失败，继续使用中继连接",
			"peer", a.peer.ShortString(),
			"role", a.role.String(),
			"err", err)
	default:
		log.Warn("打洞尝试失败",
			"peer", a.peer.ShortString(),
			"role", a.role.String(),
			"err", err)
	}

	a.c.emitOutcome.Emit(types.EvtHolePunchOutcome{
		BaseEvent: types.NewBaseEvent(),
		AttemptID: a.id,
		PeerID:    a.peer,
		Role:      a.role,
		Outcome:   state,
		Addr:      o.Addr,
		Err:       err,
	})
	return o
}

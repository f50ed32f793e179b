package types

// ============================================================================
//                              打洞状态机
// ============================================================================

// HolePunchRole 打洞角色
type HolePunchRole int

const (
	// RoleInitiator 经中继拨号目标的一方
	RoleInitiator HolePunchRole = iota
	// RoleResponder 被中继通知有入站电路的一方
	RoleResponder
)

// String 返回角色名称
func (r HolePunchRole) String() string {
	if r == RoleResponder {
		return "responder"
	}
	return "initiator"
}

// HolePunchState 打洞尝试状态
//
// Initiator: Idle → AwaitingRelayRoute → SynchronizingAttempt → Punching → 终态
// Responder: Idle → NotifiedByRelay → SynchronizingAttempt → Punching → 终态
type HolePunchState int

const (
	StateIdle HolePunchState = iota
	StateAwaitingRelayRoute
	StateNotifiedByRelay
	StateSynchronizingAttempt
	StatePunching
	// StateDirectConnected 终态：已存在到目标的直连
	StateDirectConnected
	// StateRelayFallback 终态：直连全部失败，中继电路仍可用
	StateRelayFallback
	// StateFailed 终态：中继拨号本身失败
	StateFailed
)

var stateNames = map[HolePunchState]string{
	StateIdle:                 "Idle",
	StateAwaitingRelayRoute:   "AwaitingRelayRoute",
	StateNotifiedByRelay:      "NotifiedByRelay",
	StateSynchronizingAttempt: "SynchronizingAttempt",
	StatePunching:             "Punching",
	StateDirectConnected:      "DirectConnected",
	StateRelayFallback:        "RelayFallback",
	StateFailed:               "Failed",
}

// String 返回状态名称
func (s HolePunchState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "Unknown"
}

// IsTerminal 是否为终态
func (s HolePunchState) IsTerminal() bool {
	return s == StateDirectConnected || s == StateRelayFallback || s == StateFailed
}

// Connected 终态是否具备连通性（直连或中继）
func (s HolePunchState) Connected() bool {
	return s == StateDirectConnected || s == StateRelayFallback
}

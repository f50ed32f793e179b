package types

import (
	"time"

	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

// 事件总线上流转的类型化事件。
// 订阅方按 reflect 类型订阅（见 internal/core/eventbus）。

// BaseEvent 基础事件字段
type BaseEvent struct {
	Time time.Time
}

// NewBaseEvent 创建基础事件
func NewBaseEvent() BaseEvent {
	return BaseEvent{Time: time.Now()}
}

// ============================================================================
//                              连接事件
// ============================================================================

// EvtPeerConnected 与某节点建立了一条连接
type EvtPeerConnected struct {
	BaseEvent
	PeerID    PeerID
	Direction Direction
	// Relayed 连接是否经过中继电路
	Relayed bool
	// NumConns 当前到该节点的连接数
	NumConns int
}

// EvtPeerDisconnected 到某节点的最后一条连接已关闭
type EvtPeerDisconnected struct {
	BaseEvent
	PeerID PeerID
}

// EvtRelayedConnection 中继转发了一条入站电路（Responder 进入 NotifiedByRelay）
type EvtRelayedConnection struct {
	BaseEvent
	PeerID PeerID
	Relay  PeerID
}

// EvtLocalAddrsUpdated 本地可分享地址发生变化
type EvtLocalAddrsUpdated struct {
	BaseEvent
	Current []multiaddr.Multiaddr
}

// ============================================================================
//                              Identify 事件
// ============================================================================

// EvtPeerIdentified 地址学习交换完成
type EvtPeerIdentified struct {
	BaseEvent
	PeerID          PeerID
	ListenAddrs     []multiaddr.Multiaddr
	Protocols       []ProtocolID
	ObservedAddr    multiaddr.Multiaddr
	ProtocolVersion string
	AgentVersion    string
}

// EvtIdentifyFailed 地址学习交换失败或超时（连接保持，标记为未识别）
type EvtIdentifyFailed struct {
	BaseEvent
	PeerID PeerID
	Reason error
}

// ============================================================================
//                              中继事件
// ============================================================================

// EvtReservationAccepted 中继预约成功（含续约）
type EvtReservationAccepted struct {
	BaseEvent
	Relay  PeerID
	Expiry time.Time
	Addrs  []multiaddr.Multiaddr
}

// EvtReservationExpired 中继预约过期且续约失败
type EvtReservationExpired struct {
	BaseEvent
	Relay PeerID
	Err   error
}

// ============================================================================
//                              打洞事件
// ============================================================================

// EvtHolePunchStateChanged 打洞状态迁移
type EvtHolePunchStateChanged struct {
	BaseEvent
	AttemptID string
	PeerID    PeerID
	Role      HolePunchRole
	From      HolePunchState
	To        HolePunchState
}

// EvtHolePunchOutcome 打洞尝试结束
type EvtHolePunchOutcome struct {
	BaseEvent
	AttemptID string
	PeerID    PeerID
	Role      HolePunchRole
	Outcome   HolePunchState
	// Addr 直连成功时的远端地址
	Addr multiaddr.Multiaddr
	Err  error
}

// ============================================================================
//                              消息事件
// ============================================================================

// EvtGossipMessage 覆盖网络向本地投递了一条消息
type EvtGossipMessage struct {
	BaseEvent
	Topic        string
	MessageID    string
	From         PeerID
	ReceivedFrom PeerID
	Data         []byte
}

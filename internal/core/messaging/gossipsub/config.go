package gossipsub

import (
	"fmt"
	"time"
)

// ============================================================================
//                              GossipSub 配置
// ============================================================================

// Config GossipSub 配置
type Config struct {
	// D 目标网格规模
	D int

	// Dlo 网格下限，低于此值心跳时 GRAFT
	Dlo int

	// Dhi 网格上限，超过此值心跳时 PRUNE
	Dhi int

	// Dlazy 每次心跳接收 IHAVE 的网格外节点数
	Dlazy int

	// HeartbeatInterval 心跳间隔
	HeartbeatInterval time.Duration

	// HeartbeatInitialDelay 首次心跳延迟
	HeartbeatInitialDelay time.Duration

	// HistoryLength 消息缓存保留的心跳周期数
	HistoryLength int

	// HistoryGossip IHAVE 通告的心跳周期数
	HistoryGossip int

	// SeenTTL 已见消息的时间窗口
	SeenTTL time.Duration

	// SeenCacheSize 每个主题已见集合的容量
	SeenCacheSize int

	// MaxMessageSize 单条消息负载上限
	MaxMessageSize int

	// MaxIHaveLength 单个 IHAVE 携带的消息 ID 上限
	MaxIHaveLength int

	// PruneBackoff 被 PRUNE 后重新 GRAFT 前的等待
	PruneBackoff time.Duration

	// FloodPublish 发布时发送给所有已知的主题订阅者
	FloodPublish bool

	// StrictSigning 发布时签名，接收时要求有效签名
	StrictSigning bool

	// SubscriptionBuffer 本地订阅通道缓冲
	SubscriptionBuffer int

	// OutboundQueueSize 每个对端的发送队列长度
	OutboundQueueSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		D:                     6,
		Dlo:                   4,
		Dhi:                   12,
		Dlazy:                 6,
		HeartbeatInterval:     time.Second,
		HeartbeatInitialDelay: 100 * time.Millisecond,
		HistoryLength:         5,
		HistoryGossip:         3,
		SeenTTL:               2 * time.Minute,
		SeenCacheSize:         10000,
		MaxMessageSize:        1 << 20,
		MaxIHaveLength:        5000,
		PruneBackoff:          time.Minute,
		FloodPublish:          true,
		StrictSigning:         true,
		SubscriptionBuffer:    32,
		OutboundQueueSize:     32,
	}
}

// ChatConfig 聊天场景预设：心跳 10 秒，严格签名
func ChatConfig() Config {
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 10 * time.Second
	cfg.StrictSigning = true
	return cfg
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.Dlo <= 0 || c.D < c.Dlo || c.Dhi < c.D {
		return fmt.Errorf("gossipsub: mesh degrees must satisfy 0 < Dlo <= D <= Dhi, got %d/%d/%d", c.Dlo, c.D, c.Dhi)
	}
	if c.Dlazy < 0 {
		return fmt.Errorf("gossipsub: negative Dlazy %d", c.Dlazy)
	}
	if c.HeartbeatInterval <= 0 || c.HeartbeatInitialDelay < 0 {
		return fmt.Errorf("gossipsub: invalid heartbeat timing")
	}
	if c.HistoryLength <= 0 || c.HistoryGossip <= 0 || c.HistoryGossip > c.HistoryLength {
		return fmt.Errorf("gossipsub: history must satisfy 0 < HistoryGossip <= HistoryLength, got %d/%d", c.HistoryGossip, c.HistoryLength)
	}
	if c.SeenTTL <= 0 || c.SeenCacheSize <= 0 {
		return fmt.Errorf("gossipsub: seen cache requires positive TTL and size")
	}
	if c.MaxMessageSize <= 0 || c.MaxIHaveLength <= 0 {
		return fmt.Errorf("gossipsub: message limits must be positive")
	}
	if c.PruneBackoff < 0 {
		return fmt.Errorf("gossipsub: negative prune backoff %s", c.PruneBackoff)
	}
	if c.SubscriptionBuffer <= 0 || c.OutboundQueueSize <= 0 {
		return fmt.Errorf("gossipsub: buffers must be positive")
	}
	return nil
}

// maxRPCSize 单个 RPC 帧上限，留出控制消息与封装的余量
func (c Config) maxRPCSize() int {
	return c.MaxMessageSize + 64<<10
}

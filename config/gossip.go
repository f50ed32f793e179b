package config

import "time"

// DefaultTopic 聊天主题
const DefaultTopic = "dcutr-chat-example"

// GossipConfig 发布订阅配置
type GossipConfig struct {
	// Topic 聊天使用的主题
	Topic string `json:"topic" toml:"topic"`

	// D/Dlo/Dhi 网格规模的目标与上下限
	D   int `json:"d" toml:"d"`
	Dlo int `json:"dlo" toml:"dlo"`
	Dhi int `json:"dhi" toml:"dhi"`

	// HeartbeatInterval 心跳间隔
	HeartbeatInterval Duration `json:"heartbeat_interval" toml:"heartbeat_interval"`

	// SeenTTL 去重窗口
	SeenTTL Duration `json:"seen_ttl" toml:"seen_ttl"`

	// MaxMessageSize 单条消息负载上限
	MaxMessageSize int `json:"max_message_size" toml:"max_message_size"`

	// StrictSigning 发布签名并拒绝无效签名
	StrictSigning bool `json:"strict_signing" toml:"strict_signing"`
}

// DefaultGossipConfig 返回聊天场景的默认配置：心跳 10 秒，严格签名
func DefaultGossipConfig() GossipConfig {
	return GossipConfig{
		Topic:             DefaultTopic,
		D:                 6,
		Dlo:               4,
		Dhi:               12,
		HeartbeatInterval: Duration(10 * time.Second),
		SeenTTL:           Duration(2 * time.Minute),
		MaxMessageSize:    1 << 20,
		StrictSigning:     true,
	}
}

// Validate 验证配置
func (c GossipConfig) Validate() error {
	if c.Topic == "" {
		return fieldErr("gossip.topic", "must not be empty")
	}
	if c.Dlo <= 0 || c.D < c.Dlo || c.Dhi < c.D {
		return fieldErr("gossip", "mesh degrees must satisfy 0 < dlo <= d <= dhi, got %d/%d/%d", c.Dlo, c.D, c.Dhi)
	}
	if err := positive("gossip.heartbeat_interval", c.HeartbeatInterval); err != nil {
		return err
	}
	if err := positive("gossip.seen_ttl", c.SeenTTL); err != nil {
		return err
	}
	if c.MaxMessageSize <= 0 {
		return fieldErr("gossip.max_message_size", "must be positive, got %d", c.MaxMessageSize)
	}
	return nil
}

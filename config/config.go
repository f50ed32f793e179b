// Package config 提供统一的配置管理
//
// 主 Config 嵌入所有子配置，每个子配置在独立文件中定义，
// 可从 JSON 或 TOML 文件加载：
//
//	cfg, err := config.Load("natpunch.toml")
//
//	mode = "listen"
//
//	[identity]
//	secret_key_seed = 2
//
//	[relay]
//	address = "/ip4/1.2.3.4/tcp/4001/p2p/12D3KooW..."
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/dep2p/go-natpunch/pkg/types"
)

// Mode 节点运行模式
type Mode string

const (
	// ModeNone 只作为库使用，不执行演示流程
	ModeNone Mode = ""

	// ModeListen 在中继上预约，等待其他节点连接
	ModeListen Mode = "listen"

	// ModeDial 经中继连接 RemotePeerID 并尝试打洞
	ModeDial Mode = "dial"
)

// ParseMode 解析模式字符串
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeNone, ModeListen, ModeDial:
		return m, nil
	default:
		return "", fieldErr("mode", "must be dial or listen, got %q", s)
	}
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Addr Prometheus 指标监听地址，为空时不启动
	Addr string `json:"addr,omitempty" toml:"addr,omitempty"`
}

// Config 完整配置
type Config struct {
	// Mode 运行模式
	Mode Mode `json:"mode" toml:"mode"`

	// RemotePeerID dial 模式下的目标节点
	RemotePeerID string `json:"remote_peer_id,omitempty" toml:"remote_peer_id,omitempty"`

	Identity  IdentityConfig  `json:"identity" toml:"identity"`
	Transport TransportConfig `json:"transport" toml:"transport"`
	Relay     RelayConfig     `json:"relay" toml:"relay"`
	HolePunch HolePunchConfig `json:"holepunch" toml:"holepunch"`
	Identify  IdentifyConfig  `json:"identify" toml:"identify"`
	Gossip    GossipConfig    `json:"gossip" toml:"gossip"`
	Metrics   MetricsConfig   `json:"metrics" toml:"metrics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Identity:  DefaultIdentityConfig(),
		Transport: DefaultTransportConfig(),
		Relay:     DefaultRelayConfig(),
		HolePunch: DefaultHolePunchConfig(),
		Identify:  DefaultIdentifyConfig(),
		Gossip:    DefaultGossipConfig(),
	}
}

// Validate 验证配置，错误均包装 ErrInvalidConfig
func (c *Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	switch c.Mode {
	case ModeListen:
		if c.Relay.Address == "" {
			return fieldErr("relay.address", "required in listen mode")
		}
	case ModeDial:
		if c.Relay.Address == "" {
			return fieldErr("relay.address", "required in dial mode")
		}
		if _, err := c.RemotePeer(); err != nil {
			return err
		}
	}

	if err := c.Identity.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.Relay.Validate(); err != nil {
		return err
	}
	if err := c.HolePunch.Validate(); err != nil {
		return err
	}
	if err := c.Identify.Validate(); err != nil {
		return err
	}
	return c.Gossip.Validate()
}

// RemotePeer 解析目标节点 ID
func (c *Config) RemotePeer() (types.PeerID, error) {
	if c.RemotePeerID == "" {
		return "", fieldErr("remote_peer_id", "required in dial mode")
	}
	id, err := types.ParsePeerID(c.RemotePeerID)
	if err != nil {
		return "", fieldErr("remote_peer_id", "invalid peer id %q: %v", c.RemotePeerID, err)
	}
	return id, nil
}

// Load 按扩展名从 TOML（.toml）或 JSON（其他）文件加载配置
//
// 文件中未出现的字段保留默认值。
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto 把文件内容解码到 cfg 之上，文件中未出现的字段保持 cfg 原值
//
// 出错时 cfg 可能已被部分修改。
func LoadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return decodeTOML(data, cfg)
	}
	return decodeJSON(data, cfg)
}

// FromJSON 从 JSON 数据创建配置
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := decodeJSON(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromTOML 从 TOML 数据创建配置
func FromTOML(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := decodeTOML(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeJSON(data []byte, cfg *Config) error {
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

func decodeTOML(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fieldErr(undecoded[0].String(), "unknown key")
	}
	return nil
}

// ToJSON 序列化为 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ToTOML 序列化为 TOML
func (c *Config) ToTOML() ([]byte, error) {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

package natpunch

import (
	"fmt"
	"time"

	"github.com/dep2p/go-natpunch/config"
)

// 预设名称
const (
	// PresetNameChat 聊天演示（默认配置）
	PresetNameChat = "chat"

	// PresetNameRelay 公网中继
	PresetNameRelay = "relay"

	// PresetNameLocal 本机回环测试
	PresetNameLocal = "local"
)

// Preset 预设配置，在默认配置上修改
type Preset func(*config.Config)

// PresetChat 聊天演示：心跳 10 秒，严格签名，主题 dcutr-chat-example
func PresetChat(*config.Config) {}

// PresetRelay 公网中继：监听 4001 端口并提供中继服务
//
// 中继只转发，电路时长与字节数按演示需要放宽。
func PresetRelay(c *config.Config) {
	c.Mode = config.ModeNone
	c.Transport.ListenAddrs = []string{"/ip4/0.0.0.0/tcp/4001"}
	c.Relay.Server.Enable = true
	c.Relay.Server.CircuitDuration = config.Duration(10 * time.Minute)
	c.Relay.Server.CircuitData = 1 << 20
}

// PresetLocal 本机回环测试：只监听 127.0.0.1，允许私网候选，缩短等待
func PresetLocal(c *config.Config) {
	c.Transport.ListenAddrs = []string{"/ip4/127.0.0.1/tcp/0"}
	c.Transport.ListenSettle = 0
	c.HolePunch.AllowPrivateAddrs = true
	c.HolePunch.RetryBackoff = config.Duration(200 * time.Millisecond)
	c.Gossip.HeartbeatInterval = config.Duration(100 * time.Millisecond)
}

// PresetByName 按名称查找预设
func PresetByName(name string) (Preset, error) {
	switch name {
	case "", PresetNameChat:
		return PresetChat, nil
	case PresetNameRelay:
		return PresetRelay, nil
	case PresetNameLocal:
		return PresetLocal, nil
	default:
		return nil, fmt.Errorf("unknown preset %q", name)
	}
}

// WithPreset 应用预设，应放在其它选项之前
func WithPreset(p Preset) Option {
	return func(c *config.Config) error {
		if p == nil {
			return fmt.Errorf("nil preset")
		}
		p(c)
		return nil
	}
}

package natpunch

import (
	"fmt"
	"time"

	"github.com/dep2p/go-natpunch/config"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// Option 节点配置选项
type Option func(*config.Config) error

// WithConfig 以完整配置为基础，后续选项继续覆盖
func WithConfig(cfg *config.Config) Option {
	return func(c *config.Config) error {
		if cfg == nil {
			return fmt.Errorf("nil config")
		}
		*c = *cfg
		return nil
	}
}

// WithMode 设置运行模式
func WithMode(m config.Mode) Option {
	return func(c *config.Config) error {
		c.Mode = m
		return nil
	}
}

// WithSecretKeySeed 使用确定性身份，仅用于演示
func WithSecretKeySeed(seed uint8) Option {
	return func(c *config.Config) error {
		c.Identity = c.Identity.WithSeed(seed)
		return nil
	}
}

// WithListenAddrs 设置监听地址
func WithListenAddrs(addrs ...string) Option {
	return func(c *config.Config) error {
		if len(addrs) == 0 {
			return fmt.Errorf("listen addrs: empty")
		}
		c.Transport.ListenAddrs = append([]string(nil), addrs...)
		return nil
	}
}

// WithListenPort 在 0.0.0.0 上监听指定 TCP 端口
func WithListenPort(port int) Option {
	return WithListenAddrs(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", port))
}

// WithRelay 设置中继地址 /ip4/.../tcp/.../p2p/<relay-id>
func WithRelay(addr string) Option {
	return func(c *config.Config) error {
		c.Relay.Address = addr
		return nil
	}
}

// WithRelayServer 启用中继服务
func WithRelayServer(enable bool) Option {
	return func(c *config.Config) error {
		c.Relay.Server.Enable = enable
		return nil
	}
}

// WithRemotePeer 设置 dial 模式的目标节点
func WithRemotePeer(id types.PeerID) Option {
	return func(c *config.Config) error {
		c.RemotePeerID = id.String()
		return nil
	}
}

// WithTopic 设置聊天主题
func WithTopic(topic string) Option {
	return func(c *config.Config) error {
		c.Gossip.Topic = topic
		return nil
	}
}

// WithHeartbeat 设置 gossip 心跳间隔
func WithHeartbeat(d time.Duration) Option {
	return func(c *config.Config) error {
		c.Gossip.HeartbeatInterval = config.Duration(d)
		return nil
	}
}

// WithListenSettle 设置连接中继前等待监听地址就绪的时间
func WithListenSettle(d time.Duration) Option {
	return func(c *config.Config) error {
		c.Transport.ListenSettle = config.Duration(d)
		return nil
	}
}

// WithPrivateCandidates 允许私网与回环地址作为打洞候选（本机测试）
func WithPrivateCandidates(allow bool) Option {
	return func(c *config.Config) error {
		c.HolePunch.AllowPrivateAddrs = allow
		return nil
	}
}

// WithMetricsAddr 设置指标监听地址
func WithMetricsAddr(addr string) Option {
	return func(c *config.Config) error {
		c.Metrics.Addr = addr
		return nil
	}
}

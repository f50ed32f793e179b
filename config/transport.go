package config

import (
	"time"

	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

// TransportConfig 传输层配置
//
// 只有 TCP 传输；ReusePort 让拨号复用监听端口，是同时打开的前提。
type TransportConfig struct {
	// ListenAddrs 监听地址
	ListenAddrs []string `json:"listen_addrs" toml:"listen_addrs"`

	// ReusePort 拨号时绑定监听端口
	ReusePort bool `json:"reuse_port" toml:"reuse_port"`

	// DialTimeout 单次拨号超时
	DialTimeout Duration `json:"dial_timeout" toml:"dial_timeout"`

	// NewStreamTimeout 开流超时
	NewStreamTimeout Duration `json:"new_stream_timeout" toml:"new_stream_timeout"`

	// NegotiationTimeout 协议协商超时
	NegotiationTimeout Duration `json:"negotiation_timeout" toml:"negotiation_timeout"`

	// ListenSettle 连接中继前等待监听地址就绪的时间
	ListenSettle Duration `json:"listen_settle" toml:"listen_settle"`

	// PingInterval 对每条连接周期性 ping 的间隔，0 表示关闭
	PingInterval Duration `json:"ping_interval" toml:"ping_interval"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ListenAddrs:        []string{"/ip4/0.0.0.0/tcp/0"},
		ReusePort:          true,
		DialTimeout:        Duration(10 * time.Second),
		NewStreamTimeout:   Duration(15 * time.Second),
		NegotiationTimeout: Duration(10 * time.Second),
		ListenSettle:       Duration(time.Second),
		PingInterval:       Duration(15 * time.Second),
	}
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	if len(c.ListenAddrs) == 0 {
		return fieldErr("transport.listen_addrs", "at least one listen address is required")
	}
	if _, err := c.Multiaddrs(); err != nil {
		return err
	}
	if err := positive("transport.dial_timeout", c.DialTimeout); err != nil {
		return err
	}
	if err := positive("transport.new_stream_timeout", c.NewStreamTimeout); err != nil {
		return err
	}
	if err := positive("transport.negotiation_timeout", c.NegotiationTimeout); err != nil {
		return err
	}
	if c.ListenSettle < 0 {
		return fieldErr("transport.listen_settle", "must not be negative")
	}
	if c.PingInterval < 0 {
		return fieldErr("transport.ping_interval", "must not be negative")
	}
	return nil
}

// Multiaddrs 解析监听地址
func (c TransportConfig) Multiaddrs() ([]multiaddr.Multiaddr, error) {
	out := make([]multiaddr.Multiaddr, 0, len(c.ListenAddrs))
	for _, s := range c.ListenAddrs {
		m, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			return nil, fieldErr("transport.listen_addrs", "invalid address %q: %v", s, err)
		}
		out = append(out, m)
	}
	return out, nil
}

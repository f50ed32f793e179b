package host

import (
	"errors"
	"time"

	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

// Config Host 配置
type Config struct {
	// NegotiationTimeout 协议协商超时
	NegotiationTimeout time.Duration

	// ConnectAddrTTL Connect 写入地址簿的地址有效期
	ConnectAddrTTL time.Duration

	// AddrsFactory 过滤或改写 Addrs 的结果
	AddrsFactory AddrsFactory
}

// AddrsFactory 地址工厂函数
type AddrsFactory func([]multiaddr.Multiaddr) []multiaddr.Multiaddr

// DefaultAddrsFactory 默认地址工厂（不过滤）
func DefaultAddrsFactory(addrs []multiaddr.Multiaddr) []multiaddr.Multiaddr {
	return addrs
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		NegotiationTimeout: 10 * time.Second,
		ConnectAddrTTL:     time.Hour,
		AddrsFactory:       DefaultAddrsFactory,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.NegotiationTimeout <= 0 {
		return errors.New("host: NegotiationTimeout must be positive")
	}
	if c.ConnectAddrTTL <= 0 {
		return errors.New("host: ConnectAddrTTL must be positive")
	}
	if c.AddrsFactory == nil {
		return errors.New("host: AddrsFactory cannot be nil")
	}
	return nil
}

package client

import (
	"fmt"
	"time"

	"github.com/dep2p/go-natpunch/pkg/types"
)

const (
	// DefaultReserveTimeout 预约请求超时
	DefaultReserveTimeout = 10 * time.Second

	// DefaultConnectTimeout 电路建立超时
	DefaultConnectTimeout = 15 * time.Second

	// DefaultRenewBefore 提前续约的时间
	DefaultRenewBefore = 2 * time.Minute

	// DefaultRetryInterval 预约失败后的重试间隔
	DefaultRetryInterval = 10 * time.Second

	// MaxMessageSize HOP/STOP 消息最大长度
	MaxMessageSize = 4096
)

// Config 中继客户端配置
type Config struct {
	// ReserveTimeout 单次预约请求的超时
	ReserveTimeout time.Duration

	// ConnectTimeout 建立电路（含 STOP 握手与连接升级）的超时
	ConnectTimeout time.Duration

	// RenewBefore 在过期前多久续约
	RenewBefore time.Duration

	// RetryInterval 预约或续约失败后的重试间隔
	RetryInterval time.Duration

	// Relays 启动时自动预约的中继
	Relays []types.AddrInfo
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ReserveTimeout: DefaultReserveTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		RenewBefore:    DefaultRenewBefore,
		RetryInterval:  DefaultRetryInterval,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.ReserveTimeout <= 0 {
		return fmt.Errorf("relay client: reserve timeout must be positive, got %s", c.ReserveTimeout)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("relay client: connect timeout must be positive, got %s", c.ConnectTimeout)
	}
	if c.RenewBefore <= 0 {
		return fmt.Errorf("relay client: renew margin must be positive, got %s", c.RenewBefore)
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("relay client: retry interval must be positive, got %s", c.RetryInterval)
	}
	for _, r := range c.Relays {
		if r.ID.IsEmpty() {
			return fmt.Errorf("relay client: relay without peer id")
		}
	}
	return nil
}

package holepunch

import (
	"fmt"
	"time"
)

// Config 打洞配置
type Config struct {
	// RelayDialTimeout 经中继拨号的超时
	RelayDialTimeout time.Duration

	// StreamTimeout CONNECT/SYNC 交换的超时
	StreamTimeout time.Duration

	// DialTimeout 单个候选地址的拨号超时
	DialTimeout time.Duration

	// PunchTimeout 整个打洞阶段的超时
	PunchTimeout time.Duration

	// InboundGrace 本端拨号全部失败后等待对端入站直连的时间
	InboundGrace time.Duration

	// MinSyncDelay Initiator 发送 SYNC 后的最短等待，保证 Responder 先发起拨号
	MinSyncDelay time.Duration

	// MaxAttempts ConnectWithRetry 的最大尝试次数
	MaxAttempts int

	// RetryBackoff 首次重试前的等待，之后逐次翻倍
	RetryBackoff time.Duration

	// MaxAddresses 交换的候选地址上限
	MaxAddresses int

	// AllowPrivateAddrs 允许私网与回环地址作为候选（本机测试）
	AllowPrivateAddrs bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		RelayDialTimeout: 15 * time.Second,
		StreamTimeout:    10 * time.Second,
		DialTimeout:      5 * time.Second,
		PunchTimeout:     10 * time.Second,
		InboundGrace:     time.Second,
		MinSyncDelay:     50 * time.Millisecond,
		MaxAttempts:      3,
		RetryBackoff:     time.Second,
		MaxAddresses:     8,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.RelayDialTimeout <= 0 || c.StreamTimeout <= 0 || c.DialTimeout <= 0 || c.PunchTimeout <= 0 {
		return fmt.Errorf("holepunch: timeouts must be positive")
	}
	if c.InboundGrace < 0 || c.MinSyncDelay < 0 {
		return fmt.Errorf("holepunch: negative grace or sync delay")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("holepunch: max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("holepunch: negative retry backoff %s", c.RetryBackoff)
	}
	if c.MaxAddresses <= 0 {
		return fmt.Errorf("holepunch: max addresses must be positive, got %d", c.MaxAddresses)
	}
	return nil
}

// deadline 一次尝试的总时限
func (c Config) deadline() time.Duration {
	return c.RelayDialTimeout + c.StreamTimeout + c.PunchTimeout
}

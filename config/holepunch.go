package config

import "time"

// HolePunchConfig 打洞配置
type HolePunchConfig struct {
	// RelayDialTimeout 经中继拨号的超时
	RelayDialTimeout Duration `json:"relay_dial_timeout" toml:"relay_dial_timeout"`

	// StreamTimeout CONNECT/SYNC 交换的超时
	StreamTimeout Duration `json:"stream_timeout" toml:"stream_timeout"`

	// DialTimeout 单个候选地址的拨号超时
	DialTimeout Duration `json:"dial_timeout" toml:"dial_timeout"`

	// PunchTimeout 整个 Punching 阶段的超时
	PunchTimeout Duration `json:"punch_timeout" toml:"punch_timeout"`

	// MaxAttempts ConnectWithRetry 的最大尝试次数
	MaxAttempts int `json:"max_attempts" toml:"max_attempts"`

	// RetryBackoff 首次重试前的等待，之后每次翻倍
	RetryBackoff Duration `json:"retry_backoff" toml:"retry_backoff"`

	// MaxAddresses 交换的候选地址上限
	MaxAddresses int `json:"max_addresses" toml:"max_addresses"`

	// AllowPrivateAddrs 允许私有与回环候选地址
	AllowPrivateAddrs bool `json:"allow_private_addrs" toml:"allow_private_addrs"`
}

// DefaultHolePunchConfig 返回默认打洞配置
func DefaultHolePunchConfig() HolePunchConfig {
	return HolePunchConfig{
		RelayDialTimeout: Duration(15 * time.Second),
		StreamTimeout:    Duration(10 * time.Second),
		DialTimeout:      Duration(5 * time.Second),
		PunchTimeout:     Duration(10 * time.Second),
		MaxAttempts:      3,
		RetryBackoff:     Duration(time.Second),
		MaxAddresses:     8,
	}
}

// Validate 验证打洞配置
func (c HolePunchConfig) Validate() error {
	if err := positive("holepunch.relay_dial_timeout", c.RelayDialTimeout); err != nil {
		return err
	}
	if err := positive("holepunch.stream_timeout", c.StreamTimeout); err != nil {
		return err
	}
	if err := positive("holepunch.dial_timeout", c.DialTimeout); err != nil {
		return err
	}
	if err := positive("holepunch.punch_timeout", c.PunchTimeout); err != nil {
		return err
	}
	if c.MaxAttempts <= 0 {
		return fieldErr("holepunch.max_attempts", "must be positive, got %d", c.MaxAttempts)
	}
	if c.RetryBackoff < 0 {
		return fieldErr("holepunch.retry_backoff", "must not be negative")
	}
	if c.MaxAddresses <= 0 {
		return fieldErr("holepunch.max_addresses", "must be positive, got %d", c.MaxAddresses)
	}
	return nil
}

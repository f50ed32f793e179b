package swarm

import (
	"errors"
	"time"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
)

// Config Swarm 配置
type Config struct {
	// DialTimeout 单次 DialPeer 的总超时
	DialTimeout time.Duration

	// NewStreamTimeout 开流超时
	NewStreamTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DialTimeout:      15 * time.Second,
		NewStreamTimeout: 15 * time.Second,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.DialTimeout <= 0 {
		return errors.New("swarm: dial timeout must be positive")
	}
	if c.NewStreamTimeout <= 0 {
		return errors.New("swarm: new stream timeout must be positive")
	}
	return nil
}

// Option Swarm 选项
type Option func(*Swarm) error

// WithConfig 设置配置
func WithConfig(config *Config) Option {
	return func(s *Swarm) error {
		if config == nil {
			return errors.New("swarm: nil config")
		}
		if err := config.Validate(); err != nil {
			return err
		}
		s.config = config
		return nil
	}
}

// WithAddressBook 设置 DialPeer 使用的地址簿
func WithAddressBook(ab pkgif.AddressBook) Option {
	return func(s *Swarm) error {
		s.addrBook = ab
		return nil
	}
}

package identify

import (
	"errors"
	"time"
)

const (
	// DefaultProtocolVersion 默认协议版本
	DefaultProtocolVersion = "/chat/0.0.1"

	// DefaultAgentVersion 默认代理版本
	DefaultAgentVersion = "go-natpunch/0.1.0"

	// MaxMessageSize 单条 identify 消息的最大字节数
	MaxMessageSize = 8 << 10
)

// Config identify 服务配置
type Config struct {
	// Timeout 单次交换的超时
	Timeout time.Duration

	// ProtocolVersion 声明的协议版本
	ProtocolVersion string

	// AgentVersion 声明的代理版本
	AgentVersion string

	// AddrTTL 对端监听地址写入地址簿的有效期
	AddrTTL time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Timeout:         10 * time.Second,
		ProtocolVersion: DefaultProtocolVersion,
		AgentVersion:    DefaultAgentVersion,
		AddrTTL:         time.Hour,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("identify: Timeout must be positive")
	}
	if c.AddrTTL <= 0 {
		return errors.New("identify: AddrTTL must be positive")
	}
	if c.ProtocolVersion == "" {
		return errors.New("identify: ProtocolVersion cannot be empty")
	}
	return nil
}

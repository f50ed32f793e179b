package config

import "time"

// IdentifyConfig 地址学习交换配置
type IdentifyConfig struct {
	// Timeout 单次交换超时，也是启动时等待 identify 完成的上限
	Timeout Duration `json:"timeout" toml:"timeout"`

	// ProtocolVersion 声明的协议版本
	ProtocolVersion string `json:"protocol_version" toml:"protocol_version"`

	// AgentVersion 声明的代理版本
	AgentVersion string `json:"agent_version" toml:"agent_version"`

	// AddrTTL 对端监听地址的有效期
	AddrTTL Duration `json:"addr_ttl" toml:"addr_ttl"`
}

// DefaultIdentifyConfig 返回默认配置
func DefaultIdentifyConfig() IdentifyConfig {
	return IdentifyConfig{
		Timeout:         Duration(10 * time.Second),
		ProtocolVersion: "/chat/0.0.1",
		AgentVersion:    "go-natpunch/0.1.0",
		AddrTTL:         Duration(time.Hour),
	}
}

// Validate 验证配置
func (c IdentifyConfig) Validate() error {
	if err := positive("identify.timeout", c.Timeout); err != nil {
		return err
	}
	if err := positive("identify.addr_ttl", c.AddrTTL); err != nil {
		return err
	}
	if c.ProtocolVersion == "" {
		return fieldErr("identify.protocol_version", "must not be empty")
	}
	return nil
}

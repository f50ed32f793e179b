package config

import (
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
)

// IdentityConfig 身份配置
type IdentityConfig struct {
	// SecretKeySeed 确定性身份种子
	//
	// 32 字节 ed25519 种子的第 0 字节为该值，其余为 0。仅用于演示，
	// 未设置时随机生成密钥。
	SecretKeySeed *uint8 `json:"secret_key_seed,omitempty" toml:"secret_key_seed,omitempty"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{}
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	return nil
}

// WithSeed 设置身份种子
func (c IdentityConfig) WithSeed(seed uint8) IdentityConfig {
	c.SecretKeySeed = &seed
	return c
}

// PrivateKey 按配置生成节点私钥
func (c IdentityConfig) PrivateKey() (crypto.PrivateKey, error) {
	if c.SecretKeySeed != nil {
		return crypto.KeyPairFromSeedByte(*c.SecretKeySeed), nil
	}
	priv, _, err := crypto.GenerateKeyPair()
	return priv, err
}

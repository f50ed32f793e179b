package host

import (
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
)

// Option Host 构造选项类型
type Option func(*Host) error

// WithSwarm 设置 Swarm
func WithSwarm(swarm pkgif.Swarm) Option {
	return func(h *Host) error {
		h.swarm = swarm
		return nil
	}
}

// WithAddressBook 设置地址簿
func WithAddressBook(ab pkgif.AddressBook) Option {
	return func(h *Host) error {
		h.addrBook = ab
		return nil
	}
}

// WithEventBus 设置 EventBus
func WithEventBus(eb pkgif.EventBus) Option {
	return func(h *Host) error {
		h.eventbus = eb
		return nil
	}
}

// WithPrivateKey 设置节点私钥
func WithPrivateKey(priv crypto.PrivateKey) Option {
	return func(h *Host) error {
		h.privKey = priv
		return nil
	}
}

// WithConfig 设置配置
func WithConfig(cfg *Config) Option {
	return func(h *Host) error {
		if cfg == nil {
			return nil
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		h.config = cfg
		return nil
	}
}

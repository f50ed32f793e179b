package config

import (
	"time"

	"github.com/dep2p/go-natpunch/pkg/types"
)

// RelayConfig 中继配置
//
// Address 为客户端使用的中继，格式为 /ip4/1.2.3.4/tcp/4001/p2p/<relay-id>。
// Server.Enable 为 true 时本节点同时为其他节点提供中继服务。
type RelayConfig struct {
	// Address 要使用的中继地址
	Address string `json:"address,omitempty" toml:"address,omitempty"`

	// Client 客户端配置
	Client RelayClientConfig `json:"client" toml:"client"`

	// Server 服务端配置
	Server RelayServerConfig `json:"server" toml:"server"`
}

// RelayClientConfig 中继客户端配置
type RelayClientConfig struct {
	// ReserveTimeout 单次预约请求超时
	ReserveTimeout Duration `json:"reserve_timeout" toml:"reserve_timeout"`

	// ConnectTimeout 电路建立超时
	ConnectTimeout Duration `json:"connect_timeout" toml:"connect_timeout"`

	// RenewBefore 过期前多久续约
	RenewBefore Duration `json:"renew_before" toml:"renew_before"`

	// RetryInterval 续约失败后的重试间隔
	RetryInterval Duration `json:"retry_interval" toml:"retry_interval"`
}

// RelayServerConfig 中继服务端配置
type RelayServerConfig struct {
	// Enable 启用中继服务
	Enable bool `json:"enable" toml:"enable"`

	// ReservationTTL 预约有效期
	ReservationTTL Duration `json:"reservation_ttl" toml:"reservation_ttl"`

	// MaxReservations 同时有效的预约上限
	MaxReservations int `json:"max_reservations" toml:"max_reservations"`

	// MaxCircuits 同时活跃的电路上限
	MaxCircuits int `json:"max_circuits" toml:"max_circuits"`

	// MaxCircuitsPerPeer 单个目标的电路上限
	MaxCircuitsPerPeer int `json:"max_circuits_per_peer" toml:"max_circuits_per_peer"`

	// ReservationInterval/ReservationBurst 单个节点的预约速率
	ReservationInterval Duration `json:"reservation_interval" toml:"reservation_interval"`
	ReservationBurst    int      `json:"reservation_burst" toml:"reservation_burst"`

	// CircuitDuration 单条电路最长存活时间，0 表示不限制
	CircuitDuration Duration `json:"circuit_duration" toml:"circuit_duration"`

	// CircuitData 单条电路每个方向的字节上限，0 表示不限制
	CircuitData uint64 `json:"circuit_data" toml:"circuit_data"`
}

// DefaultRelayConfig 返回默认中继配置
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Client: RelayClientConfig{
			ReserveTimeout: Duration(10 * time.Second),
			ConnectTimeout: Duration(15 * time.Second),
			RenewBefore:    Duration(2 * time.Minute),
			RetryInterval:  Duration(10 * time.Second),
		},
		Server: RelayServerConfig{
			ReservationTTL:      Duration(time.Hour),
			MaxReservations:     128,
			MaxCircuits:         16,
			MaxCircuitsPerPeer:  4,
			ReservationInterval: Duration(10 * time.Second),
			ReservationBurst:    4,
			CircuitDuration:     Duration(2 * time.Minute),
			CircuitData:         1 << 17,
		},
	}
}

// Validate 验证中继配置
func (c RelayConfig) Validate() error {
	if c.Address != "" {
		if _, err := c.AddrInfo(); err != nil {
			return err
		}
	}
	if err := positive("relay.client.reserve_timeout", c.Client.ReserveTimeout); err != nil {
		return err
	}
	if err := positive("relay.client.connect_timeout", c.Client.ConnectTimeout); err != nil {
		return err
	}
	if err := positive("relay.client.renew_before", c.Client.RenewBefore); err != nil {
		return err
	}
	if err := positive("relay.client.retry_interval", c.Client.RetryInterval); err != nil {
		return err
	}
	if !c.Server.Enable {
		return nil
	}
	s := c.Server
	if err := positive("relay.server.reservation_ttl", s.ReservationTTL); err != nil {
		return err
	}
	if s.MaxReservations <= 0 || s.MaxCircuits <= 0 || s.MaxCircuitsPerPeer <= 0 {
		return fieldErr("relay.server", "reservation and circuit limits must be positive")
	}
	if s.ReservationInterval <= 0 || s.ReservationBurst <= 0 {
		return fieldErr("relay.server", "reservation rate must be positive")
	}
	if s.CircuitDuration < 0 {
		return fieldErr("relay.server.circuit_duration", "must not be negative")
	}
	return nil
}

// AddrInfo 解析中继地址，地址必须带 /p2p/<id>
func (c RelayConfig) AddrInfo() (types.AddrInfo, error) {
	info, err := types.AddrInfoFromString(c.Address)
	if err != nil {
		return types.AddrInfo{}, fieldErr("relay.address", "invalid relay address %q: %v", c.Address, err)
	}
	if len(info.Addrs) == 0 {
		return types.AddrInfo{}, fieldErr("relay.address", "relay address %q has no transport part", c.Address)
	}
	return *info, nil
}

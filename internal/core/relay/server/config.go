package server

import (
	"fmt"
	"time"
)

// Config 中继服务配置
type Config struct {
	// ReservationTTL 预约有效期
	ReservationTTL time.Duration

	// MaxReservations 同时有效的预约上限
	MaxReservations int

	// MaxCircuits 同时活跃的电路上限
	MaxCircuits int

	// MaxCircuitsPerPeer 单个目标节点的电路上限
	MaxCircuitsPerPeer int

	// ReservationInterval/ReservationBurst 单个节点的预约请求速率
	ReservationInterval time.Duration
	ReservationBurst    int

	// CircuitDuration 单条电路最长存活时间，0 表示不限制
	CircuitDuration time.Duration

	// CircuitData 单条电路每个方向的转发字节上限，0 表示不限制
	CircuitData uint64

	// ConnectTimeout 打开 STOP 流并完成握手的超时
	ConnectTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ReservationTTL:      time.Hour,
		MaxReservations:     128,
		MaxCircuits:         16,
		MaxCircuitsPerPeer:  4,
		ReservationInterval: 10 * time.Second,
		ReservationBurst:    4,
		CircuitDuration:     2 * time.Minute,
		CircuitData:         1 << 17,
		ConnectTimeout:      10 * time.Second,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.ReservationTTL <= 0 {
		return fmt.Errorf("relay server: reservation ttl must be positive, got %s", c.ReservationTTL)
	}
	if c.MaxReservations <= 0 || c.MaxCircuits <= 0 || c.MaxCircuitsPerPeer <= 0 {
		return fmt.Errorf("relay server: reservation and circuit limits must be positive")
	}
	if c.ReservationInterval <= 0 || c.ReservationBurst <= 0 {
		return fmt.Errorf("relay server: reservation rate must be positive")
	}
	if c.CircuitDuration < 0 {
		return fmt.Errorf("relay server: negative circuit duration %s", c.CircuitDuration)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("relay server: connect timeout must be positive, got %s", c.ConnectTimeout)
	}
	return nil
}

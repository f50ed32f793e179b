// Package relay 包含 Circuit Relay v2 的消息定义
//
// 对应 libp2p circuit v2 的 HopMessage / StopMessage，
// 用于 /libp2p/circuit/relay/0.2.0/hop 与 /libp2p/circuit/relay/0.2.0/stop。
package relay

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-natpunch/pkg/lib/proto"
)

// HopType HopMessage 类型
type HopType int32

const (
	HopReserve HopType = 0
	HopConnect HopType = 1
	HopStatus  HopType = 2
)

func (t HopType) String() string {
	switch t {
	case HopReserve:
		return "RESERVE"
	case HopConnect:
		return "CONNECT"
	case HopStatus:
		return "STATUS"
	default:
		return fmt.Sprintf("HopType(%d)", int32(t))
	}
}

// StopType StopMessage 类型
type StopType int32

const (
	StopConnect StopType = 0
	StopStatus  StopType = 1
)

func (t StopType) String() string {
	switch t {
	case StopConnect:
		return "CONNECT"
	case StopStatus:
		return "STATUS"
	default:
		return fmt.Sprintf("StopType(%d)", int32(t))
	}
}

// Status 状态码
type Status int32

const (
	StatusUnused                Status = 0
	StatusOK                    Status = 100
	StatusReservationRefused    Status = 200
	StatusResourceLimitExceeded Status = 201
	StatusPermissionDenied      Status = 202
	StatusConnectionFailed      Status = 203
	StatusNoReservation         Status = 204
	StatusMalformedMessage      Status = 400
	StatusUnexpectedMessage     Status = 401
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusReservationRefused:
		return "RESERVATION_REFUSED"
	case StatusResourceLimitExceeded:
		return "RESOURCE_LIMIT_EXCEEDED"
	case StatusPermissionDenied:
		return "PERMISSION_DENIED"
	case StatusConnectionFailed:
		return "CONNECTION_FAILED"
	case StatusNoReservation:
		return "NO_RESERVATION"
	case StatusMalformedMessage:
		return "MALFORMED_MESSAGE"
	case StatusUnexpectedMessage:
		return "UNEXPECTED_MESSAGE"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// ============================================================================
//                              子消息
// ============================================================================

// Peer 节点信息
type Peer struct {
	ID    []byte
	Addrs [][]byte
}

// Marshal 序列化
func (p *Peer) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, p.ID)
	for _, a := range p.Addrs {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, a)
	}
	return b, nil
}

// Unmarshal 反序列化
func (p *Peer) Unmarshal(data []byte) error {
	*p = Peer{}
	return proto.RangeFields(data, func(f proto.Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		switch f.Num {
		case 1:
			p.ID = proto.Clone(f.Bytes)
		case 2:
			p.Addrs = append(p.Addrs, proto.Clone(f.Bytes))
		}
		return nil
	})
}

// Reservation 预约信息，Expire 为 Unix 秒
type Reservation struct {
	Expire  uint64
	Addrs   [][]byte
	Voucher []byte
}

// Marshal 序列化
func (r *Reservation) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Expire)
	for _, a := range r.Addrs {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, a)
	}
	if len(r.Voucher) > 0 {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Voucher)
	}
	return b, nil
}

// Unmarshal 反序列化
func (r *Reservation) Unmarshal(data []byte) error {
	*r = Reservation{}
	return proto.RangeFields(data, func(f proto.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			r.Expire = f.Varint
		case f.Num == 2 && f.Type == protowire.BytesType:
			r.Addrs = append(r.Addrs, proto.Clone(f.Bytes))
		case f.Num == 3 && f.Type == protowire.BytesType:
			r.Voucher = proto.Clone(f.Bytes)
		}
		return nil
	})
}

// Limit 电路限制，零值表示不限制
type Limit struct {
	Duration uint32 // 秒
	Data     uint64 // 每个方向的字节数
}

// Marshal 序列化
func (l *Limit) Marshal() ([]byte, error) {
	var b []byte
	if l.Duration > 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(l.Duration))
	}
	if l.Data > 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, l.Data)
	}
	return b, nil
}

// Unmarshal 反序列化
func (l *Limit) Unmarshal(data []byte) error {
	*l = Limit{}
	return proto.RangeFields(data, func(f proto.Field) error {
		if f.Type != protowire.VarintType {
			return nil
		}
		switch f.Num {
		case 1:
			l.Duration = uint32(f.Varint)
		case 2:
			l.Data = f.Varint
		}
		return nil
	})
}

// ============================================================================
//                              顶层消息
// ============================================================================

// HopMessage hop 协议消息
type HopMessage struct {
	Type        HopType
	Peer        *Peer
	Reservation *Reservation
	Limit       *Limit
	Status      Status
}

// Marshal 序列化
func (m *HopMessage) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Type))
	var err error
	if m.Peer != nil {
		if b, err = appendMessage(b, 2, m.Peer); err != nil {
			return nil, err
		}
	}
	if m.Reservation != nil {
		if b, err = appendMessage(b, 3, m.Reservation); err != nil {
			return nil, err
		}
	}
	if m.Limit != nil {
		if b, err = appendMessage(b, 4, m.Limit); err != nil {
			return nil, err
		}
	}
	if m.Status != StatusUnused {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Status))
	}
	return b, nil
}

// Unmarshal 反序列化
func (m *HopMessage) Unmarshal(data []byte) error {
	*m = HopMessage{}
	hasType := false
	err := proto.RangeFields(data, func(f proto.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			m.Type = HopType(f.Varint)
			hasType = true
		case f.Num == 2 && f.Type == protowire.BytesType:
			m.Peer = new(Peer)
			return m.Peer.Unmarshal(f.Bytes)
		case f.Num == 3 && f.Type == protowire.BytesType:
			m.Reservation = new(Reservation)
			return m.Reservation.Unmarshal(f.Bytes)
		case f.Num == 4 && f.Type == protowire.BytesType:
			m.Limit = new(Limit)
			return m.Limit.Unmarshal(f.Bytes)
		case f.Num == 5 && f.Type == protowire.VarintType:
			m.Status = Status(f.Varint)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !hasType {
		return fmt.Errorf("%w: hop message without type", proto.ErrMalformed)
	}
	return nil
}

// StopMessage stop 协议消息
type StopMessage struct {
	Type   StopType
	Peer   *Peer
	Limit  *Limit
	Status Status
}

// Marshal 序列化
func (m *StopMessage) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Type))
	var err error
	if m.Peer != nil {
		if b, err = appendMessage(b, 2, m.Peer); err != nil {
			return nil, err
		}
	}
	if m.Limit != nil {
		if b, err = appendMessage(b, 3, m.Limit); err != nil {
			return nil, err
		}
	}
	if m.Status != StatusUnused {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Status))
	}
	return b, nil
}

// Unmarshal 反序列化
func (m *StopMessage) Unmarshal(data []byte) error {
	*m = StopMessage{}
	hasType := false
	err := proto.RangeFields(data, func(f proto.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			m.Type = StopType(f.Varint)
			hasType = true
		case f.Num == 2 && f.Type == protowire.BytesType:
			m.Peer = new(Peer)
			return m.Peer.Unmarshal(f.Bytes)
		case f.Num == 3 && f.Type == protowire.BytesType:
			m.Limit = new(Limit)
			return m.Limit.Unmarshal(f.Bytes)
		case f.Num == 4 && f.Type == protowire.VarintType:
			m.Status = Status(f.Varint)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !hasType {
		return fmt.Errorf("%w: stop message without type", proto.ErrMalformed)
	}
	return nil
}

// appendMessage 追加嵌套消息
func appendMessage(b []byte, num protowire.Number, m proto.Message) ([]byte, error) {
	data, err := m.Marshal()
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, data), nil
}

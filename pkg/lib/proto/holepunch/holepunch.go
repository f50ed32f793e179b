// Package holepunch 包含 /libp2p/dcutr 的消息定义
//
//	message HolePunch {
//	  enum Type { CONNECT = 100; SYNC = 300; }
//	  required Type  type     = 1;
//	  repeated bytes ObsAddrs = 2;
//	}
package holepunch

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-natpunch/pkg/lib/proto"
)

// Type 消息类型
type Type int32

const (
	Connect Type = 100
	Sync    Type = 300
)

func (t Type) String() string {
	switch t {
	case Connect:
		return "CONNECT"
	case Sync:
		return "SYNC"
	default:
		return fmt.Sprintf("Type(%d)", int32(t))
	}
}

// HolePunch 打洞协调消息，ObsAddrs 为 multiaddr 二进制编码
type HolePunch struct {
	Type     Type
	ObsAddrs [][]byte
}

// Marshal 序列化
func (m *HolePunch) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Type))
	for _, a := range m.ObsAddrs {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, a)
	}
	return b, nil
}

// Unmarshal 反序列化
func (m *HolePunch) Unmarshal(data []byte) error {
	*m = HolePunch{}
	hasType := false
	err := proto.RangeFields(data, func(f proto.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			m.Type = Type(f.Varint)
			hasType = true
		case f.Num == 2 && f.Type == protowire.BytesType:
			m.ObsAddrs = append(m.ObsAddrs, proto.Clone(f.Bytes))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !hasType {
		return fmt.Errorf("%w: hole punch message without type", proto.ErrMalformed)
	}
	return nil
}

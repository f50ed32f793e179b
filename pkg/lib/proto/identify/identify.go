// Package identify 包含 /ipfs/id/1.0.0 的消息定义
//
//	message Identify {
//	  optional bytes  publicKey       = 1;
//	  repeated bytes  listenAddrs     = 2;
//	  repeated string protocols       = 3;
//	  optional bytes  observedAddr    = 4;
//	  optional string protocolVersion = 5;
//	  optional string agentVersion    = 6;
//	}
package identify

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-natpunch/pkg/lib/proto"
)

const (
	fieldPublicKey       protowire.Number = 1
	fieldListenAddrs     protowire.Number = 2
	fieldProtocols       protowire.Number = 3
	fieldObservedAddr    protowire.Number = 4
	fieldProtocolVersion protowire.Number = 5
	fieldAgentVersion    protowire.Number = 6
)

// Identify 身份信息消息，地址为 multiaddr 二进制编码
type Identify struct {
	PublicKey       []byte
	ListenAddrs     [][]byte
	Protocols       []string
	ObservedAddr    []byte
	ProtocolVersion string
	AgentVersion    string
}

// Marshal 序列化
func (m *Identify) Marshal() ([]byte, error) {
	var b []byte
	if len(m.PublicKey) > 0 {
		b = protowire.AppendTag(b, fieldPublicKey, protowire.BytesType)
		b = protowire.AppendBytes(b, m.PublicKey)
	}
	for _, a := range m.ListenAddrs {
		b = protowire.AppendTag(b, fieldListenAddrs, protowire.BytesType)
		b = protowire.AppendBytes(b, a)
	}
	for _, p := range m.Protocols {
		b = protowire.AppendTag(b, fieldProtocols, protowire.BytesType)
		b = protowire.AppendString(b, p)
	}
	if len(m.ObservedAddr) > 0 {
		b = protowire.AppendTag(b, fieldObservedAddr, protowire.BytesType)
		b = protowire.AppendBytes(b, m.ObservedAddr)
	}
	if m.ProtocolVersion != "" {
		b = protowire.AppendTag(b, fieldProtocolVersion, protowire.BytesType)
		b = protowire.AppendString(b, m.ProtocolVersion)
	}
	if m.AgentVersion != "" {
		b = protowire.AppendTag(b, fieldAgentVersion, protowire.BytesType)
		b = protowire.AppendString(b, m.AgentVersion)
	}
	return b, nil
}

// Unmarshal 反序列化，未知字段忽略
func (m *Identify) Unmarshal(data []byte) error {
	*m = Identify{}
	return proto.RangeFields(data, func(f proto.Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		switch f.Num {
		case fieldPublicKey:
			m.PublicKey = proto.Clone(f.Bytes)
		case fieldListenAddrs:
			m.ListenAddrs = append(m.ListenAddrs, proto.Clone(f.Bytes))
		case fieldProtocols:
			m.Protocols = append(m.Protocols, string(f.Bytes))
		case fieldObservedAddr:
			m.ObservedAddr = proto.Clone(f.Bytes)
		case fieldProtocolVersion:
			m.ProtocolVersion = string(f.Bytes)
		case fieldAgentVersion:
			m.AgentVersion = string(f.Bytes)
		}
		return nil
	})
}

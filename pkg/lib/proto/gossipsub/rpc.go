// Package gossipsub 包含 /meshsub/1.1.0 的 RPC 消息定义
//
//	message RPC {
//	  repeated SubOpts subscriptions = 1;
//	  repeated Message publish       = 2;
//	  optional ControlMessage control = 3;
//	}
//
// Message 字段 from=1 data=2 seqno=3 topic=4 signature=5 key=6。
package gossipsub

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-natpunch/pkg/lib/proto"
)

// RPC 一次 RPC 交互
type RPC struct {
	Subscriptions []*SubOpts
	Publish       []*Message
	Control       *ControlMessage
}

// SubOpts 订阅或取消订阅
type SubOpts struct {
	Subscribe bool
	TopicID   string
}

// Message 发布的消息
type Message struct {
	From      []byte
	Data      []byte
	Seqno     []byte
	Topic     string
	Signature []byte
	Key       []byte
}

// ControlMessage 网格控制消息
type ControlMessage struct {
	IHave []*ControlIHave
	IWant []*ControlIWant
	Graft []*ControlGraft
	Prune []*ControlPrune
}

// ControlIHave 通告本地缓存的消息 ID
type ControlIHave struct {
	TopicID    string
	MessageIDs []string
}

// ControlIWant 请求消息
type ControlIWant struct {
	MessageIDs []string
}

// ControlGraft 加入对方的网格
type ControlGraft struct {
	TopicID string
}

// ControlPrune 离开对方的网格，Backoff 单位为秒
type ControlPrune struct {
	TopicID string
	Backoff uint64
}

// Empty 是否不携带任何内容
func (r *RPC) Empty() bool {
	return len(r.Subscriptions) == 0 && len(r.Publish) == 0 && r.Control.Empty()
}

// Empty 是否不携带任何控制消息
func (c *ControlMessage) Empty() bool {
	return c == nil || len(c.IHave)+len(c.IWant)+len(c.Graft)+len(c.Prune) == 0
}

// ============================================================================
//                              编码
// ============================================================================

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// Marshal 序列化
func (r *RPC) Marshal() ([]byte, error) {
	var b []byte
	for _, s := range r.Subscriptions {
		b = appendBytes(b, 1, s.marshal())
	}
	for _, m := range r.Publish {
		data, err := m.Marshal()
		if err != nil {
			return nil, err
		}
		b = appendBytes(b, 2, data)
	}
	if r.Control != nil {
		b = appendBytes(b, 3, r.Control.marshal())
	}
	return b, nil
}

func (s *SubOpts) marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, protowire.EncodeBool(s.Subscribe))
	return appendString(b, 2, s.TopicID)
}

// Marshal 序列化，空字段省略
func (m *Message) Marshal() ([]byte, error) {
	var b []byte
	if len(m.From) > 0 {
		b = appendBytes(b, 1, m.From)
	}
	if len(m.Data) > 0 {
		b = appendBytes(b, 2, m.Data)
	}
	if len(m.Seqno) > 0 {
		b = appendBytes(b, 3, m.Seqno)
	}
	b = appendString(b, 4, m.Topic)
	if len(m.Signature) > 0 {
		b = appendBytes(b, 5, m.Signature)
	}
	if len(m.Key) > 0 {
		b = appendBytes(b, 6, m.Key)
	}
	return b, nil
}

func (c *ControlMessage) marshal() []byte {
	var b []byte
	for _, ih := range c.IHave {
		var sub []byte
		sub = appendString(sub, 1, ih.TopicID)
		for _, id := range ih.MessageIDs {
			sub = appendString(sub, 2, id)
		}
		b = appendBytes(b, 1, sub)
	}
	for _, iw := range c.IWant {
		var sub []byte
		for _, id := range iw.MessageIDs {
			sub = appendString(sub, 1, id)
		}
		b = appendBytes(b, 2, sub)
	}
	for _, g := range c.Graft {
		b = appendBytes(b, 3, appendString(nil, 1, g.TopicID))
	}
	for _, p := range c.Prune {
		sub := appendString(nil, 1, p.TopicID)
		if p.Backoff > 0 {
			sub = appendVarint(sub, 3, p.Backoff)
		}
		b = appendBytes(b, 4, sub)
	}
	return b
}

// ============================================================================
//                              解码
// ============================================================================

// Unmarshal 反序列化
func (r *RPC) Unmarshal(data []byte) error {
	*r = RPC{}
	return proto.RangeFields(data, func(f proto.Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		switch f.Num {
		case 1:
			s := new(SubOpts)
			if err := s.unmarshal(f.Bytes); err != nil {
				return err
			}
			r.Subscriptions = append(r.Subscriptions, s)
		case 2:
			m := new(Message)
			if err := m.Unmarshal(f.Bytes); err != nil {
				return err
			}
			r.Publish = append(r.Publish, m)
		case 3:
			if r.Control == nil {
				r.Control = new(ControlMessage)
			}
			return r.Control.unmarshal(f.Bytes)
		}
		return nil
	})
}

func (s *SubOpts) unmarshal(data []byte) error {
	return proto.RangeFields(data, func(f proto.Field) error {
		switch {
		case f.Num == 1 && f.Type == protowire.VarintType:
			s.Subscribe = protowire.DecodeBool(f.Varint)
		case f.Num == 2 && f.Type == protowire.BytesType:
			s.TopicID = string(f.Bytes)
		}
		return nil
	})
}

// Unmarshal 反序列化
func (m *Message) Unmarshal(data []byte) error {
	*m = Message{}
	return proto.RangeFields(data, func(f proto.Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		switch f.Num {
		case 1:
			m.From = proto.Clone(f.Bytes)
		case 2:
			m.Data = proto.Clone(f.Bytes)
		case 3:
			m.Seqno = proto.Clone(f.Bytes)
		case 4:
			m.Topic = string(f.Bytes)
		case 5:
			m.Signature = proto.Clone(f.Bytes)
		case 6:
			m.Key = proto.Clone(f.Bytes)
		}
		return nil
	})
}

// unmarshal 合并到已有的控制消息中
func (c *ControlMessage) unmarshal(data []byte) error {
	return proto.RangeFields(data, func(f proto.Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		switch f.Num {
		case 1:
			ih := new(ControlIHave)
			err := proto.RangeFields(f.Bytes, func(g proto.Field) error {
				if g.Type != protowire.BytesType {
					return nil
				}
				switch g.Num {
				case 1:
					ih.TopicID = string(g.Bytes)
				case 2:
					ih.MessageIDs = append(ih.MessageIDs, string(g.Bytes))
				}
				return nil
			})
			if err != nil {
				return err
			}
			c.IHave = append(c.IHave, ih)
		case 2:
			iw := new(ControlIWant)
			err := proto.RangeFields(f.Bytes, func(g proto.Field) error {
				if g.Num == 1 && g.Type == protowire.BytesType {
					iw.MessageIDs = append(iw.MessageIDs, string(g.Bytes))
				}
				return nil
			})
			if err != nil {
				return err
			}
			c.IWant = append(c.IWant, iw)
		case 3:
			gr := new(ControlGraft)
			err := proto.RangeFields(f.Bytes, func(g proto.Field) error {
				if g.Num == 1 && g.Type == protowire.BytesType {
					gr.TopicID = string(g.Bytes)
				}
				return nil
			})
			if err != nil {
				return err
			}
			c.Graft = append(c.Graft, gr)
		case 4:
			pr := new(ControlPrune)
			err := proto.RangeFields(f.Bytes, func(g proto.Field) error {
				switch {
				case g.Num == 1 && g.Type == protowire.BytesType:
					pr.TopicID = string(g.Bytes)
				case g.Num == 3 && g.Type == protowire.VarintType:
					pr.Backoff = g.Varint
				}
				return nil
			})
			if err != nil {
				return err
			}
			c.Prune = append(c.Prune, pr)
		}
		return nil
	})
}

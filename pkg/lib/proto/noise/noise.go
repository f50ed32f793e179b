// Package noise 包含 Noise 握手 payload 的定义
//
// 实现 libp2p-noise 规范的 NoiseHandshakePayload：
//   - IdentityKey: 序列化的身份公钥
//   - IdentitySig: 对 "noise-libp2p-static-key:" + Curve25519 静态公钥 的签名
package noise

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-natpunch/pkg/lib/proto"
)

const (
	fieldIdentityKey protowire.Number = 1
	fieldIdentitySig protowire.Number = 2
)

// ErrInvalidPayload 表示无效的 payload 数据
var ErrInvalidPayload = errors.New("invalid noise payload data")

// HandshakePayload Noise 握手 payload
type HandshakePayload struct {
	IdentityKey []byte
	IdentitySig []byte
}

// Marshal 序列化
func (p *HandshakePayload) Marshal() ([]byte, error) {
	b := make([]byte, 0, len(p.IdentityKey)+len(p.IdentitySig)+8)
	b = protowire.AppendTag(b, fieldIdentityKey, protowire.BytesType)
	b = protowire.AppendBytes(b, p.IdentityKey)
	b = protowire.AppendTag(b, fieldIdentitySig, protowire.BytesType)
	b = protowire.AppendBytes(b, p.IdentitySig)
	return b, nil
}

// Unmarshal 反序列化，未知字段忽略；两个字段都必须存在
func (p *HandshakePayload) Unmarshal(data []byte) error {
	*p = HandshakePayload{}
	err := proto.RangeFields(data, func(f proto.Field) error {
		if f.Type != protowire.BytesType {
			return nil
		}
		switch f.Num {
		case fieldIdentityKey:
			p.IdentityKey = proto.Clone(f.Bytes)
		case fieldIdentitySig:
			p.IdentitySig = proto.Clone(f.Bytes)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(p.IdentityKey) == 0 || len(p.IdentitySig) == 0 {
		return ErrInvalidPayload
	}
	return nil
}

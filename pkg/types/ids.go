// Package types 定义 natpunch 的基础类型
//
// 这是整个系统的最底层包，只依赖 pkg/lib/multiaddr。
// 所有类型都是纯值类型，用于在各模块间传递数据。
package types

import (
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

// ============================================================================
//                              PeerID - 节点标识
// ============================================================================

// PeerID 节点唯一标识符
//
// 内部保存公钥派生出的 multihash 原始字节：
//   - 序列化公钥不超过 42 字节时使用 identity multihash（Ed25519 即为此类）
//   - 否则使用 sha2-256 multihash
//
// 外部表示为 Base58（如 12D3KooW...），与 /p2p/<id> 地址段一致。
type PeerID string

// EmptyPeerID 空节点 ID
const EmptyPeerID PeerID = ""

// String 返回 Base58 表示
func (id PeerID) String() string {
	return base58.Encode([]byte(id))
}

// ShortString 返回日志用的短表示（Base58 末 6 位，前缀 12D3KooW 对所有 Ed25519 节点相同）
func (id PeerID) ShortString() string {
	s := id.String()
	if len(s) <= 10 {
		return s
	}
	return "<peer " + s[len(s)-6:] + ">"
}

// Bytes 返回 multihash 字节
func (id PeerID) Bytes() []byte {
	return []byte(id)
}

// IsEmpty 检查是否为空
func (id PeerID) IsEmpty() bool {
	return id == EmptyPeerID
}

// Validate 校验 multihash 格式
func (id PeerID) Validate() error {
	if id.IsEmpty() {
		return ErrEmptyPeerID
	}
	if err := multiaddr.ValidatePeerIDBytes([]byte(id)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	return nil
}

// MarshalText 实现 encoding.TextMarshaler
func (id PeerID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (id *PeerID) UnmarshalText(data []byte) error {
	p, err := ParsePeerID(string(data))
	if err != nil {
		return err
	}
	*id = p
	return nil
}

// PeerIDFromBytes 从 multihash 字节创建 PeerID
func PeerIDFromBytes(b []byte) (PeerID, error) {
	id := PeerID(b)
	if err := id.Validate(); err != nil {
		return EmptyPeerID, err
	}
	return id, nil
}

// ParsePeerID 从 Base58 字符串解析 PeerID
func ParsePeerID(s string) (PeerID, error) {
	if s == "" {
		return EmptyPeerID, ErrEmptyPeerID
	}
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyPeerID, fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	return PeerIDFromBytes(b)
}

// ============================================================================
//                              ProtocolID - 协议标识
// ============================================================================

// ProtocolID 协议标识符，格式 /name/version
type ProtocolID string

// String 返回协议 ID 字符串
func (p ProtocolID) String() string {
	return string(p)
}

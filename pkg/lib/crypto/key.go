package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"io"
)

// KeyType 密钥类型，取值与 libp2p crypto.proto 的 KeyType 枚举一致
type KeyType int

const (
	KeyTypeRSA       KeyType = 0
	KeyTypeEd25519   KeyType = 1
	KeyTypeSecp256k1 KeyType = 2
	KeyTypeECDSA     KeyType = 3
)

// String 返回密钥类型名称
func (kt KeyType) String() string {
	switch kt {
	case KeyTypeRSA:
		return "RSA"
	case KeyTypeEd25519:
		return "Ed25519"
	case KeyTypeSecp256k1:
		return "Secp256k1"
	case KeyTypeECDSA:
		return "ECDSA"
	default:
		return "Unknown"
	}
}

// Key 基础密钥接口
type Key interface {
	// Raw 返回原始密钥字节
	Raw() ([]byte, error)

	// Type 返回密钥类型
	Type() KeyType

	// Equals 比较两个密钥是否相等
	Equals(Key) bool
}

// PublicKey 公钥接口
type PublicKey interface {
	Key

	// Verify 验证签名
	Verify(data, sig []byte) (bool, error)
}

// PrivateKey 私钥接口
type PrivateKey interface {
	Key

	// Sign 签名数据
	Sign(data []byte) ([]byte, error)

	// GetPublic 返回对应的公钥
	GetPublic() PublicKey
}

// GenerateKeyPair 使用系统随机源生成 Ed25519 密钥对
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	return GenerateEd25519Key(rand.Reader)
}

// GenerateKeyPairWithReader 使用指定随机源生成 Ed25519 密钥对
func GenerateKeyPairWithReader(reader io.Reader) (PrivateKey, PublicKey, error) {
	return GenerateEd25519Key(reader)
}

// KeyPairFromSeedByte 由单字节种子确定性派生 Ed25519 密钥
//
// 32 字节种子首字节为 seed，其余为 0。仅用于演示与测试，
// 同一 seed 总是得到同一 PeerID。
func KeyPairFromSeedByte(seed uint8) PrivateKey {
	var buf [Ed25519SeedSize]byte
	buf[0] = seed
	priv, _ := UnmarshalEd25519PrivateKey(buf[:])
	return priv
}

// KeyEqual 常量时间比较两个密钥
func KeyEqual(k1, k2 Key) bool {
	if k1 == nil || k2 == nil || k1.Type() != k2.Type() {
		return false
	}
	b1, err1 := k1.Raw()
	b2, err2 := k2.Raw()
	if err1 != nil || err2 != nil {
		return false
	}
	return subtle.ConstantTimeCompare(b1, b2) == 1
}

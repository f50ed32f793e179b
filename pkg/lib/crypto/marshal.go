package crypto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// libp2p crypto.proto:
//
//	message PublicKey  { required KeyType Type = 1; required bytes Data = 2; }
//	message PrivateKey { required KeyType Type = 1; required bytes Data = 2; }
const (
	fieldKeyType protowire.Number = 1
	fieldKeyData protowire.Number = 2
)

func marshalKey(k Key) ([]byte, error) {
	raw, err := k.Raw()
	if err != nil {
		return nil, err
	}
	var b []byte
	b = protowire.AppendTag(b, fieldKeyType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(k.Type()))
	b = protowire.AppendTag(b, fieldKeyData, protowire.BytesType)
	b = protowire.AppendBytes(b, raw)
	return b, nil
}

func unmarshalKey(data []byte) (KeyType, []byte, error) {
	kt, raw := KeyType(-1), []byte(nil)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return 0, nil, fmt.Errorf("%w: %v", ErrUnmarshalFailed, protowire.ParseError(n))
		}
		data = data[n:]
		switch {
		case num == fieldKeyType && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return 0, nil, fmt.Errorf("%w: %v", ErrUnmarshalFailed, protowire.ParseError(m))
			}
			kt = KeyType(v)
			data = data[m:]
		case num == fieldKeyData && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return 0, nil, fmt.Errorf("%w: %v", ErrUnmarshalFailed, protowire.ParseError(m))
			}
			raw = v
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return 0, nil, fmt.Errorf("%w: %v", ErrUnmarshalFailed, protowire.ParseError(m))
			}
			data = data[m:]
		}
	}
	if kt < 0 || raw == nil {
		return 0, nil, fmt.Errorf("%w: missing type or data", ErrUnmarshalFailed)
	}
	return kt, raw, nil
}

// MarshalPublicKey 序列化公钥（libp2p protobuf 格式）
func MarshalPublicKey(key PublicKey) ([]byte, error) {
	if key == nil {
		return nil, ErrNilPublicKey
	}
	return marshalKey(key)
}

// UnmarshalPublicKey 反序列化公钥
func UnmarshalPublicKey(data []byte) (PublicKey, error) {
	kt, raw, err := unmarshalKey(data)
	if err != nil {
		return nil, err
	}
	if kt != KeyTypeEd25519 {
		return nil, fmt.Errorf("%w: %s", ErrBadKeyType, kt)
	}
	return UnmarshalEd25519PublicKey(raw)
}

// MarshalPrivateKey 序列化私钥（libp2p protobuf 格式）
func MarshalPrivateKey(key PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, ErrNilPrivateKey
	}
	return marshalKey(key)
}

// UnmarshalPrivateKey 反序列化私钥
func UnmarshalPrivateKey(data []byte) (PrivateKey, error) {
	kt, raw, err := unmarshalKey(data)
	if err != nil {
		return nil, err
	}
	if kt != KeyTypeEd25519 {
		return nil, fmt.Errorf("%w: %s", ErrBadKeyType, kt)
	}
	return UnmarshalEd25519PrivateKey(raw)
}

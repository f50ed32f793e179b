package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/multiformats/go-varint"

	"github.com/dep2p/go-natpunch/pkg/types"
)

// multihash 常量
const (
	mhIdentity = 0x00
	mhSha2_256 = 0x12

	// maxInlineKeyLength 序列化公钥不超过此长度时内嵌到 PeerID
	maxInlineKeyLength = 42
)

// IDFromPublicKey 从公钥派生 PeerID
func IDFromPublicKey(pub PublicKey) (types.PeerID, error) {
	if pub == nil {
		return types.EmptyPeerID, ErrNilPublicKey
	}
	data, err := MarshalPublicKey(pub)
	if err != nil {
		return types.EmptyPeerID, err
	}

	code, digest := uint64(mhSha2_256), []byte(nil)
	if len(data) <= maxInlineKeyLength {
		code, digest = mhIdentity, data
	} else {
		sum := sha256.Sum256(data)
		digest = sum[:]
	}

	mh := varint.ToUvarint(code)
	mh = append(mh, varint.ToUvarint(uint64(len(digest)))...)
	mh = append(mh, digest...)
	return types.PeerID(mh), nil
}

// IDFromPrivateKey 从私钥派生 PeerID
func IDFromPrivateKey(priv PrivateKey) (types.PeerID, error) {
	if priv == nil {
		return types.EmptyPeerID, ErrNilPrivateKey
	}
	return IDFromPublicKey(priv.GetPublic())
}

// ExtractPublicKey 从 identity multihash 的 PeerID 中取出公钥
func ExtractPublicKey(id types.PeerID) (PublicKey, error) {
	b := id.Bytes()
	code, n, err := varint.FromUvarint(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidPeerID, err)
	}
	if code != mhIdentity {
		return nil, ErrNoPublicKeyInID
	}
	length, m, err := varint.FromUvarint(b[n:])
	if err != nil || uint64(len(b)-n-m) != length {
		return nil, types.ErrInvalidPeerID
	}
	return UnmarshalPublicKey(b[n+m:])
}

// VerifyPeerID 验证公钥是否对应给定的 PeerID
func VerifyPeerID(pub PublicKey, id types.PeerID) bool {
	derived, err := IDFromPublicKey(pub)
	return err == nil && derived == id
}

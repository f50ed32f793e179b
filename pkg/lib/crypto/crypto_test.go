package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natpunch/pkg/types"
)

// TestGenerateKeyPair_SignVerify 测试签名与验证
func TestGenerateKeyPair_SignVerify(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.Equal(t, KeyTypeEd25519, priv.Type())
	assert.True(t, pub.Equals(priv.GetPublic()))

	sig, err := priv.Sign([]byte("hello"))
	require.NoError(t, err)

	ok, err := pub.Verify([]byte("hello"), sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = pub.Verify([]byte("hellO"), sig)
	assert.False(t, ok)

	ok, _ = pub.Verify([]byte("hello"), sig[:10])
	assert.False(t, ok)
}

func TestMarshalPublicKey_RoundTrip(t *testing.T) {
	_, pub, err := GenerateKeyPair()
	require.NoError(t, err)

	data, err := MarshalPublicKey(pub)
	require.NoError(t, err)
	// 0x08 0x01 (Type=Ed25519) 0x12 0x20 (Data, 32 字节)
	assert.Equal(t, []byte{0x08, 0x01, 0x12, 0x20}, data[:4])
	assert.Len(t, data, 36)

	pub2, err := UnmarshalPublicKey(data)
	require.NoError(t, err)
	assert.True(t, pub.Equals(pub2))

	_, err = UnmarshalPublicKey([]byte{0x08})
	assert.ErrorIs(t, err, ErrUnmarshalFailed)

	_, err = UnmarshalPublicKey([]byte{0x08, 0x02, 0x12, 0x01, 0x00})
	assert.ErrorIs(t, err, ErrBadKeyType)
}

func TestMarshalPrivateKey_RoundTrip(t *testing.T) {
	priv, _, err := GenerateKeyPair()
	require.NoError(t, err)

	data, err := MarshalPrivateKey(priv)
	require.NoError(t, err)

	priv2, err := UnmarshalPrivateKey(data)
	require.NoError(t, err)
	assert.True(t, priv.Equals(priv2))
}

// TestIDFromPublicKey 测试 PeerID 派生与公钥提取
func TestIDFromPublicKey(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)

	id, err := IDFromPublicKey(pub)
	require.NoError(t, err)
	require.NoError(t, id.Validate())

	// Ed25519 identity multihash 的 Base58 表示都以 12D3KooW 开头
	assert.True(t, strings.HasPrefix(id.String(), "12D3KooW"), id.String())

	id2, err := IDFromPrivateKey(priv)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	extracted, err := ExtractPublicKey(id)
	require.NoError(t, err)
	assert.True(t, pub.Equals(extracted))
	assert.True(t, VerifyPeerID(pub, id))

	parsed, err := types.ParsePeerID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestExtractPublicKey_Sha256ID(t *testing.T) {
	mh := append([]byte{0x12, 0x20}, bytes.Repeat([]byte{9}, 32)...)
	_, err := ExtractPublicKey(types.PeerID(mh))
	assert.ErrorIs(t, err, ErrNoPublicKeyInID)
}

// TestKeyPairFromSeedByte 同一种子派生同一身份
func TestKeyPairFromSeedByte(t *testing.T) {
	a := KeyPairFromSeedByte(1)
	b := KeyPairFromSeedByte(1)
	c := KeyPairFromSeedByte(2)

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))

	idA, _ := IDFromPrivateKey(a)
	idC, _ := IDFromPrivateKey(c)
	assert.NotEqual(t, idA, idC)
}

func TestUnmarshalEd25519PrivateKey_Sizes(t *testing.T) {
	priv, _, err := GenerateKeyPair()
	require.NoError(t, err)
	raw, _ := priv.Raw()

	k, err := UnmarshalEd25519PrivateKey(raw)
	require.NoError(t, err)
	assert.True(t, priv.Equals(k))

	redundant := append(append([]byte{}, raw...), raw[32:]...)
	k, err = UnmarshalEd25519PrivateKey(redundant)
	require.NoError(t, err)
	assert.True(t, priv.Equals(k))

	redundant[len(redundant)-1] ^= 0xff
	_, err = UnmarshalEd25519PrivateKey(redundant)
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)

	_, err = UnmarshalEd25519PrivateKey([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

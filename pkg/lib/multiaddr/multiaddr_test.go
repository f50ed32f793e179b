package multiaddr

import (
	"bytes"
	"encoding/json"
	"net"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPeerID 生成一个合法的 sha256 multihash peer ID（base58）
func testPeerID(fill byte) string {
	mh := append([]byte{0x12, 0x20}, bytes.Repeat([]byte{fill}, 32)...)
	return base58.Encode(mh)
}

func TestNewMultiaddr_RoundTrip(t *testing.T) {
	pid := testPeerID(1)
	cases := []string{
		"/ip4/127.0.0.1/tcp/4001",
		"/ip6/::1/tcp/4001",
		"/ip4/1.2.3.4/udp/4001/quic-v1",
		"/dns4/relay.example.com/tcp/443",
		"/ip4/1.2.3.4/tcp/4001/p2p/" + pid,
		"/ip4/1.2.3.4/tcp/4001/p2p/" + pid + "/p2p-circuit/p2p/" + testPeerID(2),
		"/p2p-circuit",
	}

	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			m, err := NewMultiaddr(s)
			require.NoError(t, err)
			assert.Equal(t, s, m.String())

			m2, err := NewMultiaddrBytes(m.Bytes())
			require.NoError(t, err)
			assert.True(t, m.Equal(m2))
		})
	}
}

func TestNewMultiaddr_Invalid(t *testing.T) {
	cases := []string{
		"",
		"ip4/1.2.3.4",
		"/ip4/300.1.1.1/tcp/1",
		"/ip4/1.2.3.4/tcp/70000",
		"/ip4/1.2.3.4/tcp",
		"/foo/bar",
		"/p2p/not-base58-0OIl",
	}
	for _, s := range cases {
		_, err := NewMultiaddr(s)
		assert.Error(t, err, s)
	}

	_, err := NewMultiaddrBytes([]byte{0x04, 0x01})
	assert.ErrorIs(t, err, ErrInvalidMultiaddr)
}

// TestEqual_BySegments 解析到同一 socket 的不同段序列不相等
func TestEqual_BySegments(t *testing.T) {
	a := StringCast("/ip4/127.0.0.1/tcp/4001")
	b := StringCast("/ip6/::ffff:127.0.0.1/tcp/4001")
	c := StringCast("/ip4/127.0.0.1/tcp/4001/")

	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestEncapsulateDecapsulate(t *testing.T) {
	base := StringCast("/ip4/1.2.3.4/tcp/4001")
	p2p := StringCast("/p2p/" + testPeerID(3))

	full := base.Encapsulate(p2p)
	assert.Equal(t, base.String()+p2p.String(), full.String())
	assert.True(t, full.Decapsulate(p2p).Equal(base))

	// 不包含时原样返回
	other := StringCast("/udp/1")
	assert.True(t, full.Decapsulate(other).Equal(full))
}

func TestValueForProtocol(t *testing.T) {
	m := StringCast("/ip4/10.0.0.1/tcp/9000")

	v, err := m.ValueForProtocol(P_IP4)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", v)

	v, err = m.ValueForProtocol(P_TCP)
	require.NoError(t, err)
	assert.Equal(t, "9000", v)

	_, err = m.ValueForProtocol(P_UDP)
	assert.Error(t, err)
}

func TestProtocols(t *testing.T) {
	m := StringCast("/ip4/1.2.3.4/tcp/1/p2p-circuit")
	names := []string{}
	for _, p := range m.Protocols() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"ip4", "tcp", "p2p-circuit"}, names)
}

func TestTCPConversion(t *testing.T) {
	m, err := FromNetAddr(&net.TCPAddr{IP: net.ParseIP("192.168.1.5"), Port: 4001})
	require.NoError(t, err)
	assert.Equal(t, "/ip4/192.168.1.5/tcp/4001", m.String())

	addr, err := m.ToTCPAddr()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.5:4001", addr.String())

	_, err = StringCast("/dns4/example.com/tcp/1").ToTCPAddr()
	assert.ErrorIs(t, err, ErrNotIPAddr)
}

func TestJSON(t *testing.T) {
	m := StringCast("/ip4/1.2.3.4/tcp/4001")
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `"/ip4/1.2.3.4/tcp/4001"`, string(data))
}

package types

import (
	"bytes"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

func testID(fill byte) PeerID {
	return PeerID(append([]byte{0x12, 0x20}, bytes.Repeat([]byte{fill}, 32)...))
}

func TestParsePeerID(t *testing.T) {
	id := testID(1)
	parsed, err := ParsePeerID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParsePeerID("")
	assert.ErrorIs(t, err, ErrEmptyPeerID)

	_, err = ParsePeerID("0OIl")
	assert.ErrorIs(t, err, ErrInvalidPeerID)

	_, err = ParsePeerID(base58.Encode([]byte{0x12, 0x20, 0x01}))
	assert.ErrorIs(t, err, ErrInvalidPeerID)
}

func TestPeerID_Text(t *testing.T) {
	id := testID(2)
	text, err := id.MarshalText()
	require.NoError(t, err)

	var out PeerID
	require.NoError(t, out.UnmarshalText(text))
	assert.Equal(t, id, out)
	assert.Contains(t, id.ShortString(), id.String()[len(id.String())-6:])
}

func TestAddrInfoFromP2pAddr(t *testing.T) {
	id := testID(3)
	m := multiaddr.StringCast("/ip4/1.2.3.4/tcp/4001/p2p/" + id.String())

	info, err := AddrInfoFromP2pAddr(m)
	require.NoError(t, err)
	assert.Equal(t, id, info.ID)
	require.Len(t, info.Addrs, 1)
	assert.Equal(t, "/ip4/1.2.3.4/tcp/4001", info.Addrs[0].String())

	full, err := info.P2pAddrs()
	require.NoError(t, err)
	assert.True(t, full[0].Equal(m))

	_, err = AddrInfoFromString("/ip4/1.2.3.4/tcp/4001")
	assert.ErrorIs(t, err, multiaddr.ErrNoPeerID)
}

// TestAddrInfoFromP2pAddr_Circuit 电路地址的 ID 为目标节点
func TestAddrInfoFromP2pAddr_Circuit(t *testing.T) {
	relay, target := testID(4), testID(5)
	s := "/ip4/1.2.3.4/tcp/4001/p2p/" + relay.String() + "/p2p-circuit/p2p/" + target.String()

	info, err := AddrInfoFromString(s)
	require.NoError(t, err)
	assert.Equal(t, target, info.ID)
	assert.True(t, multiaddr.IsRelayAddr(info.Addrs[0]))
}

func TestHolePunchState(t *testing.T) {
	assert.True(t, StateDirectConnected.IsTerminal())
	assert.True(t, StateRelayFallback.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StatePunching.IsTerminal())

	assert.True(t, StateRelayFallback.Connected())
	assert.False(t, StateFailed.Connected())
	assert.Equal(t, "SynchronizingAttempt", StateSynchronizingAttempt.String())
	assert.Equal(t, "responder", RoleResponder.String())
}

func TestMode(t *testing.T) {
	assert.True(t, ModeDial.Valid())
	assert.True(t, ModeListen.Valid())
	assert.False(t, Mode("relay").Valid())
}

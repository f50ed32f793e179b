package holepunch_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/lib/proto"
	pb "github.com/dep2p/go-natpunch/pkg/lib/proto/holepunch"
)

func TestHolePunch_Delimited(t *testing.T) {
	addr := multiaddr.StringCast("/ip4/203.0.113.9/tcp/4001")
	var buf bytes.Buffer
	require.NoError(t, proto.WriteDelimited(&buf, &pb.HolePunch{Type: pb.Connect, ObsAddrs: [][]byte{addr.Bytes()}}))
	require.NoError(t, proto.WriteDelimited(&buf, &pb.HolePunch{Type: pb.Sync}))

	var got pb.HolePunch
	require.NoError(t, proto.ReadDelimited(&buf, 4096, &got))
	assert.Equal(t, pb.Connect, got.Type)
	require.Len(t, got.ObsAddrs, 1)
	assert.Equal(t, addr.Bytes(), got.ObsAddrs[0])

	require.NoError(t, proto.ReadDelimited(&buf, 4096, &got))
	assert.Equal(t, pb.Sync, got.Type)
	assert.Empty(t, got.ObsAddrs)
}

func TestHolePunch_MissingType(t *testing.T) {
	var m pb.HolePunch
	assert.ErrorIs(t, m.Unmarshal(nil), proto.ErrMalformed)
	assert.Equal(t, "SYNC", pb.Sync.String())
}

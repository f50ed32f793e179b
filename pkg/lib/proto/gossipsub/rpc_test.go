package gossipsub_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natpunch/pkg/lib/proto"
	pb "github.com/dep2p/go-natpunch/pkg/lib/proto/gossipsub"
)

func TestRPC_Delimited(t *testing.T) {
	in := &pb.RPC{
		Subscriptions: []*pb.SubOpts{
			{Subscribe: true, TopicID: "room1"},
			{Subscribe: false, TopicID: "room2"},
		},
		Publish: []*pb.Message{{
			From:      []byte{0x00, 0x24},
			Data:      []byte("hello"),
			Seqno:     []byte{0, 0, 0, 0, 0, 0, 0, 1},
			Topic:     "room1",
			Signature: []byte{0xde, 0xad},
		}},
		Control: &pb.ControlMessage{
			IHave: []*pb.ControlIHave{{TopicID: "room1", MessageIDs: []string{"a", "b"}}},
			IWant: []*pb.ControlIWant{{MessageIDs: []string{"c"}}},
			Graft: []*pb.ControlGraft{{TopicID: "room1"}},
			Prune: []*pb.ControlPrune{{TopicID: "room2", Backoff: 60}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, proto.WriteDelimited(&buf, in))

	var out pb.RPC
	require.NoError(t, proto.ReadDelimited(&buf, 1<<20, &out))
	assert.Equal(t, in, &out)
	assert.False(t, out.Empty())
}

func TestRPC_Empty(t *testing.T) {
	assert.True(t, (&pb.RPC{}).Empty())
	assert.True(t, (&pb.RPC{Control: &pb.ControlMessage{}}).Empty())
	assert.False(t, (&pb.RPC{Control: &pb.ControlMessage{Graft: []*pb.ControlGraft{{TopicID: "x"}}}}).Empty())
}

func TestMessage_OmitsSignatureWhenUnset(t *testing.T) {
	m := &pb.Message{Data: []byte("x"), Topic: "t"}
	unsigned, err := m.Marshal()
	require.NoError(t, err)

	m.Signature = []byte{1}
	signed, err := m.Marshal()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(signed, unsigned))
}

package gossipsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natpunch/internal/testutil"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/lib/proto"
	pb "github.com/dep2p/go-natpunch/pkg/lib/proto/gossipsub"
	"github.com/dep2p/go-natpunch/pkg/protocolids"
)

func signedMessage(t *testing.T, seed uint8, topic string, data []byte) *pb.Message {
	t.Helper()
	priv := crypto.KeyPairFromSeedByte(seed)
	id, err := crypto.IDFromPrivateKey(priv)
	require.NoError(t, err)
	m := &pb.Message{From: id.Bytes(), Data: data, Seqno: encodeSeqno(1), Topic: topic}
	require.NoError(t, signMessage(priv, m))
	return m
}

func TestSignVerify(t *testing.T) {
	m := signedMessage(t, 7, "t", []byte("payload"))
	require.NotEmpty(t, m.Signature)
	assert.Empty(t, m.Key, "ed25519 keys are inlined in the peer id")
	require.NoError(t, verifyMessage(m))

	tampered := *m
	tampered.Data = []byte("other")
	assert.ErrorIs(t, verifyMessage(&tampered), ErrInvalidSignature)

	unsigned := *m
	unsigned.Signature = nil
	assert.ErrorIs(t, verifyMessage(&unsigned), ErrInvalidSignature)

	// 签名者与 From 不一致
	other := signedMessage(t, 8, "t", []byte("payload"))
	forged := *m
	forged.From = other.From
	assert.ErrorIs(t, verifyMessage(&forged), ErrInvalidSignature)

	forged.Key, _ = crypto.MarshalPublicKey(crypto.KeyPairFromSeedByte(7).GetPublic())
	assert.ErrorIs(t, verifyMessage(&forged), ErrInvalidSignature)
}

func TestDefaultMsgID(t *testing.T) {
	a := signedMessage(t, 1, "t", []byte("same"))
	b := signedMessage(t, 2, "t", []byte("same"))
	assert.Equal(t, DefaultMsgID(a), DefaultMsgID(b), "signed ids depend on data only")
	assert.Len(t, DefaultMsgID(a), 64)

	ua := &pb.Message{From: a.From, Data: []byte("same")}
	ub := &pb.Message{From: b.From, Data: []byte("same")}
	assert.NotEqual(t, DefaultMsgID(ua), DefaultMsgID(ub), "unsigned ids include the sender")
	assert.NotEqual(t, DefaultMsgID(a), DefaultMsgID(ua))
}

func TestSeqno(t *testing.T) {
	assert.Equal(t, uint64(42), decodeSeqno(encodeSeqno(42)))
	assert.Zero(t, decodeSeqno([]byte{1, 2}))
}

func TestMessageCache_Windows(t *testing.T) {
	mc := newMessageCache(2, 3)
	mc.put("a", &pb.Message{Topic: "t"})
	mc.put("x", &pb.Message{Topic: "other"})
	mc.shift()
	mc.put("b", &pb.Message{Topic: "t"})
	mc.put("b", &pb.Message{Topic: "t"})

	assert.ElementsMatch(t, []string{"b", "a"}, mc.gossipIDs("t"))
	mc.shift()
	assert.Equal(t, []string{"b"}, mc.gossipIDs("t"), "only the last two windows are gossiped")
	_, ok := mc.get("a")
	assert.True(t, ok, "still within history")

	mc.shift()
	_, ok = mc.get("a")
	assert.False(t, ok)
	_, ok = mc.get("b")
	assert.True(t, ok)
	assert.Equal(t, 1, mc.len())
}

func TestSeenSet_TTL(t *testing.T) {
	s := newSeenSet(16, 100*time.Millisecond)
	assert.True(t, s.markSeen("t", "id"))
	assert.False(t, s.markSeen("t", "id"))
	assert.True(t, s.markSeen("other", "id"), "seen sets are per topic")
	assert.True(t, s.has("t", "id"))

	require.Eventually(t, func() bool {
		return !s.has("t", "id")
	}, 2*time.Second, 20*time.Millisecond)
	assert.True(t, s.markSeen("t", "id"))
}

func TestWantTracker(t *testing.T) {
	w, err := newWantTracker(8)
	require.NoError(t, err)
	assert.True(t, w.want("id"))
	assert.False(t, w.want("id"))
	w.forget("id")
	assert.True(t, w.want("id"))
}

// TestRouter_DropsDuplicatesAndInvalid 从不运行路由器的节点注入原始 RPC
func TestRouter_DropsDuplicatesAndInvalid(t *testing.T) {
	b := testutil.NewNode(t, 2)
	c := testutil.NewNode(t, 3)

	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 50 * time.Millisecond
	rb, err := New(b.Host, cfg)
	require.NoError(t, err)
	require.NoError(t, rb.Start())
	t.Cleanup(func() { rb.Close() })
	sub, err := rb.Subscribe("room1")
	require.NoError(t, err)

	testutil.Connect(t, c, b)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := c.Host.NewStream(ctx, b.ID, protocolids.Meshsub)
	require.NoError(t, err)
	defer s.Close()

	good := signedMessage(t, 3, "room1", []byte("hello"))
	unsigned := &pb.Message{From: c.ID.Bytes(), Data: []byte("unsigned"), Seqno: encodeSeqno(2), Topic: "room1"}
	forged := signedMessage(t, 3, "room1", []byte("forged"))
	forged.Data = []byte("tampered")
	unjoined := signedMessage(t, 3, "elsewhere", []byte("nope"))

	rpcs := []*pb.RPC{
		{Subscriptions: []*pb.SubOpts{{Subscribe: true, TopicID: "room1"}}},
		{Publish: []*pb.Message{good, unsigned}},
		{Publish: []*pb.Message{good, forged, unjoined}},
		{Publish: []*pb.Message{good}},
	}
	for _, rpc := range rpcs {
		require.NoError(t, proto.WriteDelimited(s, rpc))
	}

	msg, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultMsgID(good), msg.ID)
	assert.Equal(t, c.ID, msg.From)
	assert.Equal(t, []byte("hello"), msg.Data)

	short, cancelShort := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancelShort()
	_, err = sub.Next(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

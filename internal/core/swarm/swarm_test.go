package swarm

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natpunch/internal/core/muxer"
	"github.com/dep2p/go-natpunch/internal/core/peerstore/addrbook"
	"github.com/dep2p/go-natpunch/internal/core/security/noise"
	"github.com/dep2p/go-natpunch/internal/core/transport/tcp"
	"github.com/dep2p/go-natpunch/internal/core/upgrader"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

type testNode struct {
	swarm *Swarm
	book  *addrbook.AddrBook
	id    types.PeerID
}

func newTestSwarm(t *testing.T, seed uint8) *testNode {
	t.Helper()
	priv := crypto.KeyPairFromSeedByte(seed)
	id, err := crypto.IDFromPrivateKey(priv)
	require.NoError(t, err)

	sec, err := noise.New(priv)
	require.NoError(t, err)
	up, err := upgrader.New([]pkgif.SecureTransport{sec}, []pkgif.StreamMuxer{muxer.NewTransport(nil)})
	require.NoError(t, err)

	book := addrbook.New()
	s, err := New(id, WithAddressBook(book))
	require.NoError(t, err)
	require.NoError(t, s.AddTransport(tcp.NewTransport(up)))
	require.NoError(t, s.Listen(multiaddr.StringCast("/ip4/127.0.0.1/tcp/0")))
	t.Cleanup(func() { s.Close() })
	return &testNode{swarm: s, book: book, id: id}
}

// connectNodes 让 a 拨号 b
func connectNodes(t *testing.T, a, b *testNode) pkgif.Connection {
	t.Helper()
	a.book.AddAddrs(b.id, b.swarm.ListenAddrs(), time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := a.swarm.DialPeer(ctx, b.id)
	require.NoError(t, err)
	return c
}

func TestSwarm_DialAndListen(t *testing.T) {
	a := newTestSwarm(t, 1)
	b := newTestSwarm(t, 2)

	require.Len(t, b.swarm.ListenAddrs(), 1)
	c := connectNodes(t, a, b)
	assert.Equal(t, b.id, c.RemotePeer())
	assert.Equal(t, types.DirOutbound, c.Direction())
	assert.False(t, c.IsRelayed())
	assert.Equal(t, pkgif.Connected, a.swarm.Connectedness(b.id))

	require.Eventually(t, func() bool {
		return b.swarm.Connectedness(a.id) == pkgif.Connected
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, b.swarm.Peers(), a.id)

	// 已有连接时复用
	again, err := a.swarm.DialPeer(context.Background(), b.id)
	require.NoError(t, err)
	assert.Equal(t, c.ID(), again.ID())
}

func TestSwarm_DialErrors(t *testing.T) {
	a := newTestSwarm(t, 1)
	b := newTestSwarm(t, 2)

	_, err := a.swarm.DialPeer(context.Background(), a.id)
	assert.ErrorIs(t, err, ErrDialToSelf)

	_, err = a.swarm.DialPeer(context.Background(), b.id)
	var de *DialError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, b.id, de.Peer)
	assert.ErrorIs(t, err, ErrNoAddresses)

	_, err = a.swarm.NewStream(context.Background(), b.id)
	assert.ErrorIs(t, err, ErrNoConnection)
}

func TestSwarm_DialWrongPeer(t *testing.T) {
	a := newTestSwarm(t, 1)
	b := newTestSwarm(t, 2)
	c := newTestSwarm(t, 3)

	// 把 c 的地址登记为 b 的地址
	a.book.AddAddrs(b.id, c.swarm.ListenAddrs(), time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := a.swarm.DialPeer(ctx, b.id)
	require.Error(t, err)
	assert.Equal(t, pkgif.NotConnected, a.swarm.Connectedness(b.id))
}

func TestSwarm_NewStreamEcho(t *testing.T) {
	a := newTestSwarm(t, 1)
	b := newTestSwarm(t, 2)

	b.swarm.SetInboundStreamHandler(func(s pkgif.Stream) {
		defer s.Close()
		_, _ = io.Copy(s, s)
	})
	connectNodes(t, a, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := a.swarm.NewStream(ctx, b.id)
	require.NoError(t, err)
	assert.Equal(t, b.id, s.Conn().RemotePeer())

	_, err = s.Write([]byte("ping"))
	require.NoError(t, err)
	require.NoError(t, s.CloseWrite())
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(got))
	require.NoError(t, s.Close())
}

func TestSwarm_NotifyAndClosePeer(t *testing.T) {
	a := newTestSwarm(t, 1)
	b := newTestSwarm(t, 2)

	var connected, disconnected atomic.Int32
	nb := &pkgif.NotifyBundle{
		ConnectedF:    func(pkgif.Connection) { connected.Add(1) },
		DisconnectedF: func(pkgif.Connection) { disconnected.Add(1) },
	}
	a.swarm.Notify(nb)

	connectNodes(t, a, b)
	assert.Equal(t, int32(1), connected.Load())

	require.NoError(t, a.swarm.ClosePeer(b.id))
	assert.Equal(t, int32(1), disconnected.Load())
	assert.Equal(t, pkgif.NotConnected, a.swarm.Connectedness(b.id))
	assert.Empty(t, a.swarm.ConnsToPeer(b.id))

	// 对端感知到断开
	require.Eventually(t, func() bool {
		return b.swarm.Connectedness(a.id) == pkgif.NotConnected
	}, 5*time.Second, 10*time.Millisecond)

	a.swarm.StopNotify(nb)
	connectNodes(t, a, b)
	assert.Equal(t, int32(1), connected.Load())
}

func TestSwarm_ForceDirectDialOpensNewConn(t *testing.T) {
	a := newTestSwarm(t, 1)
	b := newTestSwarm(t, 2)

	first := connectNodes(t, a, b)

	// 直接按地址再拨一次，两条连接都保留
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	second, err := a.swarm.DialAddr(ctx, b.id, b.swarm.ListenAddrs()[0])
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())

	conns := a.swarm.ConnsToPeer(b.id)
	require.Len(t, conns, 2)
	assert.Equal(t, second.ID(), conns[0].ID(), "newest first")

	// 强制直连时，已有直连仍可复用
	forced, err := a.swarm.DialPeer(pkgif.WithForceDirectDial(ctx, "test"), b.id)
	require.NoError(t, err)
	assert.False(t, forced.IsRelayed())
}

func TestSwarm_Close(t *testing.T) {
	a := newTestSwarm(t, 1)
	b := newTestSwarm(t, 2)
	connectNodes(t, a, b)

	require.NoError(t, a.swarm.Close())
	assert.Empty(t, a.swarm.Conns())
	assert.Empty(t, a.swarm.ListenAddrs())

	_, err := a.swarm.DialPeer(context.Background(), b.id)
	assert.ErrorIs(t, err, ErrSwarmClosed)
	assert.ErrorIs(t, a.swarm.Listen(multiaddr.StringCast("/ip4/127.0.0.1/tcp/0")), ErrSwarmClosed)

	// 重复关闭无副作用
	assert.NoError(t, a.swarm.Close())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, (&Config{DialTimeout: 0, NewStreamTimeout: time.Second}).Validate())
	_, err := New("", WithConfig(DefaultConfig()))
	assert.ErrorIs(t, err, types.ErrEmptyPeerID)
}

package upgrader

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natpunch/internal/core/muxer"
	"github.com/dep2p/go-natpunch/internal/core/security/noise"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/types"
)

func newUpgrader(t *testing.T, seed uint8) (*Upgrader, types.PeerID) {
	t.Helper()
	priv := crypto.KeyPairFromSeedByte(seed)
	sec, err := noise.New(priv)
	require.NoError(t, err)
	u, err := New([]pkgif.SecureTransport{sec}, []pkgif.StreamMuxer{muxer.NewTransport(nil)})
	require.NoError(t, err)
	id, err := crypto.IDFromPrivateKey(priv)
	require.NoError(t, err)
	return u, id
}

func tcpPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			accepted <- c
		}
	}()
	c, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	s := <-accepted
	t.Cleanup(func() {
		c.Close()
		s.Close()
	})
	return c, s
}

type upgradeResult struct {
	conn pkgif.UpgradedConn
	err  error
}

func upgradeBoth(t *testing.T, ctxA, ctxB context.Context, a, b *Upgrader, dirA, dirB types.Direction, peerA, peerB types.PeerID) (upgradeResult, upgradeResult) {
	t.Helper()
	ca, cb := tcpPair(t)
	done := make(chan upgradeResult, 1)
	go func() {
		uc, err := b.Upgrade(ctxB, nil, cb, dirB, peerA)
		done <- upgradeResult{uc, err}
	}()
	uc, err := a.Upgrade(ctxA, nil, ca, dirA, peerB)
	return upgradeResult{uc, err}, <-done
}

func echo(t *testing.T, client, server pkgif.UpgradedConn) {
	t.Helper()
	go func() {
		s, err := server.AcceptStream()
		if err != nil {
			return
		}
		defer s.Close()
		_, _ = io.Copy(s, s)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := client.OpenStream(ctx)
	require.NoError(t, err)
	_, err = s.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, s.CloseWrite())
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
}

func TestUpgradeInboundOutbound(t *testing.T) {
	a, idA := newUpgrader(t, 1)
	b, idB := newUpgrader(t, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ra, rb := upgradeBoth(t, ctx, ctx, a, b, types.DirOutbound, types.DirInbound, idA, idB)
	require.NoError(t, ra.err)
	require.NoError(t, rb.err)
	defer ra.conn.Close()
	defer rb.conn.Close()

	assert.Equal(t, idB, ra.conn.RemotePeer())
	assert.Equal(t, idA, rb.conn.RemotePeer())
	assert.Equal(t, types.DirOutbound, ra.conn.Direction())
	assert.Equal(t, types.DirInbound, rb.conn.Direction())
	assert.Equal(t, types.ProtocolID("/noise"), ra.conn.Security())
	assert.Equal(t, "/yamux/1.0.0", rb.conn.Muxer())
	assert.NotNil(t, ra.conn.RemoteMultiaddr())
	assert.True(t, ra.conn.RemoteMultiaddr().Equal(rb.conn.LocalMultiaddr()))

	echo(t, ra.conn, rb.conn)
}

func TestUpgradeSimultaneousOpen(t *testing.T) {
	a, idA := newUpgrader(t, 3)
	b, idB := newUpgrader(t, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ctxA := pkgif.WithSimultaneousConnect(ctx, true, "hole-punch")
	ctxB := pkgif.WithSimultaneousConnect(ctx, false, "hole-punch")

	// 双方都认为自己是出站
	ra, rb := upgradeBoth(t, ctxA, ctxB, a, b, types.DirOutbound, types.DirOutbound, idA, idB)
	require.NoError(t, ra.err)
	require.NoError(t, rb.err)
	defer ra.conn.Close()
	defer rb.conn.Close()

	assert.Equal(t, idB, ra.conn.RemotePeer())
	assert.Equal(t, idA, rb.conn.RemotePeer())
	echo(t, rb.conn, ra.conn)
}

func TestUpgradeWrongPeer(t *testing.T) {
	a, idA := newUpgrader(t, 5)
	b, _ := newUpgrader(t, 6)
	_, other := newUpgrader(t, 7)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ra, rb := upgradeBoth(t, ctx, ctx, a, b, types.DirOutbound, types.DirInbound, idA, other)
	assert.ErrorIs(t, ra.err, noise.ErrPeerIDMismatch)
	if rb.conn != nil {
		rb.conn.Close()
	}
}

func TestUpgradeOutboundRequiresPeer(t *testing.T) {
	a, _ := newUpgrader(t, 1)
	c, _ := tcpPair(t)
	_, err := a.Upgrade(context.Background(), nil, c, types.DirOutbound, "")
	assert.ErrorIs(t, err, ErrNoPeerID)
}

func TestIsServerRole(t *testing.T) {
	ctx := context.Background()
	assert.True(t, isServerRole(ctx, types.DirInbound))
	assert.False(t, isServerRole(ctx, types.DirOutbound))
	assert.True(t, isServerRole(pkgif.WithSimultaneousConnect(ctx, false, "x"), types.DirOutbound))
	assert.False(t, isServerRole(pkgif.WithSimultaneousConnect(ctx, true, "x"), types.DirOutbound))
	// 入站连接不受标记影响
	assert.True(t, isServerRole(pkgif.WithSimultaneousConnect(ctx, true, "x"), types.DirInbound))
}

func TestNewRequiresTransports(t *testing.T) {
	_, err := New(nil, []pkgif.StreamMuxer{muxer.NewTransport(nil)})
	assert.ErrorIs(t, err, ErrNoSecurityTransport)

	sec, err := noise.New(crypto.KeyPairFromSeedByte(1))
	require.NoError(t, err)
	_, err = New([]pkgif.SecureTransport{sec}, nil)
	assert.ErrorIs(t, err, ErrNoStreamMuxer)
}

package identify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-natpunch/internal/core/protocol/system/identify"
	"github.com/dep2p/go-natpunch/internal/testutil"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

func startService(t *testing.T, n *testutil.Node, cfg *identify.Config) *identify.Service {
	t.Helper()
	svc, err := identify.NewService(n.Host, cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	t.Cleanup(func() { svc.Close() })
	return svc
}

func onlyConn(t *testing.T, n *testutil.Node, p types.PeerID) pkgif.Connection {
	t.Helper()
	conns := n.Swarm.ConnsToPeer(p)
	require.Len(t, conns, 1)
	return conns[0]
}

func TestIdentify_Exchange(t *testing.T) {
	a := testutil.NewNode(t, 1)
	b := testutil.NewNode(t, 2)
	svcA := startService(t, a, nil)
	startService(t, b, nil)

	sub := testutil.Subscribe(t, a.Bus, new(types.EvtPeerIdentified))
	testutil.Connect(t, a, b)

	conn := onlyConn(t, a, b.ID)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svcA.IdentifyWait(ctx, conn))
	assert.True(t, svcA.IsIdentified(conn))

	evt := testutil.WaitEvent(t, sub, 2*time.Second, func(e types.EvtPeerIdentified) bool {
		return e.PeerID == b.ID
	})
	assert.Equal(t, identify.DefaultProtocolVersion, evt.ProtocolVersion)
	assert.Equal(t, identify.DefaultAgentVersion, evt.AgentVersion)
	assert.Contains(t, evt.Protocols, identify.ProtocolID)

	// 对端监听地址写入地址簿
	listenB := b.Swarm.ListenAddrs()[0]
	assert.True(t, multiaddr.Contains(a.Book.Addrs(b.ID), listenB))
	assert.True(t, a.Book.SupportsProtocol(b.ID, identify.ProtocolID))

	// b 报告的观测地址就是 a 这一端的连接地址
	rec, ok := a.Book.ObservedAddrsFrom(b.ID)
	require.True(t, ok)
	assert.True(t, rec.Addr.Equal(conn.LocalMultiaddr()), "observed %s, local %s", rec.Addr, conn.LocalMultiaddr())
	assert.Equal(t, b.ID, rec.Reporter)
}

func TestIdentify_BothDirections(t *testing.T) {
	a := testutil.NewNode(t, 1)
	b := testutil.NewNode(t, 2)
	svcA := startService(t, a, nil)
	svcB := startService(t, b, nil)

	testutil.Connect(t, a, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svcA.IdentifyWait(ctx, onlyConn(t, a, b.ID)))

	require.Eventually(t, func() bool {
		return len(b.Swarm.ConnsToPeer(a.ID)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, svcB.IdentifyWait(ctx, onlyConn(t, b, a.ID)))

	_, ok := b.Book.ObservedAddrsFrom(a.ID)
	assert.True(t, ok)
}

func TestIdentify_TimeoutKeepsConnection(t *testing.T) {
	a := testutil.NewNode(t, 1)
	b := testutil.NewNode(t, 2)

	cfg := identify.DefaultConfig()
	cfg.Timeout = 300 * time.Millisecond
	svcA := startService(t, a, cfg)

	// b 接受 identify 流但从不应答，也从不发起交换
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	b.Host.SetStreamHandler(identify.ProtocolID, func(s pkgif.Stream) {
		<-release
		s.Close()
	})

	sub := testutil.Subscribe(t, a.Bus, new(types.EvtIdentifyFailed))
	testutil.Connect(t, a, b)
	conn := onlyConn(t, a, b.ID)

	err := svcA.IdentifyWait(context.Background(), conn)
	require.ErrorIs(t, err, identify.ErrTimeout)
	assert.False(t, svcA.IsIdentified(conn))
	assert.False(t, conn.IsClosed())
	assert.Equal(t, pkgif.Connected, a.Swarm.Connectedness(b.ID))

	evt := testutil.WaitEvent[types.EvtIdentifyFailed](t, sub, 2*time.Second, nil)
	assert.Equal(t, b.ID, evt.PeerID)
	assert.ErrorIs(t, evt.Reason, identify.ErrTimeout)
}

func TestIdentify_WaitCancelled(t *testing.T) {
	a := testutil.NewNode(t, 1)
	b := testutil.NewNode(t, 2)
	svcA := startService(t, a, nil)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	b.Host.SetStreamHandler(identify.ProtocolID, func(s pkgif.Stream) {
		<-release
		s.Close()
	})
	testutil.Connect(t, a, b)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := svcA.IdentifyWait(ctx, onlyConn(t, a, b.ID))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIdentify_WaitOnClosedConnection(t *testing.T) {
	a := testutil.NewNode(t, 1)
	b := testutil.NewNode(t, 2)
	svcA := startService(t, a, nil)

	testutil.Connect(t, a, b)
	conn := onlyConn(t, a, b.ID)
	require.NoError(t, conn.Close())

	err := svcA.IdentifyWait(context.Background(), conn)
	assert.Error(t, err)
}

func TestIdentify_ClosedService(t *testing.T) {
	a := testutil.NewNode(t, 1)
	svc, err := identify.NewService(a.Host, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	assert.Contains(t, a.Host.Protocols(), identify.ProtocolID)

	require.NoError(t, svc.Close())
	assert.NotContains(t, a.Host.Protocols(), identify.ProtocolID)
	assert.ErrorIs(t, svc.Start(), identify.ErrServiceClosed)
	assert.NoError(t, svc.Close())
}

func TestIdentify_Module(t *testing.T) {
	a := testutil.NewNode(t, 1)

	var svc *identify.Service
	app := fxtest.New(t,
		fx.Provide(func() pkgif.Host { return a.Host }),
		identify.Module(),
		fx.Populate(&svc),
	)
	app.RequireStart()
	require.NotNil(t, svc)
	assert.Contains(t, a.Host.Protocols(), identify.ProtocolID)
	app.RequireStop()
	assert.NotContains(t, a.Host.Protocols(), identify.ProtocolID)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, identify.DefaultConfig().Validate())

	cfg := identify.DefaultConfig()
	cfg.Timeout = 0
	assert.Error(t, cfg.Validate())

	cfg = identify.DefaultConfig()
	cfg.ProtocolVersion = ""
	assert.Error(t, cfg.Validate())

	_, err := identify.NewService(nil, nil)
	assert.Error(t, err)
}

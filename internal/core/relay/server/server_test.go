package server_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natpunch/internal/core/relay/client"
	"github.com/dep2p/go-natpunch/internal/core/relay/server"
	"github.com/dep2p/go-natpunch/internal/testutil"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/types"
)

const echoProtocol = types.ProtocolID("/test/echo/1.0.0")

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestServer_ReservationExpiry(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Unix(1_700_000_000, 0))

	relay := testutil.NewNode(t, 1)
	cfg := server.DefaultConfig()
	cfg.ReservationTTL = time.Hour
	srv := testutil.StartRelay(t, relay, cfg, server.WithClock(mock))

	a := testutil.NewNode(t, 2)
	cl := testutil.AttachRelayClient(t, a, client.DefaultConfig())
	rsv, err := cl.Reserve(testContext(t), relay.Info())
	require.NoError(t, err)
	assert.True(t, rsv.Expiry.Equal(mock.Now().Add(time.Hour)), "expiry %s", rsv.Expiry)
	assert.Equal(t, uint64(1<<17), rsv.LimitData)
	assert.Equal(t, 2*time.Minute, rsv.LimitDuration)

	assert.True(t, srv.HasReservation(a.ID))
	assert.Equal(t, 1, srv.NumReservations())

	mock.Add(time.Hour - time.Second)
	assert.True(t, srv.HasReservation(a.ID), "valid right before expiry")
	assert.True(t, rsv.Valid(mock.Now()))

	mock.Add(time.Second)
	assert.False(t, srv.HasReservation(a.ID), "rejected at expiry")
	assert.False(t, rsv.Valid(mock.Now()))

	// 过期后经中继连接 a 被拒绝
	b := testutil.NewNode(t, 3)
	testutil.AttachRelayClient(t, b, client.DefaultConfig())
	err = b.Host.Connect(testContext(t), types.AddrInfo{ID: a.ID, Addrs: rsv.Addrs})
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrNoReservation)
}

func TestServer_ReservationRateLimit(t *testing.T) {
	mock := clock.NewMock()
	relay := testutil.NewNode(t, 1)
	cfg := server.DefaultConfig()
	cfg.ReservationInterval = time.Hour
	cfg.ReservationBurst = 1
	testutil.StartRelay(t, relay, cfg, server.WithClock(mock))

	a := testutil.NewNode(t, 2)
	cl := testutil.AttachRelayClient(t, a, client.DefaultConfig())
	_, err := cl.Reserve(testContext(t), relay.Info())
	require.NoError(t, err)

	_, err = cl.Reserve(testContext(t), relay.Info())
	require.ErrorIs(t, err, client.ErrReservationDenied)
	assert.Contains(t, err.Error(), "RESOURCE_LIMIT_EXCEEDED")

	mock.Add(time.Hour)
	_, err = cl.Reserve(testContext(t), relay.Info())
	require.NoError(t, err)
}

func TestServer_MaxReservations(t *testing.T) {
	relay := testutil.NewNode(t, 1)
	cfg := server.DefaultConfig()
	cfg.MaxReservations = 1
	srv := testutil.StartRelay(t, relay, cfg)

	a := testutil.NewNode(t, 2)
	b := testutil.NewNode(t, 3)
	clA := testutil.AttachRelayClient(t, a, client.DefaultConfig())
	clB := testutil.AttachRelayClient(t, b, client.DefaultConfig())

	_, err := clA.Reserve(testContext(t), relay.Info())
	require.NoError(t, err)
	_, err = clB.Reserve(testContext(t), relay.Info())
	require.ErrorIs(t, err, client.ErrReservationDenied)
	assert.Contains(t, err.Error(), "RESERVATION_REFUSED")

	// 已有预约的节点可以续约
	_, err = clA.Reserve(testContext(t), relay.Info())
	require.NoError(t, err)
	assert.Equal(t, 1, srv.NumReservations())
}

func TestServer_Circuit(t *testing.T) {
	relay := testutil.NewNode(t, 1)
	testutil.StartRelay(t, relay, server.DefaultConfig())

	a := testutil.NewNode(t, 2)
	b := testutil.NewNode(t, 3)
	clA := testutil.AttachRelayClient(t, a, client.DefaultConfig())
	testutil.AttachRelayClient(t, b, client.DefaultConfig())

	a.Host.SetStreamHandler(echoProtocol, func(s pkgif.Stream) {
		defer s.Close()
		io.Copy(s, s)
	})
	relayed := testutil.Subscribe(t, a.Bus, new(types.EvtRelayedConnection))

	rsv, err := clA.Reserve(testContext(t), relay.Info())
	require.NoError(t, err)
	require.NotEmpty(t, rsv.Addrs)

	ctx := testContext(t)
	require.NoError(t, b.Host.Connect(ctx, types.AddrInfo{ID: a.ID, Addrs: rsv.Addrs}))
	assert.Equal(t, pkgif.Limited, b.Swarm.Connectedness(a.ID))

	evt := testutil.WaitEvent(t, relayed, 5*time.Second, func(e types.EvtRelayedConnection) bool {
		return e.PeerID == b.ID
	})
	assert.Equal(t, relay.ID, evt.Relay)

	s, err := b.Host.NewStream(ctx, a.ID, echoProtocol)
	require.NoError(t, err)
	assert.True(t, s.Conn().IsRelayed())

	msg := []byte("hello through the relay")
	_, err = s.Write(msg)
	require.NoError(t, err)
	require.NoError(t, s.CloseWrite())
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestServer_CircuitWithoutListener(t *testing.T) {
	relay := testutil.NewNode(t, 1)
	testutil.StartRelay(t, relay, server.DefaultConfig())

	a := testutil.NewNode(t, 2)
	cl, err := client.NewClient(a.Host, a.Upgrader, client.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { cl.Close() })
	cl.Start()
	rsv, err := cl.Reserve(testContext(t), relay.Info())
	require.NoError(t, err)

	b := testutil.NewNode(t, 3)
	testutil.AttachRelayClient(t, b, client.DefaultConfig())
	err = b.Host.Connect(testContext(t), types.AddrInfo{ID: a.ID, Addrs: rsv.Addrs})
	require.ErrorIs(t, err, client.ErrCircuitFailed)
	assert.Contains(t, err.Error(), "CONNECTION_FAILED")
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, server.DefaultConfig().Validate())

	cfg := server.DefaultConfig()
	cfg.ReservationTTL = 0
	assert.Error(t, cfg.Validate())

	cfg = server.DefaultConfig()
	cfg.MaxCircuits = 0
	assert.Error(t, cfg.Validate())
}

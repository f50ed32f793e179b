package ping_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-natpunch/internal/core/protocol/system/ping"
	"github.com/dep2p/go-natpunch/internal/testutil"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
)

func TestPing_RoundTrip(t *testing.T) {
	a := testutil.NewNode(t, 1)
	b := testutil.NewNode(t, 2)

	svcB := ping.NewService(b.Host, nil)
	require.NoError(t, svcB.Start())
	defer svcB.Close()

	testutil.Connect(t, a, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	svcA := ping.NewService(a.Host, nil)
	rtt, err := svcA.Ping(ctx, b.ID)
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))

	// 连续 ping 复用处理器
	_, err = ping.Ping(ctx, a.Host, b.ID)
	require.NoError(t, err)
}

func TestPing_Unsupported(t *testing.T) {
	a := testutil.NewNode(t, 1)
	b := testutil.NewNode(t, 2)
	testutil.Connect(t, a, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := ping.Ping(ctx, a.Host, b.ID)
	assert.Error(t, err)
}

func TestPing_Periodic(t *testing.T) {
	a := testutil.NewNode(t, 1)
	b := testutil.NewNode(t, 2)
	mock := clock.NewMock()

	svcA := ping.NewService(a.Host, &ping.Config{Interval: 15 * time.Second}, ping.WithClock(mock))
	require.NoError(t, svcA.Start())
	defer svcA.Close()
	svcB := ping.NewService(b.Host, nil)
	require.NoError(t, svcB.Start())
	defer svcB.Close()

	testutil.Connect(t, a, b)
	_, ok := svcA.RTT(b.ID)
	assert.False(t, ok)

	// 每次推进一个周期，直到测得 RTT
	require.Eventually(t, func() bool {
		mock.Add(15 * time.Second)
		_, ok := svcA.RTT(b.ID)
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	rtt, _ := svcA.RTT(b.ID)
	assert.Greater(t, rtt, time.Duration(0))
	_, ok = svcB.RTT(a.ID)
	assert.False(t, ok, "interval 0 must not ping")
}

func TestPing_StartStop(t *testing.T) {
	a := testutil.NewNode(t, 1)
	svc := ping.NewService(a.Host, nil)
	require.NoError(t, svc.Start())
	assert.Contains(t, a.Host.Protocols(), ping.ProtocolID)
	require.NoError(t, svc.Close())
	assert.NotContains(t, a.Host.Protocols(), ping.ProtocolID)
}

func TestPing_Module(t *testing.T) {
	a := testutil.NewNode(t, 1)
	app := fxtest.New(t,
		fx.Provide(func() pkgif.Host { return a.Host }),
		fx.Supply(&ping.Config{Interval: time.Minute}),
		ping.Module(),
	)
	app.RequireStart()
	assert.Contains(t, a.Host.Protocols(), ping.ProtocolID)
	app.RequireStop()
	assert.NotContains(t, a.Host.Protocols(), ping.ProtocolID)
}

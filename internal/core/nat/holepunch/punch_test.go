package holepunch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

type fakeConn struct {
	pkgif.Connection
	name   string
	closed atomic.Bool
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *fakeConn) IsClosed() bool { return c.closed.Load() }

func TestRace_FirstSuccessWins(t *testing.T) {
	fast := &fakeConn{name: "fast"}
	late := &fakeConn{name: "late"}
	var hangCancelled atomic.Bool

	addrs := []multiaddr.Multiaddr{
		multiaddr.StringCast("/ip4/1.1.1.1/tcp/1"),
		multiaddr.StringCast("/ip4/1.1.1.1/tcp/2"),
		multiaddr.StringCast("/ip4/1.1.1.1/tcp/3"),
	}
	dial := func(ctx context.Context, addr multiaddr.Multiaddr) (pkgif.Connection, error) {
		switch addr.String() {
		case "/ip4/1.1.1.1/tcp/1":
			time.Sleep(10 * time.Millisecond)
			return fast, nil
		case "/ip4/1.1.1.1/tcp/2":
			// 不响应取消，晚于胜出者成功
			time.Sleep(50 * time.Millisecond)
			return late, nil
		default:
			<-ctx.Done()
			hangCancelled.Store(true)
			return nil, ctx.Err()
		}
	}

	start := time.Now()
	conn, err := race(context.Background(), addrs, 5*time.Second, dial)
	require.NoError(t, err)
	assert.Same(t, fast, conn)
	assert.False(t, fast.IsClosed())
	assert.True(t, late.IsClosed())
	assert.True(t, hangCancelled.Load())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRace_AllFail(t *testing.T) {
	boom := errors.New("refused")
	addrs := []multiaddr.Multiaddr{
		multiaddr.StringCast("/ip4/1.1.1.1/tcp/1"),
		multiaddr.StringCast("/ip4/1.1.1.1/tcp/2"),
	}
	_, err := race(context.Background(), addrs, time.Second, func(context.Context, multiaddr.Multiaddr) (pkgif.Connection, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, ErrPunchFailed)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "/ip4/1.1.1.1/tcp/2")
}

func TestRace_PerDialTimeout(t *testing.T) {
	addrs := []multiaddr.Multiaddr{multiaddr.StringCast("/ip4/1.1.1.1/tcp/1")}
	_, err := race(context.Background(), addrs, 20*time.Millisecond, func(ctx context.Context, _ multiaddr.Multiaddr) (pkgif.Connection, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRace_NoCandidates(t *testing.T) {
	_, err := race(context.Background(), nil, time.Second, nil)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestDecodeAddrs_SkipsGarbage(t *testing.T) {
	good := multiaddr.StringCast("/ip4/8.8.8.8/tcp/4001")
	got := decodeAddrs([][]byte{good.Bytes(), {0xff, 0xff, 0xff}})
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(good))
}

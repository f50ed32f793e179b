package tcp

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// captureUpgrader 记录入站原始连接，不做真正升级
type captureUpgrader struct {
	inbound chan pkgif.MultiaddrConn
}

func newCaptureUpgrader() *captureUpgrader {
	return &captureUpgrader{inbound: make(chan pkgif.MultiaddrConn, 4)}
}

func (u *captureUpgrader) Upgrade(_ context.Context, _ pkgif.Transport, conn net.Conn, dir types.Direction, _ types.PeerID) (pkgif.UpgradedConn, error) {
	if dir == types.DirInbound {
		u.inbound <- conn.(pkgif.MultiaddrConn)
	}
	return nil, errors.New("capture only")
}

func listenLoopback(t *testing.T, tr *Transport) pkgif.Listener {
	t.Helper()
	l, err := tr.Listen(multiaddr.StringCast("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func tcpPort(t *testing.T, m multiaddr.Multiaddr) int {
	t.Helper()
	a, err := m.ToTCPAddr()
	require.NoError(t, err)
	return a.Port
}

func TestToNetAddr(t *testing.T) {
	tests := []struct {
		addr     string
		network  string
		hostport string
		wantErr  bool
	}{
		{"/ip4/127.0.0.1/tcp/4001", "tcp4", "127.0.0.1:4001", false},
		{"/ip6/::1/tcp/4001", "tcp6", "[::1]:4001", false},
		{"/dns4/relay.example.com/tcp/80", "tcp4", "relay.example.com:80", false},
		{"/ip4/127.0.0.1/udp/4001/quic-v1", "", "", true},
		{"/ip4/127.0.0.1", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			network, hostport, err := toNetAddr(multiaddr.StringCast(tt.addr))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedAddr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.network, network)
			assert.Equal(t, tt.hostport, hostport)
		})
	}
}

func TestTransport_CanDial(t *testing.T) {
	tr := NewTransport(newCaptureUpgrader())
	defer tr.Close()

	assert.True(t, tr.CanDial(multiaddr.StringCast("/ip4/1.2.3.4/tcp/4001")))
	assert.True(t, tr.CanDial(multiaddr.StringCast("/dns4/example.com/tcp/4001")))
	assert.False(t, tr.CanDial(multiaddr.StringCast("/ip4/1.2.3.4/udp/4001/quic-v1")))

	relay := "/ip4/1.2.3.4/tcp/4001/p2p/12D3KooWDpJ7As7BWAwRMfu1VU2WCqNjvq387JEYKDBj4kx6nXTN/p2p-circuit"
	assert.False(t, tr.CanDial(multiaddr.StringCast(relay)))

	assert.Equal(t, []int{multiaddr.P_TCP}, tr.Protocols())
	assert.False(t, tr.Proxy())
}

func TestTransport_DialUsesListenPort(t *testing.T) {
	if !reuseportAvailable {
		t.Skip("reuseport unsupported on this platform")
	}
	upA := newCaptureUpgrader()
	a := NewTransport(upA)
	defer a.Close()
	la := listenLoopback(t, a)

	b := NewTransport(newCaptureUpgrader())
	defer b.Close()
	lb := listenLoopback(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := b.DialRaw(ctx, la.Multiaddr())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, tcpPort(t, lb.Multiaddr()), tcpPort(t, c.LocalMultiaddr()))

	select {
	case in := <-upA.inbound:
		// A 观测到的 B 的端口即 B 的监听端口
		assert.Equal(t, tcpPort(t, lb.Multiaddr()), tcpPort(t, in.RemoteMultiaddr()))
	case <-time.After(5 * time.Second):
		t.Fatal("no inbound connection")
	}
}

func TestTransport_DialWithoutReuse(t *testing.T) {
	upA := newCaptureUpgrader()
	a := NewTransport(upA)
	defer a.Close()
	la := listenLoopback(t, a)

	b := NewTransport(newCaptureUpgrader(), WithReusePort(false))
	defer b.Close()
	lb := listenLoopback(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := b.DialRaw(ctx, la.Multiaddr())
	require.NoError(t, err)
	defer c.Close()

	assert.NotEqual(t, tcpPort(t, lb.Multiaddr()), tcpPort(t, c.LocalMultiaddr()))
}

func TestTransport_Closed(t *testing.T) {
	tr := NewTransport(newCaptureUpgrader())
	l := listenLoopback(t, tr)
	require.NoError(t, tr.Close())

	_, err := l.Accept()
	assert.ErrorIs(t, err, ErrListenerClosed)

	_, err = tr.DialRaw(context.Background(), l.Multiaddr())
	assert.ErrorIs(t, err, ErrTransportClosed)

	_, err = tr.Listen(multiaddr.StringCast("/ip4/127.0.0.1/tcp/0"))
	assert.ErrorIs(t, err, ErrTransportClosed)
}

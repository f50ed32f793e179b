package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natpunch/internal/core/relay/client"
	"github.com/dep2p/go-natpunch/internal/core/relay/server"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

// StartRelay 在节点上启动中继服务
func StartRelay(t testing.TB, n *Node, cfg server.Config, opts ...server.Option) *server.Server {
	t.Helper()
	srv, err := server.New(n.Host, cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Close() })
	return srv
}

// AttachRelayClient 为节点注册中继传输层并监听入站电路
func AttachRelayClient(t testing.TB, n *Node, cfg client.Config) *client.Client {
	t.Helper()
	c, err := client.NewClient(n.Host, n.Upgrader, cfg)
	require.NoError(t, err)
	require.NoError(t, n.Swarm.AddTransport(c))
	c.Start()
	require.NoError(t, n.Swarm.Listen(multiaddr.CircuitMarker))
	t.Cleanup(func() { c.Close() })
	return c
}

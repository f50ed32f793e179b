// Package testutil 提供测试辅助工具
//
// 在同一进程内用真实的 TCP + Noise + Yamux 栈搭建回环节点。
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natpunch/internal/core/eventbus"
	"github.com/dep2p/go-natpunch/internal/core/host"
	"github.com/dep2p/go-natpunch/internal/core/muxer"
	"github.com/dep2p/go-natpunch/internal/core/peerstore/addrbook"
	"github.com/dep2p/go-natpunch/internal/core/security/noise"
	"github.com/dep2p/go-natpunch/internal/core/swarm"
	"github.com/dep2p/go-natpunch/internal/core/transport/tcp"
	"github.com/dep2p/go-natpunch/internal/core/upgrader"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// LoopbackListen 回环监听地址
const LoopbackListen = "/ip4/127.0.0.1/tcp/0"

// Node 测试节点
type Node struct {
	Host     *host.Host
	Swarm    *swarm.Swarm
	Book     *addrbook.AddrBook
	Bus      *eventbus.Bus
	TCP      *tcp.Transport
	Upgrader pkgif.Upgrader
	PrivKey  crypto.PrivateKey
	ID       types.PeerID
}

// NewNode 创建并在回环地址上监听的测试节点，seed 决定身份
func NewNode(t testing.TB, seed uint8) *Node {
	t.Helper()
	priv := crypto.KeyPairFromSeedByte(seed)
	id, err := crypto.IDFromPrivateKey(priv)
	require.NoError(t, err)

	bus := eventbus.NewBus()
	book := addrbook.New()
	require.NoError(t, book.SetEventBus(bus))

	sec, err := noise.New(priv)
	require.NoError(t, err)
	up, err := upgrader.New([]pkgif.SecureTransport{sec}, []pkgif.StreamMuxer{muxer.NewTransport(nil)})
	require.NoError(t, err)
	tr := tcp.NewTransport(up)

	sw, err := swarm.New(id, swarm.WithAddressBook(book))
	require.NoError(t, err)
	require.NoError(t, sw.AddTransport(tr))

	h, err := host.New(
		host.WithSwarm(sw),
		host.WithAddressBook(book),
		host.WithEventBus(bus),
		host.WithPrivateKey(priv),
	)
	require.NoError(t, err)
	require.NoError(t, sw.Listen(multiaddr.StringCast(LoopbackListen)))

	t.Cleanup(func() {
		h.Close()
		book.Close()
		bus.Close()
	})
	return &Node{
		Host:     h,
		Swarm:    sw,
		Book:     book,
		Bus:      bus,
		TCP:      tr,
		Upgrader: up,
		PrivKey:  priv,
		ID:       id,
	}
}

// Info 返回节点的 AddrInfo
func (n *Node) Info() types.AddrInfo {
	return types.AddrInfo{ID: n.ID, Addrs: n.Swarm.ListenAddrs()}
}

// Connect 让 a 直连 b
func Connect(t testing.TB, a, b *Node) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Host.Connect(ctx, b.Info()))
}

// Subscribe 订阅事件，测试结束时取消
func Subscribe(t testing.TB, bus pkgif.EventBus, evt interface{}) pkgif.Subscription {
	t.Helper()
	sub, err := bus.Subscribe(evt, pkgif.BufSize(64))
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })
	return sub
}

// WaitEvent 等待满足条件的事件
func WaitEvent[T any](t testing.TB, sub pkgif.Subscription, timeout time.Duration, match func(T) bool) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case e, ok := <-sub.Out():
			require.True(t, ok, "subscription closed")
			if v, ok := e.(T); ok && (match == nil || match(v)) {
				return v
			}
		case <-timer.C:
			var zero T
			require.FailNowf(t, "timeout", "no %T event within %s", zero, timeout)
			return zero
		}
	}
}

package addrbook

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natpunch/internal/core/eventbus"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

func testPeer(t *testing.T, seed uint8) types.PeerID {
	t.Helper()
	id, err := crypto.IDFromPrivateKey(crypto.KeyPairFromSeedByte(seed))
	require.NoError(t, err)
	return id
}

func ma(s string) multiaddr.Multiaddr {
	return multiaddr.StringCast(s)
}

func TestAddrBook_AddAndExpire(t *testing.T) {
	clk := clock.NewMock()
	ab := New(WithClock(clk))
	p := testPeer(t, 1)

	ab.AddAddrs(p, []multiaddr.Multiaddr{ma("/ip4/1.2.3.4/tcp/4001"), ma("/ip4/5.6.7.8/tcp/4001")}, time.Minute)
	assert.Len(t, ab.Addrs(p), 2)
	assert.Equal(t, []types.PeerID{p}, ab.PeersWithAddrs())

	clk.Add(59 * time.Second)
	assert.Len(t, ab.Addrs(p), 2)

	clk.Add(time.Second)
	assert.Empty(t, ab.Addrs(p))
	assert.Empty(t, ab.PeersWithAddrs())

	ab.GC()
	ab.mu.RLock()
	assert.Empty(t, ab.addrs)
	assert.Zero(t, ab.expiringHeap.Len())
	ab.mu.RUnlock()
}

func TestAddrBook_AddExtendsOnly(t *testing.T) {
	clk := clock.NewMock()
	ab := New(WithClock(clk))
	p := testPeer(t, 1)
	a := ma("/ip4/1.2.3.4/tcp/4001")

	ab.AddAddrs(p, []multiaddr.Multiaddr{a}, time.Hour)
	// 更短的 TTL 不会缩短已有地址
	ab.AddAddrs(p, []multiaddr.Multiaddr{a}, time.Minute)

	clk.Add(30 * time.Minute)
	assert.Len(t, ab.Addrs(p), 1)
}

func TestAddrBook_SetAddrs(t *testing.T) {
	clk := clock.NewMock()
	ab := New(WithClock(clk))
	p := testPeer(t, 1)
	a := ma("/ip4/1.2.3.4/tcp/4001")

	ab.AddAddrs(p, []multiaddr.Multiaddr{a}, time.Hour)
	ab.SetAddrs(p, []multiaddr.Multiaddr{a}, time.Minute)
	clk.Add(2 * time.Minute)
	assert.Empty(t, ab.Addrs(p))

	ab.SetAddrs(p, []multiaddr.Multiaddr{a}, time.Hour)
	assert.Len(t, ab.Addrs(p), 1)
	ab.SetAddrs(p, []multiaddr.Multiaddr{a}, 0)
	assert.Empty(t, ab.Addrs(p))
}

func TestAddrBook_ClearAddrs(t *testing.T) {
	ab := New()
	p := testPeer(t, 1)
	ab.AddAddrs(p, []multiaddr.Multiaddr{ma("/ip4/1.2.3.4/tcp/4001")}, time.Hour)
	ab.ClearAddrs(p)
	assert.Empty(t, ab.Addrs(p))
	assert.Zero(t, ab.expiringHeap.Len())
}

func TestAddrBook_Protocols(t *testing.T) {
	ab := New()
	p := testPeer(t, 1)
	ab.SetProtocols(p, []types.ProtocolID{"/a", "/b"})
	assert.True(t, ab.SupportsProtocol(p, "/a"))
	assert.False(t, ab.SupportsProtocol(p, "/c"))
	assert.Equal(t, []types.ProtocolID{"/a", "/b"}, ab.Protocols(p))
}

func TestAddrBook_ObservedMonotonicPerReporter(t *testing.T) {
	clk := clock.NewMock()
	ab := New(WithClock(clk))
	r1 := testPeer(t, 1)
	r2 := testPeer(t, 2)
	t0 := clk.Now()

	require.True(t, ab.AddObservedAddr(ObservedAddrRecord{Addr: ma("/ip4/9.9.9.9/tcp/1000"), Reporter: r1, Timestamp: t0.Add(time.Second)}))
	// 更早的报告被忽略
	assert.False(t, ab.AddObservedAddr(ObservedAddrRecord{Addr: ma("/ip4/9.9.9.9/tcp/2000"), Reporter: r1, Timestamp: t0}))
	// 更新的报告覆盖
	require.True(t, ab.AddObservedAddr(ObservedAddrRecord{Addr: ma("/ip4/9.9.9.9/tcp/3000"), Reporter: r1, Timestamp: t0.Add(2 * time.Second)}))
	// 不同报告者并存
	require.True(t, ab.AddObservedAddr(ObservedAddrRecord{Addr: ma("/ip4/8.8.8.8/tcp/4000"), Reporter: r2}))

	recs := ab.ObservedAddrs()
	require.Len(t, recs, 2)
	rec, ok := ab.ObservedAddrsFrom(r1)
	require.True(t, ok)
	assert.Equal(t, "/ip4/9.9.9.9/tcp/3000", rec.Addr.String())

	assert.False(t, ab.AddObservedAddr(ObservedAddrRecord{Reporter: r1}))
	assert.False(t, ab.AddObservedAddr(ObservedAddrRecord{Addr: ma("/ip4/1.1.1.1/tcp/1")}))
}

func TestAddrBook_ObservedExpiry(t *testing.T) {
	clk := clock.NewMock()
	ab := New(WithClock(clk), WithObservedAddrTTL(time.Minute))
	r := testPeer(t, 1)

	ab.AddObservedAddr(ObservedAddrRecord{Addr: ma("/ip4/9.9.9.9/tcp/1000"), Reporter: r})
	assert.Len(t, ab.ObservedAddrs(), 1)

	clk.Add(time.Minute)
	assert.Empty(t, ab.ObservedAddrs())
	ab.GC()
	_, ok := ab.ObservedAddrsFrom(r)
	assert.False(t, ok)
}

func TestAddrBook_LocalAddrsEmitEvents(t *testing.T) {
	bus := eventbus.NewBus()
	ab := New()
	require.NoError(t, ab.SetEventBus(bus))

	sub, err := bus.Subscribe(new(types.EvtLocalAddrsUpdated), pkgif.BufSize(8))
	require.NoError(t, err)
	defer sub.Close()

	circuit := ma("/ip4/1.2.3.4/tcp/4001/p2p-circuit")
	ab.AddLocalAddr(circuit)
	ab.AddLocalAddr(circuit)
	assert.Len(t, ab.LocalAddrs(), 1)

	evt := (<-sub.Out()).(types.EvtLocalAddrsUpdated)
	assert.Len(t, evt.Current, 1)

	ab.RemoveLocalAddr(circuit)
	assert.Empty(t, ab.LocalAddrs())
	evt = (<-sub.Out()).(types.EvtLocalAddrsUpdated)
	assert.Empty(t, evt.Current)

	require.NoError(t, ab.Close())
}

func TestAddrBook_GCLoop(t *testing.T) {
	clk := clock.NewMock()
	ab := New(WithClock(clk), WithGCInterval(time.Second))
	p := testPeer(t, 1)
	ab.AddAddrs(p, []multiaddr.Multiaddr{ma("/ip4/1.2.3.4/tcp/4001")}, 500*time.Millisecond)

	ab.Start()
	defer ab.Close()

	// 给 GC 协程注册 ticker 的时间
	time.Sleep(10 * time.Millisecond)
	clk.Add(time.Second)

	assert.Eventually(t, func() bool {
		ab.mu.RLock()
		defer ab.mu.RUnlock()
		return ab.expiringHeap.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

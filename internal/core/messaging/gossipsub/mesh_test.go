package gossipsub

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natpunch/pkg/types"
)

func testPeers(n int) []types.PeerID {
	out := make([]types.PeerID, n)
	for i := range out {
		out[i] = types.PeerID(fmt.Sprintf("peer-%02d", i))
	}
	return out
}

func smallMesh() *meshState {
	cfg := DefaultConfig()
	cfg.D, cfg.Dlo, cfg.Dhi, cfg.Dlazy = 3, 2, 4, 2
	return newMeshState(cfg, 1)
}

func TestMesh_JoinGraftsUpToD(t *testing.T) {
	ms := smallMesh()
	now := time.Now()
	for _, p := range testPeers(6) {
		ms.addPeer(p)
		assert.False(t, ms.subscribe(p, "t", now), "not joined yet")
	}

	grafts := ms.join("t", now)
	assert.Len(t, grafts, 3)
	assert.ElementsMatch(t, grafts, ms.meshPeers("t"))
	assert.Nil(t, ms.join("t", now))
}

func TestMesh_SubscribeGraftsBelowDhi(t *testing.T) {
	ms := smallMesh()
	now := time.Now()
	ms.join("t", now)

	peers := testPeers(6)
	grafted := 0
	for _, p := range peers {
		ms.addPeer(p)
		if ms.subscribe(p, "t", now) {
			grafted++
		}
	}
	assert.Equal(t, 4, grafted)
	assert.Len(t, ms.meshPeers("t"), 4)
	assert.Len(t, ms.topicPeers("t"), 6)
}

func TestMesh_GraftRules(t *testing.T) {
	ms := smallMesh()
	now := time.Now()
	peers := testPeers(3)
	for _, p := range peers {
		ms.addPeer(p)
	}

	assert.False(t, ms.handleGraft(peers[0], "t", now), "topic not joined")

	ms.join("t", now)
	assert.True(t, ms.handleGraft(peers[0], "t", now))
	assert.True(t, ms.handleGraft(peers[0], "t", now), "already in mesh")

	ms.addExplicit(peers[1])
	assert.False(t, ms.handleGraft(peers[1], "t", now), "explicit peers stay outside the mesh")

	ms.prune(peers[2], "t", time.Minute, now)
	assert.False(t, ms.handleGraft(peers[2], "t", now.Add(30*time.Second)), "in backoff")
	assert.True(t, ms.handleGraft(peers[2], "t", now.Add(2*time.Minute)))
}

func TestMesh_RemovePeer(t *testing.T) {
	ms := smallMesh()
	now := time.Now()
	ms.join("t", now)
	p := testPeers(1)[0]
	ms.addPeer(p)
	require.True(t, ms.subscribe(p, "t", now))

	ms.removePeer(p)
	assert.Empty(t, ms.meshPeers("t"))
	assert.Empty(t, ms.topicPeers("t"))
	assert.True(t, ms.addPeer(p))
}

func TestMesh_MaintainKeepsBounds(t *testing.T) {
	ms := smallMesh()
	now := time.Now()
	ms.join("t", now)
	peers := testPeers(6)
	for _, p := range peers {
		ms.addPeer(p)
		ms.subscribe(p, "t", now)
		ms.joined["t"][p] = struct{}{}
	}
	require.Len(t, ms.meshPeers("t"), 6)

	mt := ms.maintain(now, time.Minute)
	assert.Len(t, ms.meshPeers("t"), 3)
	assert.Len(t, mt.prune, 3)
	assert.Empty(t, mt.graft)

	// 移除两个网格成员后低于 Dlo，其余候选都在退避中
	members := ms.meshPeers("t")
	ms.unsubscribe(members[0], "t")
	ms.unsubscribe(members[1], "t")
	mt = ms.maintain(now.Add(time.Second), time.Minute)
	assert.Empty(t, mt.graft)
	assert.Len(t, ms.meshPeers("t"), 1)

	// 退避过期后补足到 D
	mt = ms.maintain(now.Add(2*time.Minute), time.Minute)
	assert.Len(t, mt.graft, 2)
	assert.Len(t, ms.meshPeers("t"), 3)
	assert.Empty(t, ms.backoff)
}

func TestMesh_GossipTargetsExcludeMesh(t *testing.T) {
	ms := smallMesh()
	now := time.Now()
	ms.join("t", now)
	peers := testPeers(6)
	for _, p := range peers {
		ms.addPeer(p)
		ms.subscribe(p, "t", now)
	}
	ms.addExplicit(peers[5])

	mesh := make(map[types.PeerID]bool)
	for _, p := range ms.meshPeers("t") {
		mesh[p] = true
	}
	targets := ms.gossipTargets("t")
	assert.LessOrEqual(t, len(targets), 2)
	for _, p := range targets {
		assert.False(t, mesh[p])
		assert.NotEqual(t, peers[5], p)
	}
}

func TestMesh_ExplicitPeersIn(t *testing.T) {
	ms := smallMesh()
	now := time.Now()
	peers := testPeers(3)
	for _, p := range peers {
		ms.addPeer(p)
	}
	ms.subscribe(peers[0], "t", now)
	ms.addExplicit(peers[0])
	ms.addExplicit(peers[1])

	assert.Equal(t, []types.PeerID{peers[0]}, ms.explicitPeersIn("t"))
	ms.removeExplicit(peers[0])
	assert.Empty(t, ms.explicitPeersIn("t"))
}

package holepunch

import (
	"context"
	"fmt"
	"time"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/lib/proto"
	pb "github.com/dep2p/go-natpunch/pkg/lib/proto/holepunch"
	"github.com/dep2p/go-natpunch/pkg/protocolids"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// maxMessageSize 协调消息上限
const maxMessageSize = 4096

// synchronize Initiator 侧的 CONNECT/SYNC 交换
//
//	A → B: CONNECT(A 的候选)    开始计时
//	B → A: CONNECT(B 的候选)    得到 RTT
//	A → B: SYNC                 等待 RTT/2 后开始拨号
func (c *Coordinator) synchronize(ctx context.Context, conn pkgif.Connection) ([]multiaddr.Multiaddr, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.StreamTimeout)
	defer cancel()

	s, err := c.host.NewStreamOnConn(ctx, conn, protocolids.DCUtR)
	if err != nil {
		return nil, fmt.Errorf("open dcutr stream: %w", err)
	}
	defer s.Close()
	deadline, _ := ctx.Deadline()
	s.SetDeadline(deadline)

	local := c.localCandidates()
	start := time.Now()
	if err := proto.WriteDelimited(s, &pb.HolePunch{Type: pb.Connect, ObsAddrs: encodeAddrs(local)}); err != nil {
		s.Reset()
		return nil, fmt.Errorf("write CONNECT: %w", err)
	}

	var resp pb.HolePunch
	if err := proto.ReadDelimited(s, maxMessageSize, &resp); err != nil {
		s.Reset()
		return nil, fmt.Errorf("read CONNECT: %w", err)
	}
	if resp.Type != pb.Connect {
		s.Reset()
		return nil, fmt.Errorf("%w: expected CONNECT, got %s", ErrUnexpectedMessage, resp.Type)
	}
	rtt := time.Since(start)
	remote := c.filter(decodeAddrs(resp.ObsAddrs))

	if err := proto.WriteDelimited(s, &pb.HolePunch{Type: pb.Sync}); err != nil {
		s.Reset()
		return nil, fmt.Errorf("write SYNC: %w", err)
	}

	wait := rtt / 2
	if wait < c.config.MinSyncDelay {
		wait = c.config.MinSyncDelay
	}
	log.Debug("已发送 SYNC",
		"peer", conn.RemotePeer().ShortString(),
		"rtt", rtt,
		"wait", wait,
		"local", len(local),
		"remote", len(remote))

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return remote, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ============================================================================
//                              Responder
// ============================================================================

// handleStream 处理中继连接上的 DCUtR 流
func (c *Coordinator) handleStream(s pkgif.Stream) {
	conn := s.Conn()
	if !conn.IsRelayed() {
		log.Debug("忽略直连上的 DCUtR 流", "peer", conn.RemotePeer().ShortString())
		s.Reset()
		return
	}
	peer := conn.RemotePeer()
	if err := c.begin(peer); err != nil {
		log.Debug("拒绝 DCUtR 流", "peer", peer.ShortString(), "err", err)
		s.Reset()
		return
	}
	defer c.end(peer)

	a := c.newAttempt(peer, types.RoleResponder)
	a.transition(types.StateNotifiedByRelay)

	remote, err := c.respond(a, s)
	if err != nil {
		s.Reset()
		c.fallback(a, conn, err)
		return
	}
	s.Close()

	a.transition(types.StatePunching)
	direct, err := c.punch(c.ctx, peer, remote, true)
	if err != nil {
		c.fallback(a, conn, err)
		return
	}
	a.finish(types.StateDirectConnected, direct, nil)
}

// respond Responder 侧的 CONNECT/SYNC 交换
func (c *Coordinator) respond(a *attempt, s pkgif.Stream) ([]multiaddr.Multiaddr, error) {
	s.SetDeadline(time.Now().Add(c.config.StreamTimeout))

	var msg pb.HolePunch
	if err := proto.ReadDelimited(s, maxMessageSize, &msg); err != nil {
		return nil, fmt.Errorf("read CONNECT: %w", err)
	}
	if msg.Type != pb.Connect {
		return nil, fmt.Errorf("%w: expected CONNECT, got %s", ErrUnexpectedMessage, msg.Type)
	}
	remote := c.filter(decodeAddrs(msg.ObsAddrs))
	a.transition(types.StateSynchronizingAttempt)

	local := c.localCandidates()
	if err := proto.WriteDelimited(s, &pb.HolePunch{Type: pb.Connect, ObsAddrs: encodeAddrs(local)}); err != nil {
		return nil, fmt.Errorf("write CONNECT: %w", err)
	}

	if err := proto.ReadDelimited(s, maxMessageSize, &msg); err != nil {
		return nil, fmt.Errorf("read SYNC: %w", err)
	}
	if msg.Type != pb.Sync {
		return nil, fmt.Errorf("%w: expected SYNC, got %s", ErrUnexpectedMessage, msg.Type)
	}
	s.SetDeadline(time.Time{})
	return remote, nil
}

func encodeAddrs(addrs []multiaddr.Multiaddr) [][]byte {
	out := make([][]byte, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Bytes())
	}
	return out
}

// decodeAddrs 解码对端候选，跳过无法解析的条目
func decodeAddrs(raw [][]byte) []multiaddr.Multiaddr {
	out := make([]multiaddr.Multiaddr, 0, len(raw))
	for _, b := range raw {
		m, err := multiaddr.NewMultiaddrBytes(b)
		if err != nil {
			log.Debug("忽略无效候选地址", "err", err)
			continue
		}
		out = append(out, m)
	}
	return out
}

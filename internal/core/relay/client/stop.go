package client

import (
	"context"
	"fmt"
	"time"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/lib/proto"
	relaypb "github.com/dep2p/go-natpunch/pkg/lib/proto/relay"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// handleStop 处理中继发来的 STOP CONNECT
//
// 应答 STATUS 后把流升级为入站连接，交给电路监听器，
// 并发布 EvtRelayedConnection。
func (c *Client) handleStop(s pkgif.Stream) {
	relayConn := s.Conn()
	_ = s.SetDeadline(time.Now().Add(c.config.ConnectTimeout))

	var msg relaypb.StopMessage
	if err := proto.ReadDelimited(s, MaxMessageSize, &msg); err != nil {
		log.Debug("读取 STOP 消息失败", "relay", relayConn.RemotePeer().ShortString(), "error", err)
		s.Reset()
		return
	}
	if msg.Type != relaypb.StopConnect {
		c.stopStatus(s, relaypb.StatusUnexpectedMessage)
		return
	}
	if msg.Peer == nil {
		c.stopStatus(s, relaypb.StatusMalformedMessage)
		return
	}
	src, err := types.PeerIDFromBytes(msg.Peer.ID)
	if err != nil {
		c.stopStatus(s, relaypb.StatusMalformedMessage)
		return
	}

	l := c.currentListener()
	if l == nil || c.closed.Load() {
		log.Debug("没有电路监听器，拒绝入站电路", "peer", src.ShortString())
		c.stopStatus(s, relaypb.StatusConnectionFailed)
		return
	}
	if err := proto.WriteDelimited(s, &relaypb.StopMessage{Type: relaypb.StopStatus, Status: relaypb.StatusOK}); err != nil {
		s.Reset()
		return
	}

	raddr, err := relayCircuitAddr(relayConn)
	if err != nil {
		s.Reset()
		return
	}
	raw := newCircuitConn(s, multiaddr.CircuitMarker, raddr)

	ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
	defer cancel()
	uc, err := c.upgrader.Upgrade(ctx, c, raw, types.DirInbound, src)
	if err != nil {
		log.Debug("入站电路升级失败", "peer", src.ShortString(), "error", err)
		return
	}
	_ = s.SetDeadline(time.Time{})
	if uc.RemotePeer() != src {
		log.Warn("入站电路身份不符", "expected", src.ShortString(), "actual", uc.RemotePeer().ShortString())
		uc.Close()
		return
	}

	if !l.push(uc) {
		uc.Close()
		return
	}
	log.Info("入站中继连接已建立", "peer", src.ShortString(), "relay", relayConn.RemotePeer().ShortString())
	_ = c.emitRelayed.Emit(types.EvtRelayedConnection{
		BaseEvent: types.NewBaseEvent(),
		PeerID:    src,
		Relay:     relayConn.RemotePeer(),
	})
}

func (c *Client) stopStatus(s pkgif.Stream, status relaypb.Status) {
	_ = proto.WriteDelimited(s, &relaypb.StopMessage{Type: relaypb.StopStatus, Status: status})
	s.Close()
}

// relayCircuitAddr 返回 <relay addr>/p2p/<relay>/p2p-circuit
func relayCircuitAddr(relayConn pkgif.Connection) (multiaddr.Multiaddr, error) {
	base, _ := multiaddr.Split(relayConn.RemoteMultiaddr())
	addr, err := multiaddr.Join(base, relayConn.RemotePeer().Bytes())
	if err != nil {
		return nil, fmt.Errorf("relay address: %w", err)
	}
	return addr.Encapsulate(multiaddr.CircuitMarker), nil
}

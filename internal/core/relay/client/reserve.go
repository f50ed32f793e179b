package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dep2p/go-natpunch/internal/core/metrics"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/lib/proto"
	relaypb "github.com/dep2p/go-natpunch/pkg/lib/proto/relay"
	"github.com/dep2p/go-natpunch/pkg/protocolids"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// Reservation 中继预约
//
// Addrs 是可发布的电路地址，只在 Expiry 之前有效。
type Reservation struct {
	Relay  types.PeerID
	Expiry time.Time
	Addrs  []multiaddr.Multiaddr

	// LimitDuration/LimitData 中继对单条电路的限制，0 表示不限制
	LimitDuration time.Duration
	LimitData     uint64
}

// Valid 当且仅当 now 严格早于 Expiry 时预约有效
func (r *Reservation) Valid(now time.Time) bool {
	return r != nil && now.Before(r.Expiry)
}

// Reserve 向中继申请预约
//
// 连接失败返回 ErrRelayUnreachable，非 OK 状态返回 ErrReservationDenied，
// ReserveTimeout 内无响应返回 ErrTimeout。
func (c *Client) Reserve(ctx context.Context, relay types.AddrInfo) (*Reservation, error) {
	if c.closed.Load() {
		return nil, ErrTransportClosed
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.ReserveTimeout)
	defer cancel()

	rsv, err := c.reserve(ctx, relay)
	switch {
	case err == nil:
		metrics.ReservationResult("ok")
		log.Info("中继预约成功", "relay", relay.ID.ShortString(), "expiry", rsv.Expiry, "addrs", len(rsv.Addrs))
	case errors.Is(err, ErrTimeout):
		metrics.ReservationResult("timeout")
	case errors.Is(err, ErrReservationDenied):
		metrics.ReservationResult("denied")
	default:
		metrics.ReservationResult("error")
	}
	return rsv, err
}

func (c *Client) reserve(ctx context.Context, relay types.AddrInfo) (*Reservation, error) {
	if err := c.host.Connect(ctx, relay); err != nil {
		return nil, wrapTimeout(ctx, fmt.Errorf("%w: %v", ErrRelayUnreachable, err))
	}
	s, err := c.host.NewStream(ctx, relay.ID, protocolids.RelayHop)
	if err != nil {
		return nil, wrapTimeout(ctx, fmt.Errorf("%w: open hop stream: %v", ErrRelayUnreachable, err))
	}
	defer s.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(dl)
	}

	if err := proto.WriteDelimited(s, &relaypb.HopMessage{Type: relaypb.HopReserve}); err != nil {
		s.Reset()
		return nil, wrapTimeout(ctx, fmt.Errorf("write reserve: %w", err))
	}

	var resp relaypb.HopMessage
	if err := proto.ReadDelimited(s, MaxMessageSize, &resp); err != nil {
		s.Reset()
		return nil, wrapTimeout(ctx, fmt.Errorf("read reserve status: %w", err))
	}
	if resp.Type != relaypb.HopStatus {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedMessage, resp.Type)
	}
	if resp.Status != relaypb.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrReservationDenied, resp.Status)
	}
	if resp.Reservation == nil {
		return nil, fmt.Errorf("%w: status OK without reservation", ErrUnexpectedMessage)
	}

	addrs := relay.Addrs
	if len(addrs) == 0 {
		for _, b := range resp.Reservation.Addrs {
			if m, err := multiaddr.NewMultiaddrBytes(b); err == nil {
				addrs = append(addrs, m)
			}
		}
	}
	if len(addrs) == 0 {
		addrs = []multiaddr.Multiaddr{s.Conn().RemoteMultiaddr()}
	}

	rsv := &Reservation{
		Relay:  relay.ID,
		Expiry: time.Unix(int64(resp.Reservation.Expire), 0),
		Addrs:  CircuitAddrs(relay.ID, c.host.ID(), addrs),
	}
	if resp.Limit != nil {
		rsv.LimitDuration = time.Duration(resp.Limit.Duration) * time.Second
		rsv.LimitData = resp.Limit.Data
	}
	return rsv, nil
}

// CircuitAddrs 构造 <addr>/p2p/<relay>/p2p-circuit/p2p/<self>
//
// 中继地址自带的 /p2p 后缀会被去掉，已是电路地址的条目被忽略。
func CircuitAddrs(relay, self types.PeerID, relayAddrs []multiaddr.Multiaddr) []multiaddr.Multiaddr {
	relayPart, err := multiaddr.P2PAddr(relay.Bytes())
	if err != nil {
		return nil
	}
	selfPart, err := multiaddr.P2PAddr(self.Bytes())
	if err != nil {
		return nil
	}
	out := make([]multiaddr.Multiaddr, 0, len(relayAddrs))
	for _, a := range relayAddrs {
		if a == nil || multiaddr.IsRelayAddr(a) {
			continue
		}
		transport, _ := multiaddr.Split(a)
		if transport == nil {
			continue
		}
		out = append(out, transport.
			Encapsulate(relayPart).
			Encapsulate(multiaddr.CircuitMarker).
			Encapsulate(selfPart))
	}
	return multiaddr.UniqueAddrs(out)
}

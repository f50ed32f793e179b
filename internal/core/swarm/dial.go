package swarm

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// DialPeer 拨号到节点
//
// 已有连接时直接复用；WithForceDirectDial 下只复用直连，并只拨直连地址。
// 地址并发拨号，第一个成功的胜出，其余取消。
func (s *Swarm) DialPeer(ctx context.Context, p types.PeerID) (pkgif.Connection, error) {
	if s.closed.Load() {
		return nil, ErrSwarmClosed
	}
	if p == s.local {
		return nil, ErrDialToSelf
	}

	forceDirect, _ := pkgif.GetForceDirectDial(ctx)
	if c := s.bestConn(p, forceDirect); c != nil {
		return c, nil
	}

	var addrs []multiaddr.Multiaddr
	if s.addrBook != nil {
		addrs = s.addrBook.Addrs(p)
	}
	if forceDirect {
		addrs = multiaddr.FilterAddrs(addrs, func(m multiaddr.Multiaddr) bool {
			return !multiaddr.IsRelayAddr(m)
		})
	}
	if len(addrs) == 0 {
		return nil, &DialError{Peer: p, Err: ErrNoAddresses}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.DialTimeout)
	defer cancel()
	return s.dialAddrs(ctx, p, addrs)
}

type dialResult struct {
	conn pkgif.UpgradedConn
	addr multiaddr.Multiaddr
	err  error
}

// dialAddrs 并发拨号，返回第一条成功的连接
func (s *Swarm) dialAddrs(ctx context.Context, p types.PeerID, addrs []multiaddr.Multiaddr) (pkgif.Connection, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan dialResult, len(addrs))
	for _, addr := range addrs {
		go func(addr multiaddr.Multiaddr) {
			uc, err := s.dialUpgraded(ctx, p, addr)
			results <- dialResult{conn: uc, addr: addr, err: err}
		}(addr)
	}

	var (
		winner pkgif.UpgradedConn
		errs   error
	)
	for range addrs {
		r := <-results
		switch {
		case r.err != nil:
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", r.addr, r.err))
		case winner == nil:
			winner = r.conn
			cancel()
		default:
			// 胜出者之后完成的拨号直接丢弃
			r.conn.Close()
		}
	}
	if winner == nil {
		return nil, &DialError{Peer: p, Err: errs}
	}
	return s.addConn(winner)
}

// DialAddr 向指定地址建立新连接
func (s *Swarm) DialAddr(ctx context.Context, p types.PeerID, addr multiaddr.Multiaddr) (pkgif.Connection, error) {
	if s.closed.Load() {
		return nil, ErrSwarmClosed
	}
	if p == s.local {
		return nil, ErrDialToSelf
	}
	uc, err := s.dialUpgraded(ctx, p, addr)
	if err != nil {
		return nil, err
	}
	return s.addConn(uc)
}

func (s *Swarm) dialUpgraded(ctx context.Context, p types.PeerID, addr multiaddr.Multiaddr) (pkgif.UpgradedConn, error) {
	t := s.transportFor(addr)
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTransport, addr)
	}
	uc, err := t.Dial(ctx, addr, p)
	if err != nil {
		return nil, err
	}
	if uc.RemotePeer() != p {
		uc.Close()
		return nil, fmt.Errorf("%w: want %s, got %s", ErrPeerMismatch, p, uc.RemotePeer())
	}
	return uc, nil
}

package holepunch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// dialFunc 向单个候选地址拨号
type dialFunc func(ctx context.Context, addr multiaddr.Multiaddr) (pkgif.Connection, error)

type raceResult struct {
	conn pkgif.Connection
	err  error
}

// punch 同时拨号所有候选地址，并接受打洞期间对端发起的入站直连
//
// isClient 决定同时打开时的安全握手角色。整个阶段受 PunchTimeout 限制。
func (c *Coordinator) punch(ctx context.Context, peer types.PeerID, addrs []multiaddr.Multiaddr, isClient bool) (pkgif.Connection, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.PunchTimeout)
	defer cancel()

	inbound, stop := c.watch(peer)
	defer stop()
	if conn := c.directConn(peer); conn != nil {
		return conn, nil
	}

	dialCtx := pkgif.WithSimultaneousConnect(ctx, isClient, "hole-punching")
	dialCtx = pkgif.WithForceDirectDial(dialCtx, "hole-punching")
	done := make(chan raceResult, 1)
	go func() {
		conn, err := race(dialCtx, addrs, c.config.DialTimeout, func(ctx context.Context, addr multiaddr.Multiaddr) (pkgif.Connection, error) {
			return c.swarm.DialAddr(ctx, peer, addr)
		})
		done <- raceResult{conn: conn, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return r.conn, nil
		}
		// 本端拨号全部失败，对端的 SYN 可能已经被本端监听器接受
		grace := time.NewTimer(c.config.InboundGrace)
		defer grace.Stop()
		select {
		case conn := <-inbound:
			return conn, nil
		case <-grace.C:
			return nil, r.err
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrPunchTimeout, r.err)
		}

	case conn := <-inbound:
		cancel()
		go discard(done)
		return conn, nil

	case <-ctx.Done():
		go discard(done)
		return nil, ErrPunchTimeout
	}
}

// discard 关闭入站直连胜出后才完成的本端拨号
func discard(done <-chan raceResult) {
	if r := <-done; r.conn != nil {
		r.conn.Close()
	}
}

// race 并发拨号，第一个成功的连接胜出并取消其余拨号，晚到的成功连接被关闭
func race(ctx context.Context, addrs []multiaddr.Multiaddr, timeout time.Duration, dial dialFunc) (pkgif.Connection, error) {
	if len(addrs) == 0 {
		return nil, ErrNoCandidates
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu     sync.Mutex
		winner pkgif.Connection
		errs   error
		g      errgroup.Group
	)
	for _, addr := range addrs {
		addr := addr
		g.Go(func() error {
			dctx, dcancel := context.WithTimeout(ctx, timeout)
			defer dcancel()
			conn, err := dial(dctx, addr)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", addr, err))
			case winner == nil:
				winner = conn
				cancel()
			default:
				conn.Close()
			}
			return nil
		})
	}
	g.Wait()

	if winner == nil {
		return nil, fmt.Errorf("%w: %w", ErrPunchFailed, errs)
	}
	return winner, nil
}

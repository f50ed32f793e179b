package tcp

import (
	"context"
	"errors"
	"net"
	"sync"

	tec "github.com/jbenet/go-temp-err-catcher"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// ============================================================================
//                              Listener 实现
// ============================================================================

// Listener TCP 监听器
//
// 后台协程接受原始连接，每条连接在独立协程中升级，
// 升级成功的连接通过 Accept 交给 Swarm。
type Listener struct {
	t     *Transport
	nl    net.Listener
	laddr multiaddr.Multiaddr

	incoming chan pkgif.UpgradedConn

	closeOnce sync.Once
	closing   chan struct{}
	wg        sync.WaitGroup
}

var _ pkgif.Listener = (*Listener)(nil)

func newListener(t *Transport, nl net.Listener, laddr multiaddr.Multiaddr) *Listener {
	l := &Listener{
		t:        t,
		nl:       nl,
		laddr:    laddr,
		incoming: make(chan pkgif.UpgradedConn),
		closing:  make(chan struct{}),
	}
	l.wg.Add(1)
	go l.acceptLoop()
	return l
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	var catcher tec.TempErrCatcher
	for {
		c, err := l.nl.Accept()
		if err != nil {
			if catcher.IsTemporary(err) {
				continue
			}
			select {
			case <-l.closing:
			default:
				if !errors.Is(err, net.ErrClosed) {
					log.Warn("TCP accept 失败", "addr", l.laddr.String(), "err", err)
				}
			}
			return
		}
		catcher.Reset()

		raw, err := wrapConn(c)
		if err != nil {
			_ = c.Close()
			continue
		}

		go l.upgrade(raw)
	}
}

func (l *Listener) upgrade(raw *rawConn) {
	ctx, cancel := context.WithTimeout(context.Background(), l.t.upgradeTimeout)
	defer cancel()

	uc, err := l.t.upgrader.Upgrade(ctx, l.t, raw, types.DirInbound, "")
	if err != nil {
		log.Debug("入站连接升级失败", "raddr", raw.raddr.String(), "err", err)
		_ = raw.Close()
		return
	}

	select {
	case l.incoming <- uc:
	case <-l.closing:
		_ = uc.Close()
	}
}

// Accept 接受一条已升级的入站连接
func (l *Listener) Accept() (pkgif.UpgradedConn, error) {
	select {
	case c := <-l.incoming:
		return c, nil
	case <-l.closing:
		return nil, ErrListenerClosed
	}
}

// Addr 返回底层监听地址
func (l *Listener) Addr() net.Addr {
	return l.nl.Addr()
}

// Multiaddr 返回多地址格式的监听地址
func (l *Listener) Multiaddr() multiaddr.Multiaddr {
	return l.laddr
}

// Close 关闭监听器
//
// 升级中的连接在升级完成后自行关闭。
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closing)
		err = l.nl.Close()
		l.wg.Wait()
		l.t.removeListener(l)
	})
	return err
}

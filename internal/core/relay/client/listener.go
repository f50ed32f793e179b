package client

import (
	"net"
	"sync"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

// Listener 电路监听器
//
// STOP 处理器升级完成的入站电路经 Accept 交给 Swarm。
type Listener struct {
	c        *Client
	incoming chan pkgif.UpgradedConn

	closeOnce sync.Once
	closing   chan struct{}
}

var _ pkgif.Listener = (*Listener)(nil)

func newListener(c *Client) *Listener {
	return &Listener{
		c:        c,
		incoming: make(chan pkgif.UpgradedConn),
		closing:  make(chan struct{}),
	}
}

// push 交付一条入站电路，监听器关闭时返回 false
func (l *Listener) push(uc pkgif.UpgradedConn) bool {
	select {
	case l.incoming <- uc:
		return true
	case <-l.closing:
		return false
	}
}

// Accept 接受一条已升级的入站电路
func (l *Listener) Accept() (pkgif.UpgradedConn, error) {
	select {
	case uc := <-l.incoming:
		return uc, nil
	case <-l.closing:
		return nil, ErrListenerClosed
	}
}

// Addr 返回 net.Addr 形式的监听地址
func (l *Listener) Addr() net.Addr {
	return &circuitAddr{m: multiaddr.CircuitMarker}
}

// Multiaddr 返回 /p2p-circuit
func (l *Listener) Multiaddr() multiaddr.Multiaddr {
	return multiaddr.CircuitMarker
}

// Close 关闭监听器
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closing)
		l.c.removeListener(l)
	})
	return nil
}

package client

import (
	"net"

	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

// circuitConn 承载电路的中继流，作为原始连接交给 Upgrader
type circuitConn struct {
	pkgif.Stream
	laddr multiaddr.Multiaddr
	raddr multiaddr.Multiaddr
}

var _ pkgif.MultiaddrConn = (*circuitConn)(nil)

func newCircuitConn(s pkgif.Stream, laddr, raddr multiaddr.Multiaddr) *circuitConn {
	return &circuitConn{Stream: s, laddr: laddr, raddr: raddr}
}

func (c *circuitConn) LocalAddr() net.Addr  { return &circuitAddr{m: c.laddr} }
func (c *circuitConn) RemoteAddr() net.Addr { return &circuitAddr{m: c.raddr} }

func (c *circuitConn) LocalMultiaddr() multiaddr.Multiaddr  { return c.laddr }
func (c *circuitConn) RemoteMultiaddr() multiaddr.Multiaddr { return c.raddr }

// Close 关闭电路，写端关闭失败时重置流
func (c *circuitConn) Close() error {
	if err := c.Stream.Close(); err != nil {
		return multierr.Combine(err, c.Stream.Reset())
	}
	return nil
}

// circuitAddr net.Addr 形式的电路地址
type circuitAddr struct {
	m multiaddr.Multiaddr
}

func (a *circuitAddr) Network() string { return "p2p-circuit" }

func (a *circuitAddr) String() string {
	if a.m == nil {
		return "/p2p-circuit"
	}
	return a.m.String()
}

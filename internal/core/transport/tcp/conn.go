package tcp

import (
	"net"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

// rawConn 附带多地址的 TCP 原始连接，交给 Upgrader 使用
type rawConn struct {
	*net.TCPConn
	laddr multiaddr.Multiaddr
	raddr multiaddr.Multiaddr
}

var _ pkgif.MultiaddrConn = (*rawConn)(nil)

func wrapConn(c net.Conn) (*rawConn, error) {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return nil, ErrUnsupportedAddr
	}
	laddr, err := multiaddr.FromNetAddr(tc.LocalAddr())
	if err != nil {
		return nil, err
	}
	raddr, err := multiaddr.FromNetAddr(tc.RemoteAddr())
	if err != nil {
		return nil, err
	}
	_ = tc.SetNoDelay(true)
	_ = tc.SetKeepAlive(true)
	return &rawConn{TCPConn: tc, laddr: laddr, raddr: raddr}, nil
}

// LocalMultiaddr 返回本地多地址
func (c *rawConn) LocalMultiaddr() multiaddr.Multiaddr { return c.laddr }

// RemoteMultiaddr 返回远端多地址
func (c *rawConn) RemoteMultiaddr() multiaddr.Multiaddr { return c.raddr }

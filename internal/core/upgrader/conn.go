package upgrader

import (
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var _ pkgif.UpgradedConn = (*upgradedConn)(nil)

// upgradedConn 升级后的连接
type upgradedConn struct {
	pkgif.MuxedConn

	secConn pkgif.SecureConn

	security types.ProtocolID
	muxer    string

	laddr     multiaddr.Multiaddr
	raddr     multiaddr.Multiaddr
	dir       types.Direction
	transport pkgif.Transport
}

func (c *upgradedConn) LocalPeer() types.PeerID              { return c.secConn.LocalPeer() }
func (c *upgradedConn) RemotePeer() types.PeerID             { return c.secConn.RemotePeer() }
func (c *upgradedConn) RemotePublicKey() crypto.PublicKey    { return c.secConn.RemotePublicKey() }
func (c *upgradedConn) LocalMultiaddr() multiaddr.Multiaddr  { return c.laddr }
func (c *upgradedConn) RemoteMultiaddr() multiaddr.Multiaddr { return c.raddr }
func (c *upgradedConn) Direction() types.Direction           { return c.dir }
func (c *upgradedConn) Security() types.ProtocolID           { return c.security }
func (c *upgradedConn) Muxer() string                        { return c.muxer }
func (c *upgradedConn) Transport() pkgif.Transport           { return c.transport }

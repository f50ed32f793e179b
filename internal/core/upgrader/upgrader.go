package upgrader

import (
	"context"
	"fmt"
	"net"

	"github.com/dep2p/go-natpunch/internal/util/logger"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var log = logger.Logger("core/upgrader")

var _ pkgif.Upgrader = (*Upgrader)(nil)

// Upgrader 连接升级器
type Upgrader struct {
	security []pkgif.SecureTransport
	muxers   []pkgif.StreamMuxer
}

// New 创建连接升级器，security 与 muxers 按偏好顺序排列
func New(security []pkgif.SecureTransport, muxers []pkgif.StreamMuxer) (*Upgrader, error) {
	if len(security) == 0 {
		return nil, ErrNoSecurityTransport
	}
	if len(muxers) == 0 {
		return nil, ErrNoStreamMuxer
	}
	return &Upgrader{security: security, muxers: muxers}, nil
}

// isServerRole 计算本端在握手中的角色
func isServerRole(ctx context.Context, dir types.Direction) bool {
	if dir == types.DirInbound {
		return true
	}
	if simOpen, isClient, _ := pkgif.GetSimultaneousConnect(ctx); simOpen {
		return !isClient
	}
	return false
}

// Upgrade 升级连接，失败时关闭 conn
func (u *Upgrader) Upgrade(ctx context.Context, t pkgif.Transport, conn net.Conn, dir types.Direction, remotePeer types.PeerID) (pkgif.UpgradedConn, error) {
	if dir == types.DirOutbound && remotePeer == "" {
		conn.Close()
		return nil, ErrNoPeerID
	}

	laddr, raddr, err := connMultiaddrs(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	isServer := isServerRole(ctx, dir)
	log.Debug("升级连接", "direction", dir, "server", isServer, "remote", raddr, "remotePeer", remotePeer.ShortString())

	secTransport, err := u.negotiateSecurity(ctx, conn, isServer)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("security negotiation: %w", err)
	}

	var secConn pkgif.SecureConn
	if isServer {
		secConn, err = secTransport.SecureInbound(ctx, conn, remotePeer)
	} else {
		secConn, err = secTransport.SecureOutbound(ctx, conn, remotePeer)
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("security handshake: %w", err)
	}

	muxer, err := u.negotiateMuxer(ctx, secConn, isServer)
	if err != nil {
		secConn.Close()
		return nil, fmt.Errorf("muxer negotiation: %w", err)
	}

	muxed, err := muxer.NewConn(secConn, isServer)
	if err != nil {
		secConn.Close()
		return nil, fmt.Errorf("muxer setup: %w", err)
	}

	log.Debug("连接升级完成",
		"remotePeer", secConn.RemotePeer().ShortString(),
		"direction", dir,
		"security", secTransport.ID(),
		"muxer", muxer.ID())

	return &upgradedConn{
		MuxedConn: muxed,
		secConn:   secConn,
		security:  secTransport.ID(),
		muxer:     muxer.ID(),
		laddr:     laddr,
		raddr:     raddr,
		dir:       dir,
		transport: t,
	}, nil
}

// connMultiaddrs 取连接两端多地址，优先使用 MultiaddrConn 自带的地址
func connMultiaddrs(conn net.Conn) (multiaddr.Multiaddr, multiaddr.Multiaddr, error) {
	if mc, ok := conn.(pkgif.MultiaddrConn); ok {
		return mc.LocalMultiaddr(), mc.RemoteMultiaddr(), nil
	}
	laddr, err := multiaddr.FromNetAddr(conn.LocalAddr())
	if err != nil {
		return nil, nil, fmt.Errorf("local multiaddr: %w", err)
	}
	raddr, err := multiaddr.FromNetAddr(conn.RemoteAddr())
	if err != nil {
		return nil, nil, fmt.Errorf("remote multiaddr: %w", err)
	}
	return laddr, raddr, nil
}

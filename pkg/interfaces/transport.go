package interfaces

import (
	"context"
	"net"

	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// Transport 定义传输层接口
//
// Dial 与 Listener.Accept 返回已完成安全握手和多路复用协商的连接。
type Transport interface {
	// Dial 拨号连接到指定地址
	Dial(ctx context.Context, raddr multiaddr.Multiaddr, peerID types.PeerID) (UpgradedConn, error)

	// CanDial 检查是否支持拨号到指定地址
	CanDial(addr multiaddr.Multiaddr) bool

	// Listen 在指定地址监听
	Listen(laddr multiaddr.Multiaddr) (Listener, error)

	// Protocols 返回支持的协议编号
	Protocols() []int

	// Proxy 是否为代理传输（中继电路）
	Proxy() bool

	// Close 关闭传输层
	Close() error
}

// Listener 定义监听器接口
type Listener interface {
	// Accept 接受新连接
	Accept() (UpgradedConn, error)

	// Close 关闭监听器
	Close() error

	// Addr 返回底层网络地址
	Addr() net.Addr

	// Multiaddr 返回多地址格式的监听地址
	Multiaddr() multiaddr.Multiaddr
}

// MultiaddrConn 携带多地址的原始连接
//
// TCP 连接和中继电路流都以此形式交给 Upgrader，
// Upgrader 据此设置升级后连接的本地/远端地址。
type MultiaddrConn interface {
	net.Conn

	// LocalMultiaddr 返回本地多地址
	LocalMultiaddr() multiaddr.Multiaddr

	// RemoteMultiaddr 返回远端多地址
	RemoteMultiaddr() multiaddr.Multiaddr
}

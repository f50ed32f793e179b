package interfaces

import (
	"context"
	"net"

	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// SecureTransport 定义安全传输接口
type SecureTransport interface {
	// SecureInbound 保护入站连接，peerID 为空时接受任意身份
	SecureInbound(ctx context.Context, conn net.Conn, peerID types.PeerID) (SecureConn, error)

	// SecureOutbound 保护出站连接，远端身份必须与 peerID 一致
	SecureOutbound(ctx context.Context, conn net.Conn, peerID types.PeerID) (SecureConn, error)

	// ID 返回安全协议标识
	ID() types.ProtocolID
}

// SecureConn 定义安全连接接口
type SecureConn interface {
	net.Conn

	// LocalPeer 返回本地节点 ID
	LocalPeer() types.PeerID

	// RemotePeer 返回远端节点 ID
	RemotePeer() types.PeerID

	// RemotePublicKey 返回远端公钥
	RemotePublicKey() crypto.PublicKey
}

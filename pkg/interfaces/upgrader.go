package interfaces

import (
	"context"
	"net"

	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// Upgrader 连接升级器接口
//
// 将原始连接升级为安全的多路复用连接：
//  1. multistream-select 协商安全协议，完成握手并验证远端身份
//  2. multistream-select 协商多路复用协议
type Upgrader interface {
	// Upgrade 升级连接
	//
	// 参数：
	//  - conn: 原始网络连接（TCP 连接或中继电路流）
	//  - dir: 连接方向
	//  - remotePeer: 远程节点 ID（Outbound 必须提供，Inbound 可为空）
	//
	// 同时打开（见 WithSimultaneousConnect）时，出站连接的握手角色由上下文决定。
	Upgrade(ctx context.Context, t Transport, conn net.Conn, dir types.Direction, remotePeer types.PeerID) (UpgradedConn, error)
}

// UpgradedConn 升级后的连接
type UpgradedConn interface {
	MuxedConn

	// LocalPeer 返回本地节点 ID
	LocalPeer() types.PeerID

	// RemotePeer 返回远端节点 ID
	RemotePeer() types.PeerID

	// RemotePublicKey 返回远端公钥
	RemotePublicKey() crypto.PublicKey

	// LocalMultiaddr 返回本地多地址
	LocalMultiaddr() multiaddr.Multiaddr

	// RemoteMultiaddr 返回远端多地址
	RemoteMultiaddr() multiaddr.Multiaddr

	// Direction 返回连接方向
	Direction() types.Direction

	// Security 返回协商的安全协议
	Security() types.ProtocolID

	// Muxer 返回协商的多路复用协议
	Muxer() string

	// Transport 返回创建此连接的传输层
	Transport() Transport
}

package interfaces

import (
	"context"

	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// Host 定义网络主机接口
//
// Host 聚合 Swarm、地址簿和事件总线，按协议 ID 路由入站流。
type Host interface {
	// ID 返回节点 ID
	ID() types.PeerID

	// PrivateKey 返回节点私钥（用于消息签名）
	PrivateKey() crypto.PrivateKey

	// Addrs 返回可分享的地址：监听地址（展开后）+ 已发布的本地地址
	Addrs() []multiaddr.Multiaddr

	// Connect 连接到指定节点，已有连接时立即返回
	Connect(ctx context.Context, pi types.AddrInfo) error

	// NewStream 创建到指定节点的新流并协商协议
	NewStream(ctx context.Context, peerID types.PeerID, protocolIDs ...types.ProtocolID) (Stream, error)

	// NewStreamOnConn 在指定连接上创建新流并协商协议
	NewStreamOnConn(ctx context.Context, conn Connection, protocolIDs ...types.ProtocolID) (Stream, error)

	// SetStreamHandler 为指定协议设置流处理器
	SetStreamHandler(protocolID types.ProtocolID, handler StreamHandler)

	// RemoveStreamHandler 移除指定协议的流处理器
	RemoveStreamHandler(protocolID types.ProtocolID)

	// Protocols 返回已注册的协议
	Protocols() []types.ProtocolID

	// Network 返回底层 Swarm
	Network() Swarm

	// AddressBook 返回地址簿
	AddressBook() AddressBook

	// EventBus 返回事件总线
	EventBus() EventBus

	// Close 关闭主机
	Close() error
}

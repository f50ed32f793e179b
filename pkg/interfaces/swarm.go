package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// InboundStreamHandler 入站流处理函数类型
//
// 当有新的入站流时被调用，负责协议协商和路由（由 Host 设置）。
type InboundStreamHandler func(stream Stream)

// Swarm 定义连接群管理接口
//
// 同一节点可以同时持有多条连接（例如中继电路 + 打洞得到的直连），
// NewStream 优先使用直连。
type Swarm interface {
	// LocalPeer 返回本地节点 ID
	LocalPeer() types.PeerID

	// Listen 监听指定地址
	Listen(addrs ...multiaddr.Multiaddr) error

	// ListenAddrs 返回实际监听地址（端口已解析）
	ListenAddrs() []multiaddr.Multiaddr

	// Peers 返回所有已连接的节点 ID
	Peers() []types.PeerID

	// Conns 返回所有活跃连接
	Conns() []Connection

	// ConnsToPeer 返回到指定节点的所有连接，直连排在中继连接之前
	ConnsToPeer(peerID types.PeerID) []Connection

	// Connectedness 返回与指定节点的连接状态
	Connectedness(peerID types.PeerID) Connectedness

	// DialPeer 使用地址簿中的地址拨号，已有连接时直接返回
	DialPeer(ctx context.Context, peerID types.PeerID) (Connection, error)

	// DialAddr 向指定地址拨号并建立新连接，不复用已有连接
	DialAddr(ctx context.Context, peerID types.PeerID, addr multiaddr.Multiaddr) (Connection, error)

	// AddTransport 注册传输层
	AddTransport(t Transport) error

	// ClosePeer 关闭与指定节点的所有连接
	ClosePeer(peerID types.PeerID) error

	// NewStream 在到指定节点的最佳连接上打开新流
	NewStream(ctx context.Context, peerID types.PeerID) (Stream, error)

	// SetInboundStreamHandler 设置入站流处理器
	SetInboundStreamHandler(handler InboundStreamHandler)

	// Notify 注册连接事件通知
	Notify(notifier SwarmNotifier)

	// StopNotify 注销连接事件通知
	StopNotify(notifier SwarmNotifier)

	// Close 关闭 Swarm
	Close() error
}

// Connectedness 表示与节点的连接状态
type Connectedness int

const (
	// NotConnected 未连接
	NotConnected Connectedness = iota
	// Connected 已有直连
	Connected
	// Limited 只有中继连接
	Limited
)

// String 返回连接状态名称
func (c Connectedness) String() string {
	switch c {
	case Connected:
		return "connected"
	case Limited:
		return "limited"
	default:
		return "not-connected"
	}
}

// SwarmNotifier 定义 Swarm 事件通知接口
type SwarmNotifier interface {
	// Connected 当建立新连接时调用
	Connected(conn Connection)

	// Disconnected 当连接断开时调用
	Disconnected(conn Connection)
}

// NotifyBundle 用函数字段实现 SwarmNotifier
type NotifyBundle struct {
	ConnectedF    func(Connection)
	DisconnectedF func(Connection)
}

var _ SwarmNotifier = (*NotifyBundle)(nil)

// Connected 实现 SwarmNotifier
func (nb *NotifyBundle) Connected(c Connection) {
	if nb.ConnectedF != nil {
		nb.ConnectedF(c)
	}
}

// Disconnected 实现 SwarmNotifier
func (nb *NotifyBundle) Disconnected(c Connection) {
	if nb.DisconnectedF != nil {
		nb.DisconnectedF(c)
	}
}

// Connection 定义 Swarm 管理的一条已升级连接
type Connection interface {
	// ID 返回连接的本地唯一标识
	ID() string

	// LocalPeer 返回本地节点 ID
	LocalPeer() types.PeerID

	// RemotePeer 返回远端节点 ID
	RemotePeer() types.PeerID

	// RemotePublicKey 返回握手中验证过的远端公钥
	RemotePublicKey() crypto.PublicKey

	// LocalMultiaddr 返回本地多地址
	LocalMultiaddr() multiaddr.Multiaddr

	// RemoteMultiaddr 返回远端多地址（中继连接为电路地址）
	RemoteMultiaddr() multiaddr.Multiaddr

	// Direction 返回连接方向
	Direction() types.Direction

	// IsRelayed 是否为中继电路连接
	IsRelayed() bool

	// Opened 返回连接建立时间
	Opened() time.Time

	// NewStream 在此连接上打开新流
	NewStream(ctx context.Context) (Stream, error)

	// GetStreams 返回此连接上的活跃流
	GetStreams() []Stream

	// Close 关闭连接
	Close() error

	// IsClosed 连接是否已关闭
	IsClosed() bool
}

// Stream 定义连接上的一条双向流
type Stream interface {
	io.Reader
	io.Writer
	io.Closer

	// CloseWrite 关闭写端，对端读到 EOF
	CloseWrite() error

	// CloseRead 关闭读端
	CloseRead() error

	// Reset 异常终止流
	Reset() error

	// SetDeadline 设置读写超时
	SetDeadline(t time.Time) error

	// SetReadDeadline 设置读超时
	SetReadDeadline(t time.Time) error

	// SetWriteDeadline 设置写超时
	SetWriteDeadline(t time.Time) error

	// Protocol 返回协商得到的协议 ID
	Protocol() types.ProtocolID

	// SetProtocol 设置协议 ID（协商完成后由 Host 调用）
	SetProtocol(id types.ProtocolID)

	// Conn 返回所属连接
	Conn() Connection
}

// StreamHandler 协议流处理函数
type StreamHandler func(stream Stream)

package interfaces

import (
	"time"

	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// 地址 TTL 常量
const (
	// TempAddrTTL 临时地址（如 DCUtR 交换得到的候选地址）
	TempAddrTTL = 2 * time.Minute

	// RecentlyConnectedAddrTTL 最近连接过的节点地址
	RecentlyConnectedAddrTTL = 15 * time.Minute

	// ConnectedAddrTTL 当前已连接节点的地址
	ConnectedAddrTTL = 24 * time.Hour

	// PermanentAddrTTL 手动配置的地址（如中继地址）
	PermanentAddrTTL = 100 * 365 * 24 * time.Hour
)

// AddressBook 地址簿接口
//
// 保存远端节点的已知地址，以及本节点自身的地址：
//   - 本地地址：中继预约分配的电路地址等
//   - 观测地址：对端在地址学习交换中报告的外部地址
type AddressBook interface {
	// AddAddrs 添加节点地址，已有地址只延长 TTL
	AddAddrs(peerID types.PeerID, addrs []multiaddr.Multiaddr, ttl time.Duration)

	// SetAddrs 覆盖节点地址的 TTL，ttl<=0 表示删除
	SetAddrs(peerID types.PeerID, addrs []multiaddr.Multiaddr, ttl time.Duration)

	// Addrs 返回节点的未过期地址
	Addrs(peerID types.PeerID) []multiaddr.Multiaddr

	// ClearAddrs 清除节点的全部地址
	ClearAddrs(peerID types.PeerID)

	// PeersWithAddrs 返回有地址记录的节点
	PeersWithAddrs() []types.PeerID

	// SetProtocols 记录节点支持的协议
	SetProtocols(peerID types.PeerID, protos []types.ProtocolID)

	// Protocols 返回节点支持的协议
	Protocols(peerID types.PeerID) []types.ProtocolID

	// SupportsProtocol 节点是否声明支持指定协议
	SupportsProtocol(peerID types.PeerID, proto types.ProtocolID) bool

	// AddObservedAddr 添加观测地址记录
	//
	// 同一 Reporter 的记录按时间戳单调：比现有记录旧的记录被忽略并返回 false。
	AddObservedAddr(rec types.ObservedAddrRecord) bool

	// ObservedAddrs 返回未过期的观测地址记录（每个 Reporter 至多一条）
	ObservedAddrs() []types.ObservedAddrRecord

	// AddLocalAddr 发布本地地址（如中继电路地址）
	AddLocalAddr(addr multiaddr.Multiaddr)

	// RemoveLocalAddr 撤销本地地址
	RemoveLocalAddr(addr multiaddr.Multiaddr)

	// LocalAddrs 返回已发布的本地地址
	LocalAddrs() []multiaddr.Multiaddr
}

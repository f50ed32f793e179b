package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

// AddrInfo 节点 ID 与其地址
type AddrInfo struct {
	ID    PeerID
	Addrs []multiaddr.Multiaddr
}

// String 返回可读表示
func (ai AddrInfo) String() string {
	addrs := make([]string, len(ai.Addrs))
	for i, a := range ai.Addrs {
		addrs[i] = a.String()
	}
	return fmt.Sprintf("{%s: [%s]}", ai.ID, strings.Join(addrs, " "))
}

// P2pAddrs 返回带 /p2p/<id> 后缀的完整地址
func (ai AddrInfo) P2pAddrs() ([]multiaddr.Multiaddr, error) {
	out := make([]multiaddr.Multiaddr, 0, len(ai.Addrs))
	for _, a := range ai.Addrs {
		full, err := multiaddr.Join(a, ai.ID.Bytes())
		if err != nil {
			return nil, err
		}
		out = append(out, full)
	}
	return out, nil
}

// AddrInfoFromP2pAddr 从 <transport>/p2p/<id> 解析 AddrInfo
//
// 中继电路地址 <relay>/p2p-circuit/p2p/<target> 的 ID 为 target，
// 地址保留 <relay>/p2p-circuit 部分。
func AddrInfoFromP2pAddr(m multiaddr.Multiaddr) (*AddrInfo, error) {
	transport, raw := multiaddr.Split(m)
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", multiaddr.ErrNoPeerID, m)
	}
	id, err := PeerIDFromBytes(raw)
	if err != nil {
		return nil, err
	}
	info := &AddrInfo{ID: id}
	if transport != nil {
		info.Addrs = []multiaddr.Multiaddr{transport}
	}
	return info, nil
}

// AddrInfoFromString 从字符串解析 AddrInfo
func AddrInfoFromString(s string) (*AddrInfo, error) {
	m, err := multiaddr.NewMultiaddr(s)
	if err != nil {
		return nil, err
	}
	return AddrInfoFromP2pAddr(m)
}

// ObservedAddrRecord 一条外部观测地址记录
//
// 由对端在地址学习交换中报告：Reporter 看到本节点使用 Addr 连接它。
// 同一 Reporter 只保留时间戳最新的一条，不同 Reporter 的记录可以并存，
// 作为打洞候选地址使用。观测地址只用于连通性尝试，不用于授权。
type ObservedAddrRecord struct {
	Addr      multiaddr.Multiaddr
	Reporter  PeerID
	Timestamp time.Time
}

// String 返回可读表示
func (r ObservedAddrRecord) String() string {
	addr := "<nil>"
	if r.Addr != nil {
		addr = r.Addr.String()
	}
	return fmt.Sprintf("%s (by %s at %s)", addr, r.Reporter.ShortString(), r.Timestamp.Format(time.RFC3339Nano))
}

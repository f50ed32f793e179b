package holepunch

import (
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

// localCandidates 本地候选：观测地址在前，监听地址在后
func (c *Coordinator) localCandidates() []multiaddr.Multiaddr {
	if c.candidates != nil {
		return c.filter(c.candidates())
	}
	var addrs []multiaddr.Multiaddr
	for _, rec := range c.book.ObservedAddrs() {
		addrs = append(addrs, rec.Addr)
	}
	addrs = append(addrs, c.host.Addrs()...)
	return c.filter(addrs)
}

func (c *Coordinator) filter(addrs []multiaddr.Multiaddr) []multiaddr.Multiaddr {
	return FilterCandidates(addrs, c.config.AllowPrivateAddrs, c.config.MaxAddresses)
}

// FilterCandidates 过滤打洞候选地址
//
// 只保留可直连的 TCP 地址：去掉电路地址、未指定地址和 /p2p 后缀；
// 默认只保留公网地址，allowPrivate 时也保留私网与回环地址。结果去重并截断到 max。
func FilterCandidates(addrs []multiaddr.Multiaddr, allowPrivate bool, max int) []multiaddr.Multiaddr {
	out := make([]multiaddr.Multiaddr, 0, len(addrs))
	for _, a := range addrs {
		if a == nil || multiaddr.IsRelayAddr(a) {
			continue
		}
		a, _ = multiaddr.Split(a)
		if a == nil || !multiaddr.IsTCPMultiaddr(a) || multiaddr.IsUnspecified(a) {
			continue
		}
		if !multiaddr.IsPublic(a) {
			if !allowPrivate || !(multiaddr.IsPrivate(a) || multiaddr.IsLoopback(a)) {
				continue
			}
		}
		out = append(out, a)
	}
	out = multiaddr.UniqueAddrs(out)
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

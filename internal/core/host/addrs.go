package host

import (
	"net"

	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

// Addrs 返回可分享的地址
//
// 监听地址中的通配 IP 展开为本机各网卡地址，中继监听标记不计入；
// 再合并地址簿中已发布的本地地址（观测地址、中继电路地址）。
func (h *Host) Addrs() []multiaddr.Multiaddr {
	var out []multiaddr.Multiaddr
	for _, la := range h.swarm.ListenAddrs() {
		if multiaddr.IsRelayAddr(la) {
			continue
		}
		if multiaddr.IsUnspecified(la) {
			out = append(out, expandUnspecified(la, interfaceIPs)...)
			continue
		}
		out = append(out, la)
	}
	if h.addrBook != nil {
		out = append(out, h.addrBook.LocalAddrs()...)
	}
	return h.config.AddrsFactory(multiaddr.UniqueAddrs(out))
}

// expandUnspecified 把 0.0.0.0 / :: 上的 TCP 监听地址展开为具体地址
func expandUnspecified(la multiaddr.Multiaddr, ips func() []net.IP) []multiaddr.Multiaddr {
	tcpAddr, err := la.ToTCPAddr()
	if err != nil {
		return nil
	}
	wantV4 := tcpAddr.IP.To4() != nil

	var out []multiaddr.Multiaddr
	for _, ip := range ips() {
		if (ip.To4() != nil) != wantV4 || ip.IsLinkLocalUnicast() {
			continue
		}
		m, err := multiaddr.FromTCPAddr(&net.TCPAddr{IP: ip, Port: tcpAddr.Port})
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

func interfaceIPs() []net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		log.Debug("读取网卡地址失败", "error", err)
		return nil
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok {
			ips = append(ips, ipnet.IP)
		}
	}
	return ips
}

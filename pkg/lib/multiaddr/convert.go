package multiaddr

import (
	"fmt"
	"net"
	"strconv"
)

// ToTCPAddr 将多地址转换为 *net.TCPAddr
func (m *multiaddr) ToTCPAddr() (*net.TCPAddr, error) {
	ip, err := ToIP(m)
	if err != nil {
		return nil, err
	}
	portStr, err := m.ValueForProtocol(P_TCP)
	if err != nil {
		return nil, fmt.Errorf("no TCP port in multiaddr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port: %s", portStr)
	}
	return &net.TCPAddr{IP: ip, Port: port}, nil
}

// ToIP 提取第一个 IP 段
func ToIP(m Multiaddr) (net.IP, error) {
	var ip net.IP
	ForEach(m, func(c Component) bool {
		switch c.protocol.Code {
		case P_IP4, P_IP6:
			ip = net.IP(append([]byte(nil), c.value...))
			return false
		}
		return true
	})
	if ip == nil {
		return nil, ErrNotIPAddr
	}
	return ip, nil
}

// FromTCPAddr 从 *net.TCPAddr 创建多地址
func FromTCPAddr(addr *net.TCPAddr) (Multiaddr, error) {
	if addr == nil {
		return nil, fmt.Errorf("nil TCP address")
	}
	if ip4 := addr.IP.To4(); ip4 != nil {
		return NewMultiaddr(fmt.Sprintf("/ip4/%s/tcp/%d", ip4, addr.Port))
	}
	return NewMultiaddr(fmt.Sprintf("/ip6/%s/tcp/%d", addr.IP, addr.Port))
}

// FromNetAddr 从 net.Addr 创建多地址
func FromNetAddr(addr net.Addr) (Multiaddr, error) {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return FromTCPAddr(a)
	case nil:
		return nil, fmt.Errorf("nil address")
	default:
		return nil, fmt.Errorf("unsupported address type: %T", addr)
	}
}

// IsLoopback 判断是否为回环地址
func IsLoopback(m Multiaddr) bool {
	ip, err := ToIP(m)
	return err == nil && ip.IsLoopback()
}

// IsPrivate 判断是否为私网地址
func IsPrivate(m Multiaddr) bool {
	ip, err := ToIP(m)
	return err == nil && (ip.IsPrivate() || ip.IsLinkLocalUnicast())
}

// IsPublic 判断是否为公网可路由地址
//
// DNS 地址视为公网地址。
func IsPublic(m Multiaddr) bool {
	if HasProtocol(m, P_DNS) || HasProtocol(m, P_DNS4) || HasProtocol(m, P_DNS6) {
		return true
	}
	ip, err := ToIP(m)
	if err != nil {
		return false
	}
	return ip.IsGlobalUnicast() && !ip.IsPrivate()
}

// IsUnspecified 判断是否为 0.0.0.0 / ::
func IsUnspecified(m Multiaddr) bool {
	ip, err := ToIP(m)
	return err == nil && ip.IsUnspecified()
}

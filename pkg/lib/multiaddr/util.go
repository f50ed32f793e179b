package multiaddr

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Component 表示多地址中的一个协议段
type Component struct {
	protocol Protocol
	value    []byte
}

// Protocol 返回组件的协议
func (c Component) Protocol() Protocol {
	return c.protocol
}

// RawValue 返回组件的原始值字节
func (c Component) RawValue() []byte {
	return c.value
}

// Value 返回组件的字符串值
func (c Component) Value() string {
	if c.protocol.Transcoder == nil {
		return ""
	}
	s, _ := c.protocol.Transcoder.BytesToString(c.value)
	return s
}

// ForEach 遍历多地址中的每个组件，回调返回 false 时停止
func ForEach(m Multiaddr, fn func(Component) bool) {
	if m == nil {
		return
	}
	comps, err := readComponents(m.Bytes())
	if err != nil {
		return
	}
	for _, c := range comps {
		if !fn(Component{protocol: c.proto, value: c.value}) {
			return
		}
	}
}

// Split 分离最后一个 /p2p 组件
//
//	/ip4/1.2.3.4/tcp/4001/p2p/QmA               -> /ip4/1.2.3.4/tcp/4001, QmA
//	/ip4/.../p2p/QmR/p2p-circuit/p2p/QmB        -> /ip4/.../p2p/QmR/p2p-circuit, QmB
//
// 只有当 /p2p 是最后一段时才拆分。返回的 peer ID 为原始 multihash 字节。
func Split(m Multiaddr) (transport Multiaddr, peerID []byte) {
	if m == nil {
		return nil, nil
	}
	comps, err := readComponents(m.Bytes())
	if err != nil || len(comps) == 0 {
		return m, nil
	}
	last := comps[len(comps)-1]
	if last.proto.Code != P_P2P {
		return m, nil
	}
	rest := len(m.Bytes()) - len(last.raw)
	if rest == 0 {
		return nil, last.value
	}
	return &multiaddr{bytes: m.Bytes()[:rest:rest]}, last.value
}

// Join 在传输地址后追加 /p2p/<id>
func Join(transport Multiaddr, peerID []byte) (Multiaddr, error) {
	p2p, err := P2PAddr(peerID)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return p2p, nil
	}
	return transport.Encapsulate(p2p), nil
}

// P2PAddr 构造 /p2p/<id> 地址
func P2PAddr(peerID []byte) (Multiaddr, error) {
	if err := ValidatePeerIDBytes(peerID); err != nil {
		return nil, err
	}
	return NewMultiaddr("/p2p/" + base58.Encode(peerID))
}

// GetPeerID 提取最后一个 /p2p 组件的 peer ID 字节
func GetPeerID(m Multiaddr) ([]byte, error) {
	_, id := Split(m)
	if id == nil {
		return nil, ErrNoPeerID
	}
	return id, nil
}

// CircuitMarker /p2p-circuit，在协议表注册后于 init 中设置
var CircuitMarker Multiaddr

// IsRelayAddr 判断是否为中继电路地址
func IsRelayAddr(m Multiaddr) bool {
	return HasProtocol(m, P_P2P_CIRCUIT)
}

// SplitCircuit 拆分中继地址
//
//	/ip4/1.2.3.4/tcp/4001/p2p/QmR/p2p-circuit/p2p/QmB
//	-> relay=/ip4/1.2.3.4/tcp/4001/p2p/QmR, target=QmB（可能为空）
func SplitCircuit(m Multiaddr) (relay Multiaddr, target []byte, err error) {
	if !IsRelayAddr(m) {
		return nil, nil, fmt.Errorf("%w: not a circuit address: %s", ErrInvalidMultiaddr, m)
	}
	rest, target := Split(m)
	relay = rest.Decapsulate(CircuitMarker)
	if relay == nil {
		return nil, nil, fmt.Errorf("%w: circuit address without relay: %s", ErrInvalidMultiaddr, m)
	}
	return relay, target, nil
}

// FilterAddrs 过滤多地址列表
func FilterAddrs(addrs []Multiaddr, filter func(Multiaddr) bool) []Multiaddr {
	result := make([]Multiaddr, 0, len(addrs))
	for _, addr := range addrs {
		if filter(addr) {
			result = append(result, addr)
		}
	}
	return result
}

// UniqueAddrs 去重多地址列表（保持顺序）
func UniqueAddrs(addrs []Multiaddr) []Multiaddr {
	seen := make(map[string]struct{}, len(addrs))
	result := make([]Multiaddr, 0, len(addrs))
	for _, addr := range addrs {
		if addr == nil {
			continue
		}
		k := string(addr.Bytes())
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, addr)
	}
	return result
}

// Contains 判断列表是否包含指定地址
func Contains(addrs []Multiaddr, m Multiaddr) bool {
	for _, a := range addrs {
		if a.Equal(m) {
			return true
		}
	}
	return false
}

// HasProtocol 检查多地址是否包含指定协议
func HasProtocol(m Multiaddr, code int) bool {
	found := false
	ForEach(m, func(c Component) bool {
		if c.protocol.Code == code {
			found = true
			return false
		}
		return true
	})
	return found
}

// IsTCPMultiaddr 检查是否为直连 TCP 多地址（不含中继段）
func IsTCPMultiaddr(m Multiaddr) bool {
	return HasProtocol(m, P_TCP) && !IsRelayAddr(m)
}

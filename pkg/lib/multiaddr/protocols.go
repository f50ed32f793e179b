package multiaddr

import "github.com/multiformats/go-varint"

// Protocol 描述一个 multiaddr 协议
type Protocol struct {
	// Name 协议名称（如 "ip4", "tcp"）
	Name string

	// Code 协议代码（multicodec）
	Code int

	// VCode 预计算的 varint 编码
	VCode []byte

	// Size 协议数据大小（位），0 表示无数据，-1 表示变长
	Size int

	// Transcoder 编解码器
	Transcoder Transcoder
}

// String 返回协议名称
func (p Protocol) String() string {
	return p.Name
}

// LengthPrefixedVarSize 表示变长数据（使用 varint 前缀）
const LengthPrefixedVarSize = -1

// 协议代码常量（与 multiformats/multicodec 对齐）
const (
	P_IP4         = 0x0004
	P_TCP         = 0x0006
	P_UDP         = 0x0111
	P_IP6         = 0x0029
	P_DNS         = 0x0035
	P_DNS4        = 0x0036
	P_DNS6        = 0x0037
	P_P2P_CIRCUIT = 0x0122
	P_P2P         = 0x01A5
	P_QUIC_V1     = 0x01CD
)

var protocols = map[int]Protocol{}
var protocolsByName = map[string]Protocol{}

func register(p Protocol, aliases ...string) {
	p.VCode = varint.ToUvarint(uint64(p.Code))
	protocols[p.Code] = p
	protocolsByName[p.Name] = p
	for _, a := range aliases {
		protocolsByName[a] = p
	}
}

func init() {
	register(Protocol{Name: "ip4", Code: P_IP4, Size: 32, Transcoder: TranscoderIP4})
	register(Protocol{Name: "ip6", Code: P_IP6, Size: 128, Transcoder: TranscoderIP6})
	register(Protocol{Name: "tcp", Code: P_TCP, Size: 16, Transcoder: TranscoderPort})
	register(Protocol{Name: "udp", Code: P_UDP, Size: 16, Transcoder: TranscoderPort})
	register(Protocol{Name: "dns", Code: P_DNS, Size: LengthPrefixedVarSize, Transcoder: TranscoderDNS})
	register(Protocol{Name: "dns4", Code: P_DNS4, Size: LengthPrefixedVarSize, Transcoder: TranscoderDNS})
	register(Protocol{Name: "dns6", Code: P_DNS6, Size: LengthPrefixedVarSize, Transcoder: TranscoderDNS})
	register(Protocol{Name: "quic-v1", Code: P_QUIC_V1})
	register(Protocol{Name: "p2p", Code: P_P2P, Size: LengthPrefixedVarSize, Transcoder: TranscoderP2P}, "ipfs")
	register(Protocol{Name: "p2p-circuit", Code: P_P2P_CIRCUIT})

	CircuitMarker = StringCast("/p2p-circuit")
}

// ProtocolWithCode 根据协议代码获取协议，不存在时返回零值（Code = 0）
func ProtocolWithCode(code int) Protocol {
	return protocols[code]
}

// ProtocolWithName 根据协议名称获取协议，不存在时返回零值（Code = 0）
func ProtocolWithName(name string) Protocol {
	return protocolsByName[name]
}

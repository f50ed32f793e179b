package types

// Direction 连接方向
type Direction int

const (
	// DirUnknown 未知方向
	DirUnknown Direction = iota
	// DirInbound 入站连接
	DirInbound
	// DirOutbound 出站连接
	DirOutbound
)

// String 返回方向的字符串表示
func (d Direction) String() string {
	switch d {
	case DirInbound:
		return "inbound"
	case DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// Mode 节点运行模式
type Mode string

const (
	// ModeDial 主动拨号远端节点（经中继后打洞）
	ModeDial Mode = "dial"
	// ModeListen 通过中继预约等待远端节点
	ModeListen Mode = "listen"
)

// Valid 检查模式是否合法
func (m Mode) Valid() bool {
	return m == ModeDial || m == ModeListen
}

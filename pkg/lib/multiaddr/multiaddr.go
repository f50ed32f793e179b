package multiaddr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
)

// Multiaddr 是自描述的网络地址接口
type Multiaddr interface {
	// Bytes 返回二进制表示（不要修改返回的字节）
	Bytes() []byte

	// String 返回字符串表示
	String() string

	// Equal 判断两个地址的段序列是否相同
	Equal(Multiaddr) bool

	// Protocols 返回地址包含的协议列表
	Protocols() []Protocol

	// Encapsulate 在末尾追加另一个地址
	Encapsulate(Multiaddr) Multiaddr

	// Decapsulate 移除最后一次出现的 other 及其之后的所有段
	Decapsulate(Multiaddr) Multiaddr

	// ValueForProtocol 获取指定协议代码第一次出现时的值
	ValueForProtocol(code int) (string, error)

	// ToTCPAddr 转换为 TCP 地址
	ToTCPAddr() (*net.TCPAddr, error)
}

// multiaddr 是 Multiaddr 接口的实现
type multiaddr struct {
	bytes []byte
}

// NewMultiaddr 从字符串创建多地址
func NewMultiaddr(s string) (Multiaddr, error) {
	b, err := stringToBytes(s)
	if err != nil {
		return nil, err
	}
	return &multiaddr{bytes: b}, nil
}

// NewMultiaddrBytes 从字节创建多地址
func NewMultiaddrBytes(b []byte) (Multiaddr, error) {
	if _, err := readComponents(b); err != nil {
		return nil, err
	}
	buf := make([]byte, len(b))
	copy(buf, b)
	return &multiaddr{bytes: buf}, nil
}

// StringCast 解析已知有效的地址字符串，失败时 panic（仅用于常量和测试）
func StringCast(s string) Multiaddr {
	m, err := NewMultiaddr(s)
	if err != nil {
		panic(fmt.Errorf("multiaddr %q: %w", s, err))
	}
	return m
}

// Bytes 返回二进制表示
func (m *multiaddr) Bytes() []byte {
	return m.bytes
}

// String 返回字符串表示
func (m *multiaddr) String() string {
	s, err := bytesToString(m.bytes)
	if err != nil {
		// 构造时已校验
		panic(fmt.Errorf("multiaddr failed to convert to string: %w", err))
	}
	return s
}

// Equal 判断两个地址是否相等
func (m *multiaddr) Equal(other Multiaddr) bool {
	if other == nil {
		return false
	}
	return bytes.Equal(m.bytes, other.Bytes())
}

// Protocols 返回地址包含的协议列表
func (m *multiaddr) Protocols() []Protocol {
	comps, _ := readComponents(m.bytes)
	out := make([]Protocol, 0, len(comps))
	for _, c := range comps {
		out = append(out, c.proto)
	}
	return out
}

// Encapsulate 封装另一个地址
func (m *multiaddr) Encapsulate(other Multiaddr) Multiaddr {
	if other == nil {
		return m
	}
	ob := other.Bytes()
	result := make([]byte, len(m.bytes)+len(ob))
	copy(result, m.bytes)
	copy(result[len(m.bytes):], ob)
	return &multiaddr{bytes: result}
}

// Decapsulate 解封装
//
// 按段边界查找 other 最后一次出现的位置并截断，找不到时原样返回。
func (m *multiaddr) Decapsulate(other Multiaddr) Multiaddr {
	if other == nil {
		return m
	}
	ob := other.Bytes()
	comps, err := readComponents(m.bytes)
	if err != nil {
		return m
	}

	cut := -1
	offset := 0
	for _, c := range comps {
		if bytes.HasPrefix(m.bytes[offset:], ob) {
			cut = offset
		}
		offset += len(c.raw)
	}
	if cut < 0 {
		return m
	}
	if cut == 0 {
		return nil
	}
	return &multiaddr{bytes: m.bytes[:cut:cut]}
}

// ValueForProtocol 获取指定协议代码的值
func (m *multiaddr) ValueForProtocol(code int) (string, error) {
	comps, err := readComponents(m.bytes)
	if err != nil {
		return "", err
	}
	for _, c := range comps {
		if c.proto.Code != code {
			continue
		}
		if c.proto.Size == 0 {
			return "", nil
		}
		return c.proto.Transcoder.BytesToString(c.value)
	}
	return "", fmt.Errorf("protocol %d not found in %s", code, m.String())
}

// MarshalText 实现 encoding.TextMarshaler
func (m *multiaddr) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (m *multiaddr) UnmarshalText(data []byte) error {
	b, err := stringToBytes(string(data))
	if err != nil {
		return err
	}
	m.bytes = b
	return nil
}

// MarshalJSON 实现 json.Marshaler
func (m *multiaddr) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON 实现 json.Unmarshaler
func (m *multiaddr) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return m.UnmarshalText([]byte(s))
}

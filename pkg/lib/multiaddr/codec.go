package multiaddr

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/multiformats/go-varint"
)

// stringToBytes 将多地址字符串转换为二进制格式
func stringToBytes(s string) ([]byte, error) {
	s = strings.TrimRight(s, "/")
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: empty multiaddr", ErrInvalidMultiaddr)
	}
	if !strings.HasPrefix(s, "/") {
		return nil, fmt.Errorf("%w: must begin with /", ErrInvalidMultiaddr)
	}

	var buf bytes.Buffer
	parts := strings.Split(s, "/")[1:]

	for len(parts) > 0 {
		name := parts[0]
		proto := ProtocolWithName(name)
		if proto.Code == 0 {
			return nil, fmt.Errorf("%w: unknown protocol %q", ErrInvalidProtocol, name)
		}
		buf.Write(proto.VCode)
		parts = parts[1:]

		if proto.Size == 0 {
			continue
		}
		if len(parts) < 1 {
			return nil, fmt.Errorf("%w: protocol %s requires a value", ErrInvalidMultiaddr, name)
		}

		value, err := proto.Transcoder.StringToBytes(parts[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMultiaddr, name, err)
		}
		if proto.Size == LengthPrefixedVarSize {
			buf.Write(varint.ToUvarint(uint64(len(value))))
		}
		buf.Write(value)
		parts = parts[1:]
	}

	return buf.Bytes(), nil
}

// component 二进制中的一个协议段
type component struct {
	proto Protocol
	raw   []byte // 整段（含协议码和长度前缀）
	value []byte
}

// readComponent 读取第一个协议段
func readComponent(b []byte) (component, int, error) {
	code, n, err := varint.FromUvarint(b)
	if err != nil {
		return component{}, 0, fmt.Errorf("%w: protocol code: %v", ErrInvalidMultiaddr, err)
	}
	proto := ProtocolWithCode(int(code))
	if proto.Code == 0 {
		return component{}, 0, fmt.Errorf("%w: unknown protocol code %d", ErrInvalidProtocol, code)
	}

	offset := n
	size := 0
	switch {
	case proto.Size == LengthPrefixedVarSize:
		l, m, err := varint.FromUvarint(b[offset:])
		if err != nil {
			return component{}, 0, fmt.Errorf("%w: %s length: %v", ErrInvalidMultiaddr, proto.Name, err)
		}
		offset += m
		size = int(l)
	case proto.Size > 0:
		size = proto.Size / 8
	}

	if len(b)-offset < size {
		return component{}, 0, fmt.Errorf("%w: insufficient data for %s", ErrInvalidMultiaddr, proto.Name)
	}
	value := b[offset : offset+size]
	if proto.Transcoder != nil {
		if err := proto.Transcoder.ValidateBytes(value); err != nil {
			return component{}, 0, fmt.Errorf("%w: %s: %v", ErrInvalidMultiaddr, proto.Name, err)
		}
	}
	total := offset + size
	return component{proto: proto, raw: b[:total], value: value}, total, nil
}

// readComponents 解析全部协议段
func readComponents(b []byte) ([]component, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty multiaddr", ErrInvalidMultiaddr)
	}
	var out []component
	for len(b) > 0 {
		c, n, err := readComponent(b)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		b = b[n:]
	}
	return out, nil
}

// bytesToString 将二进制格式的多地址转换为字符串
func bytesToString(b []byte) (string, error) {
	comps, err := readComponents(b)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, c := range comps {
		sb.WriteString("/")
		sb.WriteString(c.proto.Name)
		if c.proto.Size == 0 {
			continue
		}
		s, err := c.proto.Transcoder.BytesToString(c.value)
		if err != nil {
			return "", err
		}
		sb.WriteString("/")
		sb.WriteString(s)
	}
	return sb.String(), nil
}

package proto

import (
	"errors"
	"fmt"
	"io"

	"github.com/libp2p/go-msgio"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed 消息格式错误
var ErrMalformed = errors.New("proto: malformed message")

// Message 可编解码的协议消息
type Message interface {
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// WriteDelimited 写入一条 uvarint 长度前缀的消息
func WriteDelimited(w io.Writer, m Message) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	return msgio.NewVarintWriter(w).WriteMsg(data)
}

// ReadDelimited 读取一条 uvarint 长度前缀的消息
//
// 不会越过消息边界预读，之后流上的数据保持原样。
func ReadDelimited(r io.Reader, maxSize int, m Message) error {
	vr := msgio.NewVarintReaderSize(r, maxSize)
	data, err := vr.ReadMsg()
	if err != nil {
		return err
	}
	defer vr.ReleaseMsg(data)
	return m.Unmarshal(data)
}

// Field 一个已解析的字段
type Field struct {
	Num    protowire.Number
	Type   protowire.Type
	Varint uint64
	Bytes  []byte
}

// RangeFields 依次解析 data 中的字段，未知的 wire type 按规范跳过
func RangeFields(data []byte, fn func(f Field) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			f.Varint = v
			n = m
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			f.Bytes = v
			n = m
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
			}
			data = data[m:]
			continue
		}
		data = data[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// Clone 复制字节，解析结果不引用输入缓冲区
func Clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

package multiaddr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/multiformats/go-varint"
)

// Transcoder 定义协议值的编解码方法
type Transcoder interface {
	StringToBytes(string) ([]byte, error)
	BytesToString([]byte) (string, error)
	ValidateBytes([]byte) error
}

type transcoderFuncs struct {
	s2b func(string) ([]byte, error)
	b2s func([]byte) (string, error)
	val func([]byte) error
}

func (t transcoderFuncs) StringToBytes(s string) ([]byte, error) { return t.s2b(s) }
func (t transcoderFuncs) BytesToString(b []byte) (string, error) { return t.b2s(b) }

func (t transcoderFuncs) ValidateBytes(b []byte) error {
	if t.val == nil {
		return nil
	}
	return t.val(b)
}

// 内置编解码器
var (
	TranscoderIP4  Transcoder = transcoderFuncs{ip4StringToBytes, ip4BytesToString, nil}
	TranscoderIP6  Transcoder = transcoderFuncs{ip6StringToBytes, ip6BytesToString, nil}
	TranscoderPort Transcoder = transcoderFuncs{portStringToBytes, portBytesToString, nil}
	TranscoderDNS  Transcoder = transcoderFuncs{dnsStringToBytes, dnsBytesToString, dnsValidateBytes}
	TranscoderP2P  Transcoder = transcoderFuncs{p2pStringToBytes, p2pBytesToString, ValidatePeerIDBytes}
)

func ip4StringToBytes(s string) ([]byte, error) {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return nil, fmt.Errorf("failed to parse ip4 addr: %s", s)
	}
	return ip, nil
}

func ip4BytesToString(b []byte) (string, error) {
	if len(b) != 4 {
		return "", fmt.Errorf("invalid ip4 length: %d", len(b))
	}
	return net.IP(b).String(), nil
}

func ip6StringToBytes(s string) ([]byte, error) {
	ip := net.ParseIP(s).To16()
	if ip == nil {
		return nil, fmt.Errorf("failed to parse ip6 addr: %s", s)
	}
	return ip, nil
}

func ip6BytesToString(b []byte) (string, error) {
	if len(b) != 16 {
		return "", fmt.Errorf("invalid ip6 length: %d", len(b))
	}
	ip := net.IP(b)
	if ip4 := ip.To4(); ip4 != nil {
		return "::ffff:" + ip4.String(), nil
	}
	return ip.String(), nil
}

func portStringToBytes(s string) ([]byte, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("failed to parse port: %w", err)
	}
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(port))
	return b, nil
}

func portBytesToString(b []byte) (string, error) {
	if len(b) != 2 {
		return "", fmt.Errorf("invalid port length: %d", len(b))
	}
	return strconv.Itoa(int(binary.BigEndian.Uint16(b))), nil
}

func dnsStringToBytes(s string) ([]byte, error) {
	b := []byte(s)
	if err := dnsValidateBytes(b); err != nil {
		return nil, err
	}
	return b, nil
}

func dnsBytesToString(b []byte) (string, error) {
	if err := dnsValidateBytes(b); err != nil {
		return "", err
	}
	return string(b), nil
}

func dnsValidateBytes(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty DNS name")
	}
	if strings.Contains(string(b), "/") {
		return fmt.Errorf("DNS name contains '/': %s", string(b))
	}
	return nil
}

// /p2p 的值是 base58 编码的 multihash
func p2pStringToBytes(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse peer ID %q: %w", s, err)
	}
	if err := ValidatePeerIDBytes(b); err != nil {
		return nil, err
	}
	return b, nil
}

func p2pBytesToString(b []byte) (string, error) {
	if err := ValidatePeerIDBytes(b); err != nil {
		return "", err
	}
	return base58.Encode(b), nil
}

// ValidatePeerIDBytes 校验 multihash 格式：<code varint><len varint><digest>
func ValidatePeerIDBytes(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty peer ID")
	}
	_, n, err := varint.FromUvarint(b)
	if err != nil {
		return fmt.Errorf("invalid multihash code: %w", err)
	}
	length, m, err := varint.FromUvarint(b[n:])
	if err != nil {
		return fmt.Errorf("invalid multihash length: %w", err)
	}
	if uint64(len(b)-n-m) != length {
		return fmt.Errorf("multihash length mismatch: declared %d, have %d", length, len(b)-n-m)
	}
	return nil
}

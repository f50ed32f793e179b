package noise

import "errors"

var (
	// ErrInvalidHandshake 握手消息格式错误
	ErrInvalidHandshake = errors.New("noise: invalid handshake")

	// ErrInvalidSignature 静态密钥签名校验失败
	ErrInvalidSignature = errors.New("noise: static key not bound to identity")

	// ErrPeerIDMismatch 远端身份与期望不一致
	ErrPeerIDMismatch = errors.New("noise: peer ID mismatch")

	// ErrUnsupportedKey 身份密钥类型不支持
	ErrUnsupportedKey = errors.New("noise: unsupported identity key")
)

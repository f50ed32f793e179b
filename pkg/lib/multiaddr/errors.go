package multiaddr

import "errors"

// 通用错误
var (
	ErrInvalidMultiaddr = errors.New("invalid multiaddr")
	ErrInvalidProtocol  = errors.New("invalid protocol")
	ErrNoPeerID         = errors.New("no peer ID in multiaddr")
	ErrNotIPAddr        = errors.New("multiaddr has no IP component")
)

package upgrader

import "errors"

var (
	// ErrNoSecurityTransport 未配置安全传输
	ErrNoSecurityTransport = errors.New("upgrader: no security transport")

	// ErrNoStreamMuxer 未配置多路复用器
	ErrNoStreamMuxer = errors.New("upgrader: no stream muxer")

	// ErrNoPeerID 出站升级缺少远端 PeerID
	ErrNoPeerID = errors.New("upgrader: outbound upgrade requires remote peer ID")
)

package muxer

import (
	"errors"

	"github.com/libp2p/go-yamux/v5"
)

var (
	// ErrStreamReset 流被重置
	ErrStreamReset = errors.New("stream reset")

	// ErrConnClosed 多路复用连接已关闭
	ErrConnClosed = errors.New("connection closed")
)

// parseError 把 yamux 错误映射为包内错误
func parseError(err error) error {
	switch {
	case err == nil:
		return nil
	// GoAwayError 同时匹配两者，会话关闭优先
	case errors.Is(err, yamux.ErrSessionShutdown):
		return ErrConnClosed
	case errors.Is(err, yamux.ErrStreamReset):
		return ErrStreamReset
	default:
		return err
	}
}

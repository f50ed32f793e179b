package interfaces

import (
	"context"
	"net"
	"time"
)

// StreamMuxer 定义流多路复用器接口
type StreamMuxer interface {
	// NewConn 在网络连接上创建多路复用连接
	NewConn(conn net.Conn, isServer bool) (MuxedConn, error)

	// ID 返回多路复用协议标识
	ID() string
}

// MuxedConn 定义多路复用连接接口
type MuxedConn interface {
	// OpenStream 打开新流
	OpenStream(ctx context.Context) (MuxedStream, error)

	// AcceptStream 接受新流
	AcceptStream() (MuxedStream, error)

	// Close 关闭连接
	Close() error

	// IsClosed 检查连接是否已关闭
	IsClosed() bool
}

// MuxedStream 定义多路复用流接口
type MuxedStream interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	CloseWrite() error
	CloseRead() error
	Reset() error
	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

package muxer

import (
	"context"

	"github.com/libp2p/go-yamux/v5"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
)

// muxedConn 包装 yamux.Session
type muxedConn struct {
	session *yamux.Session
}

var _ pkgif.MuxedConn = (*muxedConn)(nil)

// OpenStream 打开新流
func (c *muxedConn) OpenStream(ctx context.Context) (pkgif.MuxedStream, error) {
	s, err := c.session.OpenStream(ctx)
	if err != nil {
		return nil, parseError(err)
	}
	return &muxedStream{stream: s}, nil
}

// AcceptStream 接受对端打开的流
func (c *muxedConn) AcceptStream() (pkgif.MuxedStream, error) {
	s, err := c.session.AcceptStream()
	if err != nil {
		return nil, parseError(err)
	}
	return &muxedStream{stream: s}, nil
}

// Close 关闭会话及底层连接
func (c *muxedConn) Close() error {
	return c.session.Close()
}

// IsClosed 会话是否已关闭
func (c *muxedConn) IsClosed() bool {
	return c.session.IsClosed()
}

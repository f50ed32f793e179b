package server

import "errors"

var (
	// ErrServerClosed 中继服务已关闭
	ErrServerClosed = errors.New("relay server closed")

	// ErrNilHost 未提供 Host
	ErrNilHost = errors.New("relay server: nil host")
)

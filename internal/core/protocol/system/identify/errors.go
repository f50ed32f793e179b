package identify

import "errors"

var (
	// ErrTimeout 交换未在超时内完成
	ErrTimeout = errors.New("identify: timeout")

	// ErrPeerIDMismatch 对端声明的公钥与连接身份不符
	ErrPeerIDMismatch = errors.New("identify: public key does not match peer id")

	// ErrConnClosed 等待期间连接已关闭
	ErrConnClosed = errors.New("identify: connection closed")

	// ErrServiceClosed 服务已关闭
	ErrServiceClosed = errors.New("identify: service closed")
)

package client

import "errors"

var (
	// ErrRelayUnreachable 无法连接中继或中继不支持 HOP 协议
	ErrRelayUnreachable = errors.New("relay unreachable")

	// ErrReservationDenied 中继拒绝预约
	ErrReservationDenied = errors.New("reservation denied")

	// ErrTimeout 等待中继响应超时
	ErrTimeout = errors.New("relay request timed out")

	// ErrNoReservation 目标节点在中继上没有有效预约
	ErrNoReservation = errors.New("target has no reservation")

	// ErrCircuitFailed 电路建立失败
	ErrCircuitFailed = errors.New("circuit failed")

	// ErrUnexpectedMessage 意外的消息类型
	ErrUnexpectedMessage = errors.New("unexpected relay message")

	// ErrInvalidCircuitAddr 无效的电路地址
	ErrInvalidCircuitAddr = errors.New("invalid circuit address")

	// ErrTransportClosed 中继传输层已关闭
	ErrTransportClosed = errors.New("relay transport closed")

	// ErrListenerClosed 电路监听器已关闭
	ErrListenerClosed = errors.New("circuit listener closed")

	// ErrAlreadyListening 已有电路监听器
	ErrAlreadyListening = errors.New("already listening for circuits")

	// ErrManagerClosed 预约管理器已关闭
	ErrManagerClosed = errors.New("reservation manager closed")
)

package holepunch

import "errors"

var (
	// ErrNoRelayRoute 地址簿中没有目标的电路地址
	ErrNoRelayRoute = errors.New("no relay route to peer")

	// ErrRelayDialFailed 经中继拨号失败
	ErrRelayDialFailed = errors.New("relay dial failed")

	// ErrRelayClosed 中继连接已断开
	ErrRelayClosed = errors.New("relayed connection closed")

	// ErrNoCandidates 没有可用的候选地址
	ErrNoCandidates = errors.New("no hole punch candidates")

	// ErrPunchFailed 所有直连尝试均失败
	ErrPunchFailed = errors.New("hole punch failed")

	// ErrPunchTimeout 打洞阶段超时
	ErrPunchTimeout = errors.New("hole punch timed out")

	// ErrPunchPermanentFailure 重试耗尽
	ErrPunchPermanentFailure = errors.New("hole punch permanently failed")

	// ErrUnexpectedMessage 意外的协调消息
	ErrUnexpectedMessage = errors.New("unexpected hole punch message")

	// ErrCoordinatorClosed 协调器已关闭
	ErrCoordinatorClosed = errors.New("hole punch coordinator closed")
)

// ErrAttemptInProgress 与该节点已有进行中的打洞尝试
var ErrAttemptInProgress = errors.New("hole punch attempt already in progress")

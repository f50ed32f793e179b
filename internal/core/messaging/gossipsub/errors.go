package gossipsub

import "errors"

var (
	// ErrRouterClosed 路由器已关闭
	ErrRouterClosed = errors.New("gossipsub router closed")

	// ErrNotJoined 未加入主题
	ErrNotJoined = errors.New("topic not joined")

	// ErrEmptyTopic 主题名为空
	ErrEmptyTopic = errors.New("empty topic")

	// ErrMessageTooLarge 消息超过 MaxMessageSize
	ErrMessageTooLarge = errors.New("message too large")

	// ErrSubscriptionClosed 订阅已取消
	ErrSubscriptionClosed = errors.New("subscription closed")

	// ErrInvalidSignature 签名无效或缺失
	ErrInvalidSignature = errors.New("invalid message signature")
)

// ErrDuplicateMessage 相同 ID 的消息已发布过
var ErrDuplicateMessage = errors.New("duplicate message")

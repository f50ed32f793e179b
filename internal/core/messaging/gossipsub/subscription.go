package gossipsub

import (
	"context"
	"sync"
)

// Subscription 本地订阅，Next 为入站消息流
type Subscription struct {
	r     *Router
	topic string
	ch    chan *Message

	closeOnce sync.Once
}

func newSubscription(r *Router, topic string, size int) *Subscription {
	return &Subscription{
		r:     r,
		topic: topic,
		ch:    make(chan *Message, size),
	}
}

// Topic 返回主题名
func (s *Subscription) Topic() string {
	return s.topic
}

// Next 阻塞等待下一条消息
func (s *Subscription) Next(ctx context.Context) (*Message, error) {
	select {
	case msg, ok := <-s.ch:
		if !ok {
			return nil, ErrSubscriptionClosed
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel 取消订阅，不离开主题
func (s *Subscription) Cancel() {
	s.r.removeSubscription(s)
}

// push 非阻塞投递，调用方持有 Router.mu
func (s *Subscription) push(msg *Message) bool {
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// close 调用方持有 Router.mu
func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

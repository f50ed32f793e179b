package swarm

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/dep2p/go-natpunch/pkg/types"
)

var (
	// ErrSwarmClosed Swarm 已关闭
	ErrSwarmClosed = errors.New("swarm closed")

	// ErrNoAddresses 没有可用地址
	ErrNoAddresses = errors.New("no addresses")

	// ErrNoTransport 没有可用传输层
	ErrNoTransport = errors.New("no transport for address")

	// ErrNoConnection 没有连接
	ErrNoConnection = errors.New("no connection to peer")

	// ErrDialToSelf 尝试拨号自己
	ErrDialToSelf = errors.New("dial to self attempted")

	// ErrPeerMismatch 升级后的远端身份与拨号目标不一致
	ErrPeerMismatch = errors.New("dialed peer mismatch")

	// ErrConnClosed 连接已关闭
	ErrConnClosed = errors.New("connection closed")
)

// DialError 拨号错误，汇总各地址的失败原因
type DialError struct {
	Peer types.PeerID
	Err  error
}

func (e *DialError) Error() string {
	errs := multierr.Errors(e.Err)
	switch len(errs) {
	case 0:
		return fmt.Sprintf("failed to dial %s: unknown error", e.Peer)
	case 1:
		return fmt.Sprintf("failed to dial %s: %v", e.Peer, errs[0])
	default:
		return fmt.Sprintf("failed to dial %s: %d errors: %v", e.Peer, len(errs), e.Err)
	}
}

// Unwrap 返回汇总后的错误，errors.Is 可匹配任一地址的失败原因
func (e *DialError) Unwrap() []error {
	return multierr.Errors(e.Err)
}

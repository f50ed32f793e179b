package natpunch

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-natpunch/config"
	"github.com/dep2p/go-natpunch/internal/core/host"
	"github.com/dep2p/go-natpunch/internal/core/messaging/gossipsub"
	"github.com/dep2p/go-natpunch/internal/core/nat/holepunch"
	"github.com/dep2p/go-natpunch/internal/core/protocol/system/identify"
	relayclient "github.com/dep2p/go-natpunch/internal/core/relay/client"
	relayserver "github.com/dep2p/go-natpunch/internal/core/relay/server"
	"github.com/dep2p/go-natpunch/internal/core/swarm"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// 节点生命周期错误
var (
	// ErrNotStarted 节点未启动
	ErrNotStarted = errors.New("node not started")

	// ErrAlreadyStarted 节点已启动
	ErrAlreadyStarted = errors.New("node already started")

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("node closed")

	// ErrNoRelay 未配置中继地址
	ErrNoRelay = errors.New("no relay configured")
)

// ErrorKind 错误分类
type ErrorKind int

const (
	// UnknownError 未归类的错误
	UnknownError ErrorKind = iota

	// TransportError 拨号、升级或开流失败
	TransportError

	// RelayError 预约被拒、没有预约或电路失败
	RelayError

	// PunchFailure 打洞未能建立直连
	PunchFailure

	// ValidationError 签名无效、消息超限、身份不符等
	ValidationError

	// ConfigurationError 配置无效，只在 New/Start 阶段出现
	ConfigurationError
)

func (k ErrorKind) String() string {
	switch k {
	case TransportError:
		return "transport"
	case RelayError:
		return "relay"
	case PunchFailure:
		return "punch"
	case ValidationError:
		return "validation"
	case ConfigurationError:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error 带分类与操作名的节点错误
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("natpunch: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap 返回原始错误
func (e *Error) Unwrap() error {
	return e.Err
}

// wrap 按 KindOf 分类并附加操作名，nil 原样返回
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindOf(err), Op: op, Err: err}
}

var kindTable = []struct {
	kind ErrorKind
	errs []error
}{
	{ConfigurationError, []error{config.ErrInvalidConfig, ErrNoRelay}},
	{PunchFailure, []error{
		holepunch.ErrNoRelayRoute,
		holepunch.ErrRelayDialFailed,
		holepunch.ErrRelayClosed,
		holepunch.ErrNoCandidates,
		holepunch.ErrPunchFailed,
		holepunch.ErrPunchTimeout,
		holepunch.ErrPunchPermanentFailure,
		holepunch.ErrUnexpectedMessage,
		holepunch.ErrAttemptInProgress,
	}},
	{RelayError, []error{
		relayclient.ErrRelayUnreachable,
		relayclient.ErrReservationDenied,
		relayclient.ErrTimeout,
		relayclient.ErrNoReservation,
		relayclient.ErrCircuitFailed,
		relayclient.ErrUnexpectedMessage,
		relayclient.ErrInvalidCircuitAddr,
		relayserver.ErrServerClosed,
	}},
	{ValidationError, []error{
		gossipsub.ErrInvalidSignature,
		gossipsub.ErrMessageTooLarge,
		gossipsub.ErrEmptyTopic,
		gossipsub.ErrDuplicateMessage,
		identify.ErrPeerIDMismatch,
		swarm.ErrPeerMismatch,
		types.ErrInvalidPeerID,
	}},
	{TransportError, []error{
		swarm.ErrNoAddresses,
		swarm.ErrNoTransport,
		swarm.ErrNoConnection,
		swarm.ErrDialToSelf,
		swarm.ErrConnClosed,
		swarm.ErrSwarmClosed,
		host.ErrHostClosed,
		identify.ErrTimeout,
		identify.ErrConnClosed,
	}},
}

// KindOf 返回错误分类
//
// *Error 直接取 Kind；否则按各组件的哨兵错误归类。
// 打洞错误先于中继错误匹配，重试耗尽时原因链中可能同时包含两者。
func KindOf(err error) ErrorKind {
	if err == nil {
		return UnknownError
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, entry := range kindTable {
		for _, target := range entry.errs {
			if errors.Is(err, target) {
				return entry.kind
			}
		}
	}
	var dialErr *swarm.DialError
	if errors.As(err, &dialErr) {
		return TransportError
	}
	return UnknownError
}

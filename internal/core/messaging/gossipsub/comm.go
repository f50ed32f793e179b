package gossipsub

import (
	"context"
	"errors"
	"io"
	"time"

	mss "github.com/multiformats/go-multistream"

	"github.com/dep2p/go-natpunch/internal/core/metrics"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/proto"
	pb "github.com/dep2p/go-natpunch/pkg/lib/proto/gossipsub"
	"github.com/dep2p/go-natpunch/pkg/protocolids"
	"github.com/dep2p/go-natpunch/pkg/types"
)

const (
	// openTimeout 打开出站流的超时
	openTimeout = 10 * time.Second

	// writeTimeout 单个 RPC 的写超时
	writeTimeout = 10 * time.Second
)

// ============================================================================
//                              入站
// ============================================================================

// handleStream 读取对端的长连接出站流
func (r *Router) handleStream(s pkgif.Stream) {
	from := s.Conn().RemotePeer()
	if !r.inboundFrom(from) {
		s.Reset()
		return
	}
	defer r.wg.Done()
	stop := context.AfterFunc(r.ctx, func() { s.Reset() })
	defer stop()

	for {
		rpc := new(pb.RPC)
		if err := proto.ReadDelimited(s, r.config.maxRPCSize(), rpc); err != nil {
			if errors.Is(err, io.EOF) {
				s.Close()
			} else {
				if r.ctx.Err() == nil {
					log.Debug("读取 RPC 失败", "peer", from.ShortString(), "err", err)
				}
				s.Reset()
			}
			return
		}
		r.handleRPC(from, rpc)
	}
}

// ============================================================================
//                              出站
// ============================================================================

// peerSender 到单个对端的发送队列，独占一条出站流
type peerSender struct {
	r     *Router
	peer  types.PeerID
	queue chan *pb.RPC

	ctx    context.Context
	cancel context.CancelFunc
}

func newPeerSender(r *Router, p types.PeerID, size int) *peerSender {
	ctx, cancel := context.WithCancel(r.ctx)
	return &peerSender{
		r:      r,
		peer:   p,
		queue:  make(chan *pb.RPC, size),
		ctx:    ctx,
		cancel: cancel,
	}
}

// enqueue 非阻塞入队，队列满时返回 false
func (ps *peerSender) enqueue(rpc *pb.RPC) bool {
	select {
	case ps.queue <- rpc:
		return true
	default:
		return false
	}
}

func (ps *peerSender) stop() {
	ps.cancel()
}

func (ps *peerSender) run() {
	defer ps.r.wg.Done()

	var s pkgif.Stream
	defer func() {
		if s != nil {
			s.Close()
		}
	}()

	for {
		select {
		case <-ps.ctx.Done():
			return
		case rpc := <-ps.queue:
			var err error
			if s == nil {
				if s, err = ps.open(); err != nil {
					ps.fail(err)
					return
				}
			}
			if err = ps.write(s, rpc); err == nil {
				continue
			}
			// 流已失效时重开一次
			s.Reset()
			s = nil
			if s, err = ps.open(); err != nil {
				ps.fail(err)
				return
			}
			if err = ps.write(s, rpc); err != nil {
				s.Reset()
				s = nil
				ps.fail(err)
				return
			}
		}
	}
}

func (ps *peerSender) open() (pkgif.Stream, error) {
	ctx, cancel := context.WithTimeout(ps.ctx, openTimeout)
	defer cancel()
	return ps.r.host.NewStream(ctx, ps.peer, protocolids.Meshsub, protocolids.MeshsubV10)
}

func (ps *peerSender) write(s pkgif.Stream, rpc *pb.RPC) error {
	_ = s.SetWriteDeadline(time.Now().Add(writeTimeout))
	defer s.SetWriteDeadline(time.Time{})
	return proto.WriteDelimited(s, rpc)
}

// fail 发送器退出，队列中剩余的 RPC 一并丢弃
func (ps *peerSender) fail(err error) {
	if ps.ctx.Err() != nil {
		return
	}
	var notSupported mss.ErrNotSupported[types.ProtocolID]
	unsupported := errors.As(err, &notSupported)
	if unsupported {
		log.Debug("对端不支持 meshsub", "peer", ps.peer.ShortString())
	} else {
		log.Debug("发送 RPC 失败", "peer", ps.peer.ShortString(), "err", err)
	}
	if n := len(ps.queue); n > 0 {
		for i := 0; i < n; i++ {
			metrics.GossipMessage("dropped")
		}
	}
	ps.r.senderFailed(ps, unsupported)
}

package swarm

import (
	"sync"
	"time"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var _ pkgif.Stream = (*Stream)(nil)

// Stream Swarm 流
type Stream struct {
	stream pkgif.MuxedStream
	conn   *Conn

	protoMu  sync.RWMutex
	protocol types.ProtocolID
}

func (s *Stream) Read(p []byte) (int, error)  { return s.stream.Read(p) }
func (s *Stream) Write(p []byte) (int, error) { return s.stream.Write(p) }

// Close 关闭流
func (s *Stream) Close() error {
	s.conn.untrack(s)
	return s.stream.Close()
}

// Reset 异常终止流
func (s *Stream) Reset() error {
	s.conn.untrack(s)
	return s.stream.Reset()
}

func (s *Stream) CloseWrite() error                  { return s.stream.CloseWrite() }
func (s *Stream) CloseRead() error                   { return s.stream.CloseRead() }
func (s *Stream) SetDeadline(t time.Time) error      { return s.stream.SetDeadline(t) }
func (s *Stream) SetReadDeadline(t time.Time) error  { return s.stream.SetReadDeadline(t) }
func (s *Stream) SetWriteDeadline(t time.Time) error { return s.stream.SetWriteDeadline(t) }

// Protocol 返回协商得到的协议 ID
func (s *Stream) Protocol() types.ProtocolID {
	s.protoMu.RLock()
	defer s.protoMu.RUnlock()
	return s.protocol
}

// SetProtocol 设置协议 ID
func (s *Stream) SetProtocol(id types.ProtocolID) {
	s.protoMu.Lock()
	s.protocol = id
	s.protoMu.Unlock()
}

// Conn 返回所属连接
func (s *Stream) Conn() pkgif.Connection { return s.conn }

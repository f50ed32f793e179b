package server

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dep2p/go-natpunch/internal/core/metrics"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	relaypb "github.com/dep2p/go-natpunch/pkg/lib/proto/relay"
)

// statusError STOP 握手返回的非 OK 状态
type statusError struct {
	typ    string
	status relaypb.Status
}

func (e *statusError) Error() string {
	return fmt.Sprintf("stop handshake: %s %s", e.typ, e.status)
}

// splice 双向转发，任一方向出错或超出限制时重置两端
func (s *Server) splice(src, dst pkgif.Stream, done func()) {
	defer done()

	if d := s.config.CircuitDuration; d > 0 {
		deadline := time.Now().Add(d)
		_ = src.SetDeadline(deadline)
		_ = dst.SetDeadline(deadline)
	} else {
		_ = src.SetDeadline(time.Time{})
		_ = dst.SetDeadline(time.Time{})
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		total  int64
		failed bool
	)
	pipe := func(w, r pkgif.Stream) {
		defer wg.Done()
		n, limited, err := s.copyLimited(w, r)
		mu.Lock()
		total += n
		mu.Unlock()
		if err != nil || limited {
			mu.Lock()
			failed = true
			mu.Unlock()
			w.Reset()
			r.Reset()
			return
		}
		_ = w.CloseWrite()
	}
	wg.Add(2)
	go pipe(dst, src)
	go pipe(src, dst)
	wg.Wait()

	if !failed {
		src.Close()
		dst.Close()
	}
	metrics.RelayedBytes(total)
	log.Debug("电路关闭", "src", src.Conn().RemotePeer().ShortString(), "dst", dst.Conn().RemotePeer().ShortString(), "bytes", total, "reset", failed)
}

// copyLimited 复制 r 到 w，超出 CircuitData 时 limited 为 true
func (s *Server) copyLimited(w io.Writer, r io.Reader) (n int64, limited bool, err error) {
	limit := s.config.CircuitData
	if limit == 0 {
		n, err = io.Copy(w, r)
		return n, false, err
	}
	n, err = io.Copy(w, io.LimitReader(r, int64(limit)))
	if err != nil {
		return n, false, err
	}
	if uint64(n) < limit {
		return n, false, nil
	}
	// 恰好读满时再探测一个字节，区分正常结束与超限
	var probe [1]byte
	if m, _ := r.Read(probe[:]); m > 0 {
		return n, true, nil
	}
	return n, false, nil
}

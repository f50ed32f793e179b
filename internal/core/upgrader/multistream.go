package upgrader

import (
	"context"
	"fmt"
	"net"
	"time"

	mss "github.com/multiformats/go-multistream"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// defaultNegotiateTimeout 单次协商超时
const defaultNegotiateTimeout = 60 * time.Second

// negotiate 在 conn 上协商 protos 中的一个，server 侧应答，client 侧提议
func negotiate[T ~string](ctx context.Context, conn net.Conn, protos []T, isServer bool) (T, error) {
	deadline := time.Now().Add(defaultNegotiateTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		var zero T
		return zero, fmt.Errorf("set deadline: %w", err)
	}
	defer conn.SetDeadline(time.Time{})

	if !isServer {
		return mss.SelectOneOf(protos, conn)
	}
	m := mss.NewMultistreamMuxer[T]()
	for _, p := range protos {
		m.AddHandler(p, nil)
	}
	selected, _, err := m.Negotiate(conn)
	return selected, err
}

func (u *Upgrader) negotiateSecurity(ctx context.Context, conn net.Conn, isServer bool) (pkgif.SecureTransport, error) {
	ids := make([]types.ProtocolID, len(u.security))
	for i, st := range u.security {
		ids[i] = st.ID()
	}
	selected, err := negotiate(ctx, conn, ids, isServer)
	if err != nil {
		return nil, err
	}
	for _, st := range u.security {
		if st.ID() == selected {
			return st, nil
		}
	}
	return nil, fmt.Errorf("negotiated security %s not found", selected)
}

func (u *Upgrader) negotiateMuxer(ctx context.Context, conn net.Conn, isServer bool) (pkgif.StreamMuxer, error) {
	ids := make([]string, len(u.muxers))
	for i, sm := range u.muxers {
		ids[i] = sm.ID()
	}
	selected, err := negotiate(ctx, conn, ids, isServer)
	if err != nil {
		return nil, err
	}
	for _, sm := range u.muxers {
		if sm.ID() == selected {
			return sm, nil
		}
	}
	return nil, fmt.Errorf("negotiated muxer %s not found", selected)
}

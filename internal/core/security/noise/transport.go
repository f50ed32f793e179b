package noise

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dep2p/go-natpunch/internal/util/logger"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/protocolids"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var log = logger.Logger("core/security/noise")

// Transport Noise 安全传输
type Transport struct {
	privKey   crypto.PrivateKey
	localPeer types.PeerID
}

var _ pkgif.SecureTransport = (*Transport)(nil)

// New 创建 Noise 传输
func New(privKey crypto.PrivateKey) (*Transport, error) {
	if privKey == nil {
		return nil, errors.New("noise: private key is nil")
	}
	if privKey.Type() != crypto.KeyTypeEd25519 {
		return nil, ErrUnsupportedKey
	}
	id, err := crypto.IDFromPrivateKey(privKey)
	if err != nil {
		return nil, fmt.Errorf("noise: derive local peer: %w", err)
	}
	return &Transport{privKey: privKey, localPeer: id}, nil
}

// ID 返回协议标识
func (t *Transport) ID() types.ProtocolID {
	return protocolids.Noise
}

// SecureInbound 以响应者身份握手
func (t *Transport) SecureInbound(ctx context.Context, conn net.Conn, remotePeer types.PeerID) (pkgif.SecureConn, error) {
	return t.secure(ctx, conn, remotePeer, false)
}

// SecureOutbound 以发起者身份握手
func (t *Transport) SecureOutbound(ctx context.Context, conn net.Conn, remotePeer types.PeerID) (pkgif.SecureConn, error) {
	return t.secure(ctx, conn, remotePeer, true)
}

func (t *Transport) secure(ctx context.Context, conn net.Conn, remotePeer types.PeerID, initiator bool) (pkgif.SecureConn, error) {
	if conn == nil {
		return nil, errors.New("noise: conn is nil")
	}

	// 握手期间 ctx 的截止时间作用到底层连接上
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	res, err := runHandshake(conn, t.privKey, initiator)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		log.Debug("noise 握手失败", "initiator", initiator, "remotePeer", remotePeer.ShortString(), "error", err)
		return nil, fmt.Errorf("noise handshake: %w", err)
	}

	if remotePeer != "" && res.remotePeer != remotePeer {
		log.Warn("noise 对端身份不一致", "expected", remotePeer.ShortString(), "actual", res.remotePeer.ShortString())
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrPeerIDMismatch, remotePeer, res.remotePeer)
	}

	log.Debug("noise 握手完成", "initiator", initiator, "remotePeer", res.remotePeer.ShortString())
	return &secureConn{
		Conn:       conn,
		sendCS:     res.send,
		recvCS:     res.recv,
		localPeer:  t.localPeer,
		remotePeer: res.remotePeer,
		remoteKey:  res.remoteKey,
	}, nil
}

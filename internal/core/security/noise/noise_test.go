package noise

import (
	"context"
	"crypto/rand"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/types"
)

func newTransport(t *testing.T, seed uint8) (*Transport, types.PeerID) {
	t.Helper()
	priv := crypto.KeyPairFromSeedByte(seed)
	tr, err := New(priv)
	require.NoError(t, err)
	id, err := crypto.IDFromPrivateKey(priv)
	require.NoError(t, err)
	return tr, id
}

type secureResult struct {
	conn pkgif.SecureConn
	err  error
}

func handshakePair(t *testing.T, client, server *Transport, expect types.PeerID) (secureResult, secureResult) {
	t.Helper()
	c, s := net.Pipe()
	t.Cleanup(func() {
		c.Close()
		s.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan secureResult, 1)
	go func() {
		conn, err := server.SecureInbound(ctx, s, "")
		if err != nil {
			s.Close()
		}
		done <- secureResult{conn, err}
	}()
	conn, err := client.SecureOutbound(ctx, c, expect)
	if err != nil {
		c.Close()
	}
	return secureResult{conn, err}, <-done
}

func TestStaticKeypairMatchesX25519(t *testing.T) {
	priv := crypto.KeyPairFromSeedByte(7)
	kp, err := staticKeypair(priv)
	require.NoError(t, err)

	pub, err := curve25519.X25519(kp.Private, curve25519.Basepoint)
	require.NoError(t, err)
	assert.Equal(t, pub, kp.Public)
}

func TestHandshake(t *testing.T) {
	client, clientID := newTransport(t, 1)
	server, serverID := newTransport(t, 2)

	cr, sr := handshakePair(t, client, server, serverID)
	require.NoError(t, cr.err)
	require.NoError(t, sr.err)

	assert.Equal(t, serverID, cr.conn.RemotePeer())
	assert.Equal(t, clientID, cr.conn.LocalPeer())
	assert.Equal(t, clientID, sr.conn.RemotePeer())
	assert.True(t, crypto.VerifyPeerID(sr.conn.RemotePublicKey(), clientID))

	msg := []byte("hello through noise")
	go func() {
		_, _ = cr.conn.Write(msg)
	}()
	buf := make([]byte, len(msg))
	_, err := io.ReadFull(sr.conn, buf)
	require.NoError(t, err)
	assert.Equal(t, msg, buf)
}

func TestLargeWriteIsChunked(t *testing.T) {
	client, _ := newTransport(t, 3)
	server, serverID := newTransport(t, 4)

	cr, sr := handshakePair(t, client, server, serverID)
	require.NoError(t, cr.err)
	require.NoError(t, sr.err)

	payload := make([]byte, 3*maxPlaintext+17)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		n, err := cr.conn.Write(payload)
		if err == nil && n != len(payload) {
			err = io.ErrShortWrite
		}
		errCh <- err
	}()

	got := make([]byte, len(payload))
	_, err = io.ReadFull(sr.conn, got)
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.Equal(t, payload, got)
}

func TestPeerIDMismatch(t *testing.T) {
	client, _ := newTransport(t, 5)
	server, _ := newTransport(t, 6)
	_, wrongID := newTransport(t, 9)

	cr, _ := handshakePair(t, client, server, wrongID)
	require.Error(t, cr.err)
	assert.ErrorIs(t, cr.err, ErrPeerIDMismatch)
}

func TestHandshakeCanceled(t *testing.T) {
	client, _ := newTransport(t, 1)
	c, s := net.Pipe()
	defer c.Close()
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// 对端不响应
	go func() { _, _ = io.Copy(io.Discard, s) }()

	_, err := client.SecureOutbound(ctx, c, "")
	require.Error(t, err)
}

func TestPayloadRejectsForeignStaticKey(t *testing.T) {
	priv := crypto.KeyPairFromSeedByte(1)
	kp, err := staticKeypair(priv)
	require.NoError(t, err)
	payload, err := encodePayload(priv, kp.Public)
	require.NoError(t, err)

	_, err = verifyPayload(payload, kp.Public)
	require.NoError(t, err)

	other, err := staticKeypair(crypto.KeyPairFromSeedByte(2))
	require.NoError(t, err)
	_, err = verifyPayload(payload, other.Public)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = verifyPayload([]byte{0x0a}, kp.Public)
	assert.ErrorIs(t, err, ErrInvalidHandshake)
}

func TestTransportID(t *testing.T) {
	tr, _ := newTransport(t, 1)
	assert.Equal(t, types.ProtocolID("/noise"), tr.ID())
}

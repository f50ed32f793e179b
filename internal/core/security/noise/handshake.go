package noise

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"filippo.io/edwards25519"
	"github.com/flynn/noise"

	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	pb "github.com/dep2p/go-natpunch/pkg/lib/proto/noise"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// payloadSigPrefix 签名前缀
const payloadSigPrefix = "noise-libp2p-static-key:"

// maxFrameSize 单帧上限（含 16 字节 AEAD 标签）
const maxFrameSize = 65535

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// handshakeResult 握手结果
type handshakeResult struct {
	send, recv *noise.CipherState
	remotePeer types.PeerID
	remoteKey  crypto.PublicKey
}

// runHandshake 执行 XX 握手，initiator 决定发起者角色
func runHandshake(conn net.Conn, priv crypto.PrivateKey, initiator bool) (*handshakeResult, error) {
	static, err := staticKeypair(priv)
	if err != nil {
		return nil, err
	}

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: static,
	})
	if err != nil {
		return nil, fmt.Errorf("create handshake state: %w", err)
	}

	payload, err := encodePayload(priv, static.Public)
	if err != nil {
		return nil, err
	}

	var (
		send, recv    *noise.CipherState
		remotePayload []byte
	)
	if initiator {
		send, recv, remotePayload, err = initiatorHandshake(conn, hs, payload)
	} else {
		send, recv, remotePayload, err = responderHandshake(conn, hs, payload)
	}
	if err != nil {
		return nil, err
	}

	remoteKey, err := verifyPayload(remotePayload, hs.PeerStatic())
	if err != nil {
		return nil, err
	}
	remotePeer, err := crypto.IDFromPublicKey(remoteKey)
	if err != nil {
		return nil, fmt.Errorf("derive remote peer: %w", err)
	}

	return &handshakeResult{
		send:       send,
		recv:       recv,
		remotePeer: remotePeer,
		remoteKey:  remoteKey,
	}, nil
}

// initiatorHandshake 发起者三轮握手，返回 (发送, 接收)
func initiatorHandshake(rw io.ReadWriter, hs *noise.HandshakeState, payload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	msg, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 1: %w", err)
	}
	if err := writeFrame(rw, msg); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 1: %w", err)
	}

	msg, err = readFrame(rw)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 2: %w", err)
	}
	remotePayload, _, _, err := hs.ReadMessage(nil, msg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: read message 2: %v", ErrInvalidHandshake, err)
	}

	msg, cs1, cs2, err := hs.WriteMessage(nil, payload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 3: %w", err)
	}
	if err := writeFrame(rw, msg); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 3: %w", err)
	}
	return cs1, cs2, remotePayload, nil
}

// responderHandshake 响应者三轮握手，返回 (发送, 接收)
func responderHandshake(rw io.ReadWriter, hs *noise.HandshakeState, payload []byte) (*noise.CipherState, *noise.CipherState, []byte, error) {
	msg, err := readFrame(rw)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 1: %w", err)
	}
	if _, _, _, err := hs.ReadMessage(nil, msg); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: read message 1: %v", ErrInvalidHandshake, err)
	}

	msg, _, _, err = hs.WriteMessage(nil, payload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("write message 2: %w", err)
	}
	if err := writeFrame(rw, msg); err != nil {
		return nil, nil, nil, fmt.Errorf("send message 2: %w", err)
	}

	msg, err = readFrame(rw)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("receive message 3: %w", err)
	}
	remotePayload, cs1, cs2, err := hs.ReadMessage(nil, msg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: read message 3: %v", ErrInvalidHandshake, err)
	}
	// cs1 用于发起者 -> 响应者方向
	return cs2, cs1, remotePayload, nil
}

// ============================================================================
//                              payload
// ============================================================================

func encodePayload(priv crypto.PrivateKey, staticPub []byte) ([]byte, error) {
	keyBytes, err := crypto.MarshalPublicKey(priv.GetPublic())
	if err != nil {
		return nil, fmt.Errorf("marshal identity key: %w", err)
	}
	sig, err := priv.Sign(append([]byte(payloadSigPrefix), staticPub...))
	if err != nil {
		return nil, fmt.Errorf("sign static key: %w", err)
	}
	return (&pb.HandshakePayload{IdentityKey: keyBytes, IdentitySig: sig}).Marshal()
}

// verifyPayload 校验签名并返回远端身份公钥
func verifyPayload(payload, remoteStatic []byte) (crypto.PublicKey, error) {
	if len(remoteStatic) != 32 {
		return nil, fmt.Errorf("%w: static key length %d", ErrInvalidHandshake, len(remoteStatic))
	}
	var msg pb.HandshakePayload
	if err := msg.Unmarshal(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandshake, err)
	}
	pub, err := crypto.UnmarshalPublicKey(msg.IdentityKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
	}
	ok, err := pub.Verify(append([]byte(payloadSigPrefix), remoteStatic...), msg.IdentitySig)
	if err != nil || !ok {
		return nil, ErrInvalidSignature
	}
	return pub, nil
}

// ============================================================================
//                              密钥转换
// ============================================================================

// staticKeypair 从 Ed25519 身份密钥派生 X25519 静态密钥对
func staticKeypair(priv crypto.PrivateKey) (noise.DHKey, error) {
	if priv.Type() != crypto.KeyTypeEd25519 {
		return noise.DHKey{}, ErrUnsupportedKey
	}
	raw, err := priv.Raw()
	if err != nil {
		return noise.DHKey{}, err
	}
	if len(raw) != ed25519.PrivateKeySize {
		return noise.DHKey{}, fmt.Errorf("%w: private key length %d", ErrUnsupportedKey, len(raw))
	}

	// RFC 8032: SHA-512(seed) 前 32 字节，clamp 后即 X25519 标量
	h := sha512.Sum512(raw[:32])
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64

	// 公钥部分 u = (1 + y) / (1 - y)
	point, err := new(edwards25519.Point).SetBytes(raw[32:])
	if err != nil {
		return noise.DHKey{}, fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
	}

	return noise.DHKey{
		Private: append([]byte(nil), h[:32]...),
		Public:  point.BytesMontgomery(),
	}, nil
}

// ============================================================================
//                              帧
// ============================================================================

func writeFrame(w io.Writer, data []byte) error {
	if len(data) > maxFrameSize {
		return fmt.Errorf("frame too large: %d", len(data))
	}
	buf := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(buf, uint16(len(data)))
	copy(buf[2:], data)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	data := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

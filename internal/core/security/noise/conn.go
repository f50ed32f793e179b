package noise

import (
	"fmt"
	"net"
	"sync"

	"github.com/flynn/noise"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// maxPlaintext 单帧明文上限
const maxPlaintext = maxFrameSize - 16

// secureConn Noise 加密连接
type secureConn struct {
	net.Conn

	sendCS *noise.CipherState
	recvCS *noise.CipherState

	localPeer  types.PeerID
	remotePeer types.PeerID
	remoteKey  crypto.PublicKey

	readMu  sync.Mutex
	readBuf []byte

	writeMu sync.Mutex
}

var _ pkgif.SecureConn = (*secureConn)(nil)

// Read 读取一帧并解密，多余明文缓存到下次读取
func (c *secureConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for len(c.readBuf) == 0 {
		frame, err := readFrame(c.Conn)
		if err != nil {
			return 0, err
		}
		plain, err := c.recvCS.Decrypt(frame[:0], nil, frame)
		if err != nil {
			return 0, fmt.Errorf("decrypt: %w", err)
		}
		c.readBuf = plain
	}

	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

// Write 按 maxPlaintext 切分后逐帧加密写出
func (c *secureConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	written := 0
	for written < len(p) {
		end := written + maxPlaintext
		if end > len(p) {
			end = len(p)
		}
		ciphertext, err := c.sendCS.Encrypt(nil, nil, p[written:end])
		if err != nil {
			return written, fmt.Errorf("encrypt: %w", err)
		}
		if err := writeFrame(c.Conn, ciphertext); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

// LocalPeer 本地节点
func (c *secureConn) LocalPeer() types.PeerID { return c.localPeer }

// RemotePeer 远端节点
func (c *secureConn) RemotePeer() types.PeerID { return c.remotePeer }

// RemotePublicKey 远端身份公钥
func (c *secureConn) RemotePublicKey() crypto.PublicKey { return c.remoteKey }

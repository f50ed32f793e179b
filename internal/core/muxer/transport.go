package muxer

import (
	"io"
	"math"
	"net"

	"github.com/libp2p/go-yamux/v5"

	"github.com/dep2p/go-natpunch/internal/util/logger"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/protocolids"
)

var log = logger.Logger("core/muxer")

// Transport yamux 多路复用传输
type Transport struct {
	config *yamux.Config
}

var _ pkgif.StreamMuxer = (*Transport)(nil)

// DefaultConfig 默认 yamux 配置
func DefaultConfig() *yamux.Config {
	config := yamux.DefaultConfig()
	// 16MiB 窗口：100ms 延迟下约 160MB/s
	config.MaxStreamWindowSize = uint32(16 * 1024 * 1024)
	config.LogOutput = io.Discard
	// 安全层已有缓冲
	config.ReadBufSize = 0
	config.MaxIncomingStreams = math.MaxUint32
	return config
}

// NewTransport 创建 yamux 传输，config 为空时使用 DefaultConfig
func NewTransport(config *yamux.Config) *Transport {
	if config == nil {
		config = DefaultConfig()
	}
	return &Transport{config: config}
}

// NewConn 在安全连接上建立 yamux 会话
func (t *Transport) NewConn(conn net.Conn, isServer bool) (pkgif.MuxedConn, error) {
	var (
		sess *yamux.Session
		err  error
	)
	if isServer {
		sess, err = yamux.Server(conn, t.config, nil)
	} else {
		sess, err = yamux.Client(conn, t.config, nil)
	}
	if err != nil {
		return nil, err
	}
	log.Debug("yamux 会话建立", "server", isServer)
	return &muxedConn{session: sess}, nil
}

// ID 返回多路复用协议标识
func (t *Transport) ID() string {
	return string(protocolids.Yamux)
}

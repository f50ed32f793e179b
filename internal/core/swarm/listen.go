package swarm

import (
	"fmt"

	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

// Listen 监听指定地址，至少一个成功即返回 nil
func (s *Swarm) Listen(addrs ...multiaddr.Multiaddr) error {
	if s.closed.Load() {
		return ErrSwarmClosed
	}
	if len(addrs) == 0 {
		return ErrNoAddresses
	}

	var errs error
	succeeded := 0
	for _, addr := range addrs {
		if err := s.listenAddr(addr); err != nil {
			log.Warn("监听地址失败", "addr", addr, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("listen %s: %w", addr, err))
			continue
		}
		succeeded++
	}
	if succeeded == 0 {
		return errs
	}
	return nil
}

func (s *Swarm) listenAddr(addr multiaddr.Multiaddr) error {
	t := s.transportFor(addr)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrNoTransport, addr)
	}
	l, err := t.Listen(addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		l.Close()
		return ErrSwarmClosed
	}
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()

	log.Info("开始监听", "addr", l.Multiaddr())
	go s.acceptLoop(l)
	return nil
}

// acceptLoop 接收已升级的入站连接，监听器关闭时退出
func (s *Swarm) acceptLoop(l pkgif.Listener) {
	for {
		uc, err := l.Accept()
		if err != nil {
			if !s.closed.Load() {
				log.Debug("监听器退出", "addr", l.Multiaddr(), "error", err)
			}
			return
		}
		if uc.RemotePeer() == s.local {
			log.Debug("拒绝来自自身的连接")
			uc.Close()
			continue
		}
		if _, err := s.addConn(uc); err != nil {
			return
		}
	}
}

// ListenAddrs 返回实际监听地址
func (s *Swarm) ListenAddrs() []multiaddr.Multiaddr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addrs := make([]multiaddr.Multiaddr, 0, len(s.listeners))
	for _, l := range s.listeners {
		if m := l.Multiaddr(); m != nil {
			addrs = append(addrs, m)
		}
	}
	return addrs
}

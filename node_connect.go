package natpunch

import (
	"context"
	"fmt"
	"time"

	"github.com/dep2p/go-natpunch/config"
	"github.com/dep2p/go-natpunch/internal/core/nat/holepunch"
	relayclient "github.com/dep2p/go-natpunch/internal/core/relay/client"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// connectRelay 连接配置的中继并等待双向 identify 完成
//
// 首次调用前等待 ListenSettle，让监听地址先就绪。
func (n *Node) connectRelay(ctx context.Context) (types.AddrInfo, error) {
	if n.cfg.Relay.Address == "" {
		return types.AddrInfo{}, ErrNoRelay
	}
	info, err := n.cfg.Relay.AddrInfo()
	if err != nil {
		return types.AddrInfo{}, err
	}

	if err := n.settle(ctx); err != nil {
		return types.AddrInfo{}, err
	}

	if err := n.c.Host.Connect(ctx, info); err != nil {
		return types.AddrInfo{}, fmt.Errorf("connect relay %s: %w", info.ID.ShortString(), err)
	}
	conns := n.c.Swarm.ConnsToPeer(info.ID)
	if len(conns) == 0 {
		return types.AddrInfo{}, fmt.Errorf("connect relay %s: connection lost", info.ID.ShortString())
	}

	idCtx, cancel := context.WithTimeout(ctx, n.cfg.Identify.Timeout.Duration())
	defer cancel()
	if err := n.c.Identify.IdentifyWait(idCtx, conns[0]); err != nil {
		return types.AddrInfo{}, fmt.Errorf("identify relay %s: %w", info.ID.ShortString(), err)
	}
	log.Info("已连接中继", "relay", info.ID.ShortString(), "addr", conns[0].RemoteMultiaddr())
	return info, nil
}

// settle 距启动不足 ListenSettle 时等待剩余时间
func (n *Node) settle(ctx context.Context) error {
	n.mu.Lock()
	remaining := time.Until(n.startedAt.Add(n.cfg.Transport.ListenSettle.Duration()))
	n.mu.Unlock()
	if remaining <= 0 {
		return nil
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reserve 连接中继并预约，成功后电路地址进入本地地址
//
// 预约由管理器在过期前自动续约。listen 模式使用。
func (n *Node) Reserve(ctx context.Context) (*relayclient.Reservation, error) {
	if err := n.running(); err != nil {
		return nil, err
	}
	info, err := n.connectRelay(ctx)
	if err != nil {
		return nil, wrap("reserve", err)
	}
	rsv, err := n.c.Relays.Reserve(ctx, info)
	if err != nil {
		return nil, wrap("reserve", err)
	}
	for _, a := range rsv.Addrs {
		log.Info("预约已接受，电路地址", "addr", a, "expiry", rsv.Expiry)
	}
	return rsv, nil
}

// ConnectPeer 经中继连接目标并尝试打洞，失败时按退避重试
//
// 打洞失败但中继连接存活时返回 RelayFallback 且 err 为 nil，
// 只有 Failed 才返回 PunchFailure 或 RelayError。dial 模式使用。
func (n *Node) ConnectPeer(ctx context.Context, target types.PeerID) (holepunch.Outcome, error) {
	if err := n.running(); err != nil {
		return holepunch.Outcome{}, err
	}
	info, err := n.connectRelay(ctx)
	if err != nil {
		return holepunch.Outcome{}, wrap("connect", err)
	}
	n.c.Book.AddAddrs(target, relayclient.CircuitAddrs(info.ID, target, info.Addrs), pkgif.TempAddrTTL)

	o, err := n.c.Punch.ConnectWithRetry(ctx, target)
	if err != nil {
		log.Warn("连接目标失败",
			"peer", target.ShortString(),
			"attempts", o.Attempts,
			"error", err)
		return o, wrap("connect", err)
	}
	switch {
	case o.Direct():
		log.Info("已建立直连", "peer", target.ShortString(), "addr", o.Addr, "attempts", o.Attempts, "duration", o.Duration)
	default:
		log.Info("打洞失败，使用中继连接", "peer", target.ShortString(), "cause", o.Err)
	}
	return o, nil
}

// Run 按配置模式执行：listen 预约后等待连接，dial 连接目标，随后进入聊天循环
func (n *Node) Run(ctx context.Context, chat ChatIO) error {
	switch n.cfg.Mode {
	case config.ModeListen:
		if _, err := n.Reserve(ctx); err != nil {
			return err
		}
	case config.ModeDial:
		target, err := n.cfg.RemotePeer()
		if err != nil {
			return wrap("run", err)
		}
		if _, err := n.ConnectPeer(ctx, target); err != nil {
			return err
		}
	}
	return n.RunChat(ctx, chat.In, chat.Out)
}

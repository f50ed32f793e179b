package natpunch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-natpunch/internal/core/messaging/gossipsub"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// ChatIO 聊天循环的输入与输出
type ChatIO struct {
	In  io.Reader
	Out io.Writer
}

// Subscribe 订阅主题，未加入时自动加入
func (n *Node) Subscribe(topic string) (*gossipsub.Subscription, error) {
	if err := n.running(); err != nil {
		return nil, err
	}
	sub, err := n.c.Gossip.Subscribe(topic)
	if err != nil {
		return nil, wrap("subscribe", err)
	}
	return sub, nil
}

// Publish 发布消息，返回消息 ID
//
// 同一内容重复发布时返回原消息 ID 与 ValidationError。
func (n *Node) Publish(ctx context.Context, topic string, data []byte) (string, error) {
	if err := n.running(); err != nil {
		return "", err
	}
	id, err := n.c.Gossip.Publish(ctx, topic, data)
	if err != nil {
		return id, wrap("publish", err)
	}
	return id, nil
}

// RunChat 在配置的主题上聊天：in 的每一行发布为一条消息，收到的消息以 "from: text" 写入 out
//
// 运行到 ctx 取消为止。in 读完后继续接收消息。
// 读取 in 的协程在 in 关闭前不会退出。
func (n *Node) RunChat(ctx context.Context, in io.Reader, out io.Writer) error {
	topic := n.cfg.Gossip.Topic
	sub, err := n.Subscribe(topic)
	if err != nil {
		return err
	}
	defer sub.Cancel()
	log.Info("已加入聊天主题", "topic", topic)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			m, err := sub.Next(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return wrap("chat", err)
			}
			if _, err := fmt.Fprintf(out, "%s: %s\n", m.From.ShortString(), m.Data); err != nil {
				return err
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					<-gctx.Done()
					return nil
				}
				if line == "" {
					continue
				}
				n.say(gctx, topic, line)
			}
		}
	})
	return g.Wait()
}

// say 发布一行聊天内容，失败只记录日志
func (n *Node) say(ctx context.Context, topic, line string) {
	_, err := n.Publish(ctx, topic, []byte(line))
	switch {
	case err == nil:
	case errors.Is(err, gossipsub.ErrDuplicateMessage):
		log.Warn("重复消息未发送", "topic", topic)
	default:
		log.Warn("发布消息失败", "topic", topic, "error", err)
	}
}

// trackPeers 连接建立时把对端登记为显式节点，最后一条连接断开时移除
//
// 显式节点总会收到本节点发布的消息，不依赖网格状态。
func (n *Node) trackPeers() error {
	connected, err := n.c.Bus.Subscribe(new(types.EvtPeerConnected), pkgif.BufSize(64))
	if err != nil {
		return err
	}
	disconnected, err := n.c.Bus.Subscribe(new(types.EvtPeerDisconnected), pkgif.BufSize(64))
	if err != nil {
		connected.Close()
		return err
	}
	n.subs = append(n.subs, connected, disconnected)

	for _, p := range n.c.Swarm.Peers() {
		n.c.Gossip.AddExplicitPeer(p)
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-n.ctx.Done():
				return
			case e, ok := <-connected.Out():
				if !ok {
					return
				}
				evt := e.(types.EvtPeerConnected)
				n.c.Gossip.AddExplicitPeer(evt.PeerID)
				log.Debug("登记显式节点", "peer", evt.PeerID.ShortString(), "relayed", evt.Relayed)
			case e, ok := <-disconnected.Out():
				if !ok {
					return
				}
				evt := e.(types.EvtPeerDisconnected)
				n.c.Gossip.RemoveExplicitPeer(evt.PeerID)
				log.Debug("移除显式节点", "peer", evt.PeerID.ShortString())
			}
		}
	}()
	return nil
}

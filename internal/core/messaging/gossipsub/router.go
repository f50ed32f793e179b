package gossipsub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-natpunch/internal/core/metrics"
	"github.com/dep2p/go-natpunch/internal/util/logger"
	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	pb "github.com/dep2p/go-natpunch/pkg/lib/proto/gossipsub"
	"github.com/dep2p/go-natpunch/pkg/protocolids"
	"github.com/dep2p/go-natpunch/pkg/types"
)

var log = logger.Logger("messaging/gossipsub")

// Router GossipSub 路由器
type Router struct {
	host   pkgif.Host
	swarm  pkgif.Swarm
	config Config
	clock  clock.Clock
	msgID  MsgIDFn
	priv   crypto.PrivateKey
	self   types.PeerID

	emitMsg pkgif.Emitter
	notifee *pkgif.NotifyBundle

	seen  *seenSet
	wants *wantTracker

	mu          sync.Mutex
	mesh        *meshState
	cache       *messageCache
	subs        map[string]map[*Subscription]struct{}
	senders     map[types.PeerID]*peerSender
	unsupported map[types.PeerID]struct{}
	seqno       uint64
	closed      bool

	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option 路由器选项
type Option func(*Router)

// WithClock 注入时钟，驱动心跳与退避
func WithClock(c clock.Clock) Option {
	return func(r *Router) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithMsgIDFn 替换消息 ID 计算方式
func WithMsgIDFn(fn MsgIDFn) Option {
	return func(r *Router) {
		if fn != nil {
			r.msgID = fn
		}
	}
}

// New 创建路由器
func New(host pkgif.Host, cfg Config, opts ...Option) (*Router, error) {
	if host == nil {
		return nil, errors.New("gossipsub: nil host")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	wants, err := newWantTracker(cfg.SeenCacheSize)
	if err != nil {
		return nil, err
	}
	emitMsg, err := host.EventBus().Emitter(new(types.EvtGossipMessage))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		host:        host,
		swarm:       host.Network(),
		config:      cfg,
		clock:       clock.New(),
		msgID:       DefaultMsgID,
		priv:        host.PrivateKey(),
		self:        host.ID(),
		emitMsg:     emitMsg,
		seen:        newSeenSet(cfg.SeenCacheSize, cfg.SeenTTL),
		wants:       wants,
		cache:       newMessageCache(cfg.HistoryGossip, cfg.HistoryLength),
		subs:        make(map[string]map[*Subscription]struct{}),
		senders:     make(map[types.PeerID]*peerSender),
		unsupported: make(map[types.PeerID]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.mesh = newMeshState(cfg, r.clock.Now().UnixNano())
	r.notifee = &pkgif.NotifyBundle{
		ConnectedF:    r.connected,
		DisconnectedF: r.disconnected,
	}
	return r, nil
}

// Config 返回配置
func (r *Router) Config() Config {
	return r.config
}

// Start 注册协议处理器，接管已有连接并启动心跳
func (r *Router) Start() error {
	if !r.started.CompareAndSwap(false, true) {
		return nil
	}
	r.host.SetStreamHandler(protocolids.Meshsub, r.handleStream)
	r.host.SetStreamHandler(protocolids.MeshsubV10, r.handleStream)
	r.swarm.Notify(r.notifee)
	for _, p := range r.swarm.Peers() {
		r.peerConnected(p)
	}

	r.wg.Add(1)
	go r.heartbeatLoop()
	log.Debug("gossipsub 已启动", "self", r.self.ShortString())
	return nil
}

// Close 停止路由器，取消所有订阅
func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	for topic, subs := range r.subs {
		for sub := range subs {
			sub.close()
		}
		delete(r.subs, topic)
	}
	for p, ps := range r.senders {
		ps.stop()
		delete(r.senders, p)
	}
	r.mu.Unlock()

	if r.started.Load() {
		r.host.RemoveStreamHandler(protocolids.Meshsub)
		r.host.RemoveStreamHandler(protocolids.MeshsubV10)
		r.swarm.StopNotify(r.notifee)
	}
	r.cancel()
	r.wg.Wait()
	return multierr.Combine(r.emitMsg.Close())
}

// ============================================================================
//                              连接事件
// ============================================================================

func (r *Router) connected(conn pkgif.Connection) {
	r.peerConnected(conn.RemotePeer())
}

func (r *Router) disconnected(conn pkgif.Connection) {
	p := conn.RemotePeer()
	if r.swarm.Connectedness(p) != pkgif.NotConnected {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mesh.removePeer(p)
	delete(r.unsupported, p)
	if ps, ok := r.senders[p]; ok {
		ps.stop()
		delete(r.senders, p)
	}
	log.Debug("对端已离开覆盖网络", "peer", p.ShortString())
}

func (r *Router) peerConnected(p types.PeerID) {
	if p == r.self {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.mesh.addPeer(p) {
		r.ensureSender(p)
	}
}

// ============================================================================
//                              主题
// ============================================================================

// Join 加入主题：宣告订阅并向已知订阅者 GRAFT
func (r *Router) Join(topic string) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRouterClosed
	}
	if r.mesh.isJoined(topic) {
		return nil
	}

	grafts := r.mesh.join(topic, r.clock.Now())
	out := make(outbox)
	for _, p := range r.mesh.peers.list() {
		out.rpc(p).Subscriptions = append(out.rpc(p).Subscriptions, &pb.SubOpts{Subscribe: true, TopicID: topic})
	}
	for _, p := range grafts {
		out.control(p).Graft = append(out.control(p).Graft, &pb.ControlGraft{TopicID: topic})
	}
	r.flush(out)
	log.Debug("已加入主题", "topic", topic, "mesh", len(grafts))
	return nil
}

// Leave 离开主题：宣告取消订阅，PRUNE 网格成员，关闭该主题的本地订阅
func (r *Router) Leave(topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRouterClosed
	}
	if !r.mesh.isJoined(topic) {
		return ErrNotJoined
	}

	prunes := r.mesh.leave(topic)
	out := make(outbox)
	for _, p := range r.mesh.peers.list() {
		out.rpc(p).Subscriptions = append(out.rpc(p).Subscriptions, &pb.SubOpts{Subscribe: false, TopicID: topic})
	}
	for _, p := range prunes {
		out.control(p).Prune = append(out.control(p).Prune, r.pruneMsg(topic))
	}
	r.flush(out)

	for sub := range r.subs[topic] {
		sub.close()
	}
	delete(r.subs, topic)
	return nil
}

// Subscribe 订阅主题，未加入时自动加入
func (r *Router) Subscribe(topic string) (*Subscription, error) {
	if err := r.Join(topic); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRouterClosed
	}
	sub := newSubscription(r, topic, r.config.SubscriptionBuffer)
	if r.subs[topic] == nil {
		r.subs[topic] = make(map[*Subscription]struct{})
	}
	r.subs[topic][sub] = struct{}{}
	return sub, nil
}

func (r *Router) removeSubscription(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs, ok := r.subs[sub.topic]; ok {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			sub.close()
		}
	}
}

// Topics 返回已加入的主题
func (r *Router) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.mesh.joined))
	for topic := range r.mesh.joined {
		out = append(out, topic)
	}
	return out
}

// PeersInTopic 返回宣告订阅了 topic 的对端
func (r *Router) PeersInTopic(topic string) []types.PeerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mesh.topicPeers(topic)
}

// MeshPeers 返回 topic 网格中的对端
func (r *Router) MeshPeers(topic string) []types.PeerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mesh.meshPeers(topic)
}

// AddExplicitPeer 登记显式节点，订阅了相同主题时总是接收转发
func (r *Router) AddExplicitPeer(p types.PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mesh.addExplicit(p)
}

// RemoveExplicitPeer 移除显式节点
func (r *Router) RemoveExplicitPeer(p types.PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mesh.removeExplicit(p)
}

// ============================================================================
//                              发布
// ============================================================================

// Publish 发布消息，返回消息 ID
//
// 本地发布的消息不会投递给本地订阅。
func (r *Router) Publish(ctx context.Context, topic string, data []byte) (string, error) {
	if topic == "" {
		return "", ErrEmptyTopic
	}
	if len(data) > r.config.MaxMessageSize {
		return "", ErrMessageTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrRouterClosed
	}
	if !r.mesh.isJoined(topic) {
		return "", ErrNotJoined
	}

	r.seqno++
	m := &pb.Message{
		From:  r.self.Bytes(),
		Data:  data,
		Seqno: encodeSeqno(r.seqno),
		Topic: topic,
	}
	if r.config.StrictSigning {
		if err := signMessage(r.priv, m); err != nil {
			return "", err
		}
	}
	id := r.msgID(m)
	if !r.seen.markSeen(topic, id) {
		return id, ErrDuplicateMessage
	}
	r.cache.put(id, m)

	var targets []types.PeerID
	if r.config.FloodPublish {
		targets = r.mesh.topicPeers(topic)
	} else {
		targets = r.mesh.meshPeers(topic)
	}
	targets = union(targets, r.mesh.explicitPeersIn(topic))

	out := make(outbox)
	for _, p := range targets {
		out.rpc(p).Publish = append(out.rpc(p).Publish, m)
	}
	r.flush(out)

	metrics.GossipMessage("published")
	log.Debug("已发布消息", "topic", topic, "id", shortID(id), "peers", len(targets))
	return id, nil
}

// ============================================================================
//                              入站 RPC
// ============================================================================

// handleRPC 处理一个入站 RPC，响应合并为每个对端一个 RPC
func (r *Router) handleRPC(from types.PeerID, rpc *pb.RPC) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	now := r.clock.Now()
	out := make(outbox)

	for _, sub := range rpc.Subscriptions {
		if sub.TopicID == "" {
			continue
		}
		if !sub.Subscribe {
			r.mesh.unsubscribe(from, sub.TopicID)
			continue
		}
		if r.mesh.subscribe(from, sub.TopicID, now) {
			out.control(from).Graft = append(out.control(from).Graft, &pb.ControlGraft{TopicID: sub.TopicID})
		}
	}

	for _, m := range rpc.Publish {
		r.handleMessage(from, m, out)
	}

	if ctl := rpc.Control; ctl != nil {
		r.handleIHave(from, ctl.IHave, out)
		r.handleIWant(from, ctl.IWant, out)
		for _, g := range ctl.Graft {
			if !r.mesh.handleGraft(from, g.TopicID, now) && r.mesh.isJoined(g.TopicID) {
				out.control(from).Prune = append(out.control(from).Prune, r.pruneMsg(g.TopicID))
			}
		}
		for _, p := range ctl.Prune {
			backoff := r.config.PruneBackoff
			if p.Backoff > 0 {
				backoff = secondsToDuration(p.Backoff)
			}
			r.mesh.prune(from, p.TopicID, backoff, now)
		}
	}

	r.flush(out)
}

// handleMessage 去重、校验、本地投递并转发
func (r *Router) handleMessage(from types.PeerID, m *pb.Message, out outbox) {
	if m == nil || m.Topic == "" || len(m.Data) > r.config.MaxMessageSize {
		metrics.GossipMessage("invalid")
		return
	}
	if !r.mesh.isJoined(m.Topic) {
		return
	}

	id := r.msgID(m)
	if r.seen.has(m.Topic, id) {
		metrics.GossipMessage("duplicate")
		return
	}
	if r.config.StrictSigning {
		if err := verifyMessage(m); err != nil {
			// 不标记为已见，随后到达的有效副本仍可投递
			log.Debug("丢弃签名无效的消息", "from", from.ShortString(), "topic", m.Topic, "err", err)
			metrics.GossipMessage("invalid")
			return
		}
	}
	if !r.seen.markSeen(m.Topic, id) {
		metrics.GossipMessage("duplicate")
		return
	}
	r.wants.forget(id)
	r.cache.put(id, m)
	r.deliver(id, m, from)

	origin, _ := types.PeerIDFromBytes(m.From)
	targets := union(r.mesh.meshPeers(m.Topic), r.mesh.explicitPeersIn(m.Topic))
	for _, p := range targets {
		if p == from || p == origin {
			continue
		}
		out.rpc(p).Publish = append(out.rpc(p).Publish, m)
	}
}

// deliver 投递给本地订阅和事件总线
func (r *Router) deliver(id string, m *pb.Message, from types.PeerID) {
	msg := toMessage(id, m, from)
	for sub := range r.subs[m.Topic] {
		if !sub.push(msg) {
			metrics.GossipMessage("dropped")
			log.Warn("订阅缓冲区已满，丢弃消息", "topic", m.Topic, "id", shortID(id))
		}
	}
	_ = r.emitMsg.Emit(types.EvtGossipMessage{
		BaseEvent:    types.NewBaseEvent(),
		Topic:        m.Topic,
		MessageID:    id,
		From:         msg.From,
		ReceivedFrom: from,
		Data:         m.Data,
	})
	metrics.GossipMessage("delivered")
}

func (r *Router) handleIHave(from types.PeerID, ihaves []*pb.ControlIHave, out outbox) {
	var want []string
	for _, ih := range ihaves {
		if !r.mesh.isJoined(ih.TopicID) {
			continue
		}
		for _, id := range ih.MessageIDs {
			if len(want) >= r.config.MaxIHaveLength {
				break
			}
			if r.seen.has(ih.TopicID, id) || !r.wants.want(id) {
				continue
			}
			want = append(want, id)
		}
	}
	if len(want) > 0 {
		out.control(from).IWant = append(out.control(from).IWant, &pb.ControlIWant{MessageIDs: want})
	}
}

func (r *Router) handleIWant(from types.PeerID, iwants []*pb.ControlIWant, out outbox) {
	served := 0
	for _, iw := range iwants {
		for _, id := range iw.MessageIDs {
			if served >= r.config.MaxIHaveLength {
				return
			}
			if m, ok := r.cache.get(id); ok {
				out.rpc(from).Publish = append(out.rpc(from).Publish, m)
				served++
			}
		}
	}
}

func (r *Router) pruneMsg(topic string) *pb.ControlPrune {
	return &pb.ControlPrune{TopicID: topic, Backoff: uint64(r.config.PruneBackoff.Seconds())}
}

// ============================================================================
//                              发送
// ============================================================================

// outbox 按对端聚合待发送的 RPC
type outbox map[types.PeerID]*pb.RPC

func (o outbox) rpc(p types.PeerID) *pb.RPC {
	rpc, ok := o[p]
	if !ok {
		rpc = &pb.RPC{}
		o[p] = rpc
	}
	return rpc
}

func (o outbox) control(p types.PeerID) *pb.ControlMessage {
	rpc := o.rpc(p)
	if rpc.Control == nil {
		rpc.Control = &pb.ControlMessage{}
	}
	return rpc.Control
}

// flush 投入各对端的发送队列，调用方持有 r.mu
func (r *Router) flush(out outbox) {
	for p, rpc := range out {
		if rpc.Empty() {
			continue
		}
		ps := r.ensureSender(p)
		if ps == nil {
			continue
		}
		if !ps.enqueue(rpc) {
			metrics.GossipMessage("dropped")
			log.Warn("发送队列已满，丢弃 RPC", "peer", p.ShortString())
		}
	}
}

// ensureSender 返回对端的发送器，新建时先排入本地订阅快照；调用方持有 r.mu
func (r *Router) ensureSender(p types.PeerID) *peerSender {
	if ps, ok := r.senders[p]; ok {
		return ps
	}
	if _, ok := r.unsupported[p]; ok {
		return nil
	}
	if _, ok := r.mesh.peers[p]; !ok {
		return nil
	}
	ps := newPeerSender(r, p, r.config.OutboundQueueSize)
	r.senders[p] = ps
	if hello := r.helloRPC(); hello != nil {
		ps.enqueue(hello)
	}
	r.wg.Add(1)
	go ps.run()
	return ps
}

// helloRPC 本地订阅快照
func (r *Router) helloRPC() *pb.RPC {
	if len(r.mesh.joined) == 0 {
		return nil
	}
	rpc := &pb.RPC{}
	for topic := range r.mesh.joined {
		rpc.Subscriptions = append(rpc.Subscriptions, &pb.SubOpts{Subscribe: true, TopicID: topic})
	}
	return rpc
}

// senderFailed 发送器退出后的清理
func (r *Router) senderFailed(ps *peerSender, unsupported bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.senders[ps.peer] == ps {
		delete(r.senders, ps.peer)
	}
	if unsupported {
		r.unsupported[ps.peer] = struct{}{}
		r.mesh.removePeer(ps.peer)
	}
}

// inboundFrom 对端打开了入站流，说明支持 meshsub
//
// 返回 true 时已为读循环登记 wg。
func (r *Router) inboundFrom(p types.PeerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	delete(r.unsupported, p)
	r.mesh.addPeer(p)
	r.ensureSender(p)
	r.wg.Add(1)
	return true
}

func union(a, b []types.PeerID) []types.PeerID {
	if len(b) == 0 {
		return a
	}
	seen := make(map[types.PeerID]struct{}, len(a)+len(b))
	out := make([]types.PeerID, 0, len(a)+len(b))
	for _, list := range [][]types.PeerID{a, b} {
		for _, p := range list {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

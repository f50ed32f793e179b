package gossipsub

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
	pb "github.com/dep2p/go-natpunch/pkg/lib/proto/gossipsub"
	"github.com/dep2p/go-natpunch/pkg/types"
)

// Message 投递给本地应用的消息
type Message struct {
	ID    string
	Topic string
	Data  []byte

	// From 消息发起者
	From types.PeerID
	// ReceivedFrom 转发给本节点的对端
	ReceivedFrom types.PeerID

	Seqno  uint64
	Signed bool
}

// MsgIDFn 计算消息 ID
type MsgIDFn func(m *pb.Message) string

// DefaultMsgID 默认消息 ID
//
// 签名消息为 hex(sha256(data))，未签名消息为 hex(sha256(from || data))。
func DefaultMsgID(m *pb.Message) string {
	h := sha256.New()
	if len(m.Signature) == 0 {
		h.Write(m.From)
	}
	h.Write(m.Data)
	return hex.EncodeToString(h.Sum(nil))
}

// signPrefix 签名域分隔前缀
const signPrefix = "libp2p-pubsub:"

// signingBytes 去掉 signature 与 key 后的消息编码，加前缀
func signingBytes(m *pb.Message) ([]byte, error) {
	unsigned := *m
	unsigned.Signature = nil
	unsigned.Key = nil
	data, err := unsigned.Marshal()
	if err != nil {
		return nil, err
	}
	return append([]byte(signPrefix), data...), nil
}

// signMessage 用发起者私钥签名
//
// 公钥可以从 PeerID 中取出时不随消息携带。
func signMessage(priv crypto.PrivateKey, m *pb.Message) error {
	data, err := signingBytes(m)
	if err != nil {
		return err
	}
	sig, err := priv.Sign(data)
	if err != nil {
		return err
	}
	m.Signature = sig

	from, err := types.PeerIDFromBytes(m.From)
	if err != nil {
		return err
	}
	if _, err := crypto.ExtractPublicKey(from); err != nil {
		key, err := crypto.MarshalPublicKey(priv.GetPublic())
		if err != nil {
			return err
		}
		m.Key = key
	}
	return nil
}

// verifyMessage 校验签名，且签名公钥必须对应 From
func verifyMessage(m *pb.Message) error {
	if len(m.Signature) == 0 {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}
	from, err := types.PeerIDFromBytes(m.From)
	if err != nil {
		return fmt.Errorf("%w: bad sender: %v", ErrInvalidSignature, err)
	}

	var pub crypto.PublicKey
	if len(m.Key) > 0 {
		pub, err = crypto.UnmarshalPublicKey(m.Key)
		if err != nil {
			return fmt.Errorf("%w: bad key: %v", ErrInvalidSignature, err)
		}
		if !crypto.VerifyPeerID(pub, from) {
			return fmt.Errorf("%w: key does not match sender", ErrInvalidSignature)
		}
	} else {
		pub, err = crypto.ExtractPublicKey(from)
		if err != nil {
			return fmt.Errorf("%w: no key for sender: %v", ErrInvalidSignature, err)
		}
	}

	data, err := signingBytes(m)
	if err != nil {
		return err
	}
	ok, err := pub.Verify(data, m.Signature)
	if err != nil || !ok {
		return fmt.Errorf("%w: verification failed", ErrInvalidSignature)
	}
	return nil
}

func encodeSeqno(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func decodeSeqno(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// toMessage 转换为本地投递格式
func toMessage(id string, m *pb.Message, receivedFrom types.PeerID) *Message {
	from, _ := types.PeerIDFromBytes(m.From)
	return &Message{
		ID:           id,
		Topic:        m.Topic,
		Data:         m.Data,
		From:         from,
		ReceivedFrom: receivedFrom,
		Seqno:        decodeSeqno(m.Seqno),
		Signed:       len(m.Signature) > 0,
	}
}

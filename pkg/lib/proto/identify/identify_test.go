package identify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-natpunch/pkg/lib/proto"
)

func TestIdentifyDelimited(t *testing.T) {
	in := &Identify{
		PublicKey:       []byte{8, 1, 18, 1, 7},
		ListenAddrs:     [][]byte{{4, 127, 0, 0, 1}, {4, 10, 0, 0, 1}},
		Protocols:       []string{"/ipfs/id/1.0.0", "/libp2p/dcutr"},
		ObservedAddr:    []byte{4, 1, 2, 3, 4},
		ProtocolVersion: "/chat/0.0.1",
		AgentVersion:    "go-natpunch",
	}
	var buf bytes.Buffer
	require.NoError(t, proto.WriteDelimited(&buf, in))
	buf.WriteString("trailing")

	var out Identify
	require.NoError(t, proto.ReadDelimited(&buf, 4096, &out))
	assert.Equal(t, in, &out)
	// 不越过消息边界
	assert.Equal(t, "trailing", buf.String())
}

func TestIdentifySkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 7, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)
	b = protowire.AppendTag(b, 8, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("record"))
	b = protowire.AppendTag(b, fieldAgentVersion, protowire.BytesType)
	b = protowire.AppendString(b, "agent")

	var m Identify
	require.NoError(t, m.Unmarshal(b))
	assert.Equal(t, "agent", m.AgentVersion)
	assert.Empty(t, m.ListenAddrs)
}

func TestIdentifyTooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, proto.WriteDelimited(&buf, &Identify{AgentVersion: string(make([]byte, 100))}))
	var out Identify
	assert.Error(t, proto.ReadDelimited(&buf, 16, &out))
}

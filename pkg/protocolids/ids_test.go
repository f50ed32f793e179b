package protocolids

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProtocolIDsWellFormed(t *testing.T) {
	all := append(System(), RelayHop, Meshsub, MeshsubV10, Noise, Yamux)
	seen := make(map[string]bool)
	for _, id := range all {
		s := string(id)
		assert.True(t, strings.HasPrefix(s, "/"), s)
		assert.False(t, strings.ContainsAny(s, " \n"), s)
		assert.False(t, seen[s], "duplicate %s", s)
		seen[s] = true
	}
}

func TestIsRelay(t *testing.T) {
	assert.True(t, IsRelay(RelayHop))
	assert.True(t, IsRelay(RelayStop))
	assert.False(t, IsRelay(DCUtR))
}

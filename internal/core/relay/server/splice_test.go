package server

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyLimited(t *testing.T) {
	cases := []struct {
		name    string
		limit   uint64
		input   string
		want    string
		limited bool
	}{
		{"unlimited", 0, "0123456789", "0123456789", false},
		{"under limit", 16, "0123456789", "0123456789", false},
		{"exact limit", 10, "0123456789", "0123456789", false},
		{"over limit", 4, "0123456789", "0123", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &Server{config: Config{CircuitData: tc.limit}}
			var out bytes.Buffer
			n, limited, err := s.copyLimited(&out, strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, int64(len(tc.want)), n)
			assert.Equal(t, tc.want, out.String())
			assert.Equal(t, tc.limited, limited)
		})
	}
}

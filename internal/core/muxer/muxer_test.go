package muxer

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgif "github.com/dep2p/go-natpunch/pkg/interfaces"
)

func sessionPair(t *testing.T) (client, server pkgif.MuxedConn) {
	t.Helper()
	tr := NewTransport(nil)
	c, s := net.Pipe()

	var err error
	client, err = tr.NewConn(c, false)
	require.NoError(t, err)
	server, err = tr.NewConn(s, true)
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func TestOpenAcceptEcho(t *testing.T) {
	client, server := sessionPair(t)

	go func() {
		s, err := server.AcceptStream()
		if err != nil {
			return
		}
		defer s.Close()
		_, _ = io.Copy(s, s)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := client.OpenStream(ctx)
	require.NoError(t, err)

	_, err = s.Write([]byte("ping"))
	require.NoError(t, err)
	require.NoError(t, s.CloseWrite())

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(got))
}

func TestResetMapsError(t *testing.T) {
	client, server := sessionPair(t)

	accepted := make(chan pkgif.MuxedStream, 1)
	go func() {
		s, err := server.AcceptStream()
		if err == nil {
			accepted <- s
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := client.OpenStream(ctx)
	require.NoError(t, err)
	_, err = s.Write([]byte("x"))
	require.NoError(t, err)

	remote := <-accepted
	require.NoError(t, remote.Reset())

	require.NoError(t, s.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = io.ReadAll(s)
	assert.ErrorIs(t, err, ErrStreamReset)
}

func TestCloseSession(t *testing.T) {
	client, server := sessionPair(t)
	require.NoError(t, client.Close())
	assert.True(t, client.IsClosed())

	_, err := client.OpenStream(context.Background())
	assert.ErrorIs(t, err, ErrConnClosed)

	_, err = server.AcceptStream()
	assert.Error(t, err)
}

func TestParseError(t *testing.T) {
	assert.NoError(t, parseError(nil))
	other := io.ErrUnexpectedEOF
	assert.Equal(t, other, parseError(other))
}

func TestID(t *testing.T) {
	assert.Equal(t, "/yamux/1.0.0", NewTransport(nil).ID())
}

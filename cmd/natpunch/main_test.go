package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natpunch/config"
	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
)

func peerID(t *testing.T, seed uint8) string {
	t.Helper()
	id, err := crypto.IDFromPrivateKey(crypto.KeyPairFromSeedByte(seed))
	require.NoError(t, err)
	return id.String()
}

func parse(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags(args))
	var f flags
	fs := cmd.Flags()
	f.configFile, _ = fs.GetString("config")
	f.preset, _ = fs.GetString("preset")
	f.mode, _ = fs.GetString("mode")
	f.seed, _ = fs.GetUint8("secret-key-seed")
	f.relayAddress, _ = fs.GetString("relay-address")
	f.remotePeerID, _ = fs.GetString("remote-peer-id")
	f.topic, _ = fs.GetString("topic")
	f.metricsAddr, _ = fs.GetString("metrics-addr")
	return buildConfig(cmd, f)
}

func TestBuildConfig_Flags(t *testing.T) {
	relay := "/ip4/127.0.0.1/tcp/4001/p2p/" + peerID(t, 1)
	cfg, err := parse(t,
		"--mode", "dial",
		"--secret-key-seed", "3",
		"--relay-address", relay,
		"--remote-peer-id", peerID(t, 2),
		"--topic", "room1")
	require.NoError(t, err)
	assert.Equal(t, config.ModeDial, cfg.Mode)
	require.NotNil(t, cfg.Identity.SecretKeySeed)
	assert.Equal(t, uint8(3), *cfg.Identity.SecretKeySeed)
	assert.Equal(t, relay, cfg.Relay.Address)
	assert.Equal(t, "room1", cfg.Gossip.Topic)
}

func TestBuildConfig_Errors(t *testing.T) {
	_, err := parse(t)
	assert.Error(t, err, "mode is required")

	_, err = parse(t, "--mode", "listen")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = parse(t, "--mode", "bridge")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = parse(t, "--mode", "listen", "--preset", "mobile")
	assert.Error(t, err)
}

func TestBuildConfig_FileThenFlags(t *testing.T) {
	relay := "/ip4/127.0.0.1/tcp/4001/p2p/" + peerID(t, 1)
	path := filepath.Join(t.TempDir(), "node.toml")
	data := "mode = \"listen\"\n\n[relay]\naddress = \"" + relay + "\"\n\n[gossip]\ntopic = \"from-file\"\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := parse(t, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, config.ModeListen, cfg.Mode)
	assert.Equal(t, "from-file", cfg.Gossip.Topic)

	cfg, err = parse(t, "--config", path, "--topic", "override")
	require.NoError(t, err)
	assert.Equal(t, "override", cfg.Gossip.Topic)
}

func TestBuildConfig_PresetUnderFile(t *testing.T) {
	relay := "/ip4/127.0.0.1/tcp/4001/p2p/" + peerID(t, 1)
	path := filepath.Join(t.TempDir(), "node.toml")
	data := "mode = \"listen\"\n\n[relay]\naddress = \"" + relay + "\"\n\n[holepunch]\nmax_attempts = 7\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := parse(t, "--preset", "local", "--config", path)
	require.NoError(t, err)

	// 文件未写的字段保留预设值
	assert.Equal(t, []string{"/ip4/127.0.0.1/tcp/0"}, cfg.Transport.ListenAddrs)
	assert.True(t, cfg.HolePunch.AllowPrivateAddrs)
	assert.Zero(t, cfg.Transport.ListenSettle)
	// 文件覆盖预设与默认值
	assert.Equal(t, 7, cfg.HolePunch.MaxAttempts)
	assert.Equal(t, relay, cfg.Relay.Address)
}

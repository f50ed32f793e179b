package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natpunch/pkg/lib/crypto"
)

func peerIDFromSeed(t *testing.T, seed uint8) string {
	t.Helper()
	id, err := crypto.IDFromPrivateKey(crypto.KeyPairFromSeedByte(seed))
	require.NoError(t, err)
	return id.String()
}

func relayAddr(t *testing.T) string {
	return "/ip4/127.0.0.1/tcp/4001/p2p/" + peerIDFromSeed(t, 1)
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeNone, cfg.Mode)
	assert.Equal(t, DefaultTopic, cfg.Gossip.Topic)
	assert.Equal(t, 10*time.Second, cfg.Gossip.HeartbeatInterval.Duration())
	assert.True(t, cfg.Gossip.StrictSigning)
	assert.True(t, cfg.Transport.ReusePort)
}

func TestConfig_ModeRequirements(t *testing.T) {
	cfg := NewConfig()
	cfg.Mode = ModeListen
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "relay.address", fe.Field)

	cfg.Relay.Address = relayAddr(t)
	require.NoError(t, cfg.Validate())

	cfg.Mode = ModeDial
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg.RemotePeerID = "not-a-peer"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg.RemotePeerID = peerIDFromSeed(t, 2)
	require.NoError(t, cfg.Validate())
	id, err := cfg.RemotePeer()
	require.NoError(t, err)
	assert.Equal(t, cfg.RemotePeerID, id.String())

	cfg.Mode = "bridge"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Dial ")
	require.NoError(t, err)
	assert.Equal(t, ModeDial, m)

	m, err = ParseMode("listen")
	require.NoError(t, err)
	assert.Equal(t, ModeListen, m)

	_, err = ParseMode("relay")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRelayConfig_AddrInfo(t *testing.T) {
	cfg := DefaultRelayConfig()
	cfg.Address = relayAddr(t)
	info, err := cfg.AddrInfo()
	require.NoError(t, err)
	assert.Equal(t, peerIDFromSeed(t, 1), info.ID.String())
	require.Len(t, info.Addrs, 1)
	assert.Equal(t, "/ip4/127.0.0.1/tcp/4001", info.Addrs[0].String())

	cfg.Address = "/ip4/127.0.0.1/tcp/4001"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestSubConfigValidation(t *testing.T) {
	cfg := NewConfig()
	cfg.HolePunch.MaxAttempts = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = NewConfig()
	cfg.Gossip.Dlo = 10
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = NewConfig()
	cfg.Transport.ListenAddrs = []string{"tcp://bad"}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = NewConfig()
	cfg.Relay.Server.Enable = true
	cfg.Relay.Server.MaxCircuits = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = NewConfig()
	cfg.Identify.Timeout = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = NewConfig()
	cfg.Transport.PingInterval = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	cfg.Transport.PingInterval = 0
	assert.NoError(t, cfg.Validate())

	assert.ErrorIs(t, ValidateAll(nil), ErrInvalidConfig)
	assert.Panics(t, func() { MustValidate(nil) })
}

func TestDuration_JSONAndText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.NoError(t, d.UnmarshalJSON([]byte(`1000000`)))
	assert.Equal(t, time.Millisecond, d.Duration())

	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	out, err := Duration(5 * time.Second).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"5s"`, string(out))
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.toml")
	data := `
mode = "dial"
remote_peer_id = "` + peerIDFromSeed(t, 2) + `"

[identity]
secret_key_seed = 1

[relay]
address = "` + relayAddr(t) + `"

[holepunch]
punch_timeout = "3s"
allow_private_addrs = true

[gossip]
topic = "room1"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeDial, cfg.Mode)
	require.NotNil(t, cfg.Identity.SecretKeySeed)
	assert.Equal(t, uint8(1), *cfg.Identity.SecretKeySeed)
	assert.Equal(t, 3*time.Second, cfg.HolePunch.PunchTimeout.Duration())
	assert.True(t, cfg.HolePunch.AllowPrivateAddrs)
	assert.Equal(t, "room1", cfg.Gossip.Topic)
	// 未出现的字段保留默认值
	assert.Equal(t, 3, cfg.HolePunch.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Gossip.HeartbeatInterval.Duration())
}

func TestLoadInto_KeepsBase(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "node.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[gossip]\ntopic = \"room1\"\n"), 0o600))
	jsonPath := filepath.Join(dir, "node.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"gossip":{"topic":"room2"}}`), 0o600))

	for path, topic := range map[string]string{tomlPath: "room1", jsonPath: "room2"} {
		base := NewConfig()
		base.HolePunch.MaxAttempts = 9
		base.Transport.ListenAddrs = []string{"/ip4/127.0.0.1/tcp/0"}
		require.NoError(t, LoadInto(path, base))
		assert.Equal(t, topic, base.Gossip.Topic)
		assert.Equal(t, 9, base.HolePunch.MaxAttempts)
		assert.Equal(t, []string{"/ip4/127.0.0.1/tcp/0"}, base.Transport.ListenAddrs)
	}

	assert.Error(t, LoadInto(filepath.Join(dir, "missing.toml"), NewConfig()))
}

func TestLoad_TOMLUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.toml")
	require.NoError(t, os.WriteFile(path, []byte("[gossip]\ntopics = \"x\"\n"), 0o600))
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.json")
	data := `{"mode":"listen","relay":{"address":"` + relayAddr(t) + `"},"transport":{"listen_settle":"250ms"}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeListen, cfg.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Transport.ListenSettle.Duration())
	assert.NotEmpty(t, cfg.Transport.ListenAddrs)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestConfig_RoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Mode = ModeListen
	cfg.Relay.Address = relayAddr(t)
	cfg.Identity = cfg.Identity.WithSeed(9)

	data, err := cfg.ToTOML()
	require.NoError(t, err)
	back, err := FromTOML(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)

	data, err = cfg.ToJSON()
	require.NoError(t, err)
	back, err = FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestIdentityConfig_PrivateKey(t *testing.T) {
	a, err := DefaultIdentityConfig().WithSeed(3).PrivateKey()
	require.NoError(t, err)
	b, err := DefaultIdentityConfig().WithSeed(3).PrivateKey()
	require.NoError(t, err)
	assert.True(t, crypto.KeyEqual(a, b))

	r1, err := DefaultIdentityConfig().PrivateKey()
	require.NoError(t, err)
	r2, err := DefaultIdentityConfig().PrivateKey()
	require.NoError(t, err)
	assert.False(t, crypto.KeyEqual(r1, r2))
}

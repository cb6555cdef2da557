package types

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T, cfgFile string) (*Config, error) {
	v, err := NewViper(cfgFile)
	require.NoError(t, err)
	return NewConfig(v)
}

func TestConfigDefaults(t *testing.T) {
	c, err := loadConfig(t, "")
	require.NoError(t, err)
	require.Equal(t, "mainnet", c.Network)
	require.EqualValues(t, 11649024, c.ElectraSlot)
	require.EqualValues(t, 12, c.SecondsPerSlot)
	require.Equal(t, 30*time.Second, c.FetchTimeout)
	require.Equal(t, 10, c.HistoryLimit)
	fv, err := c.ForkVersion()
	require.NoError(t, err)
	require.Equal(t, [4]byte{}, fv)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("VAULT_PROOFS_NETWORK", "Hoodi")
	t.Setenv("VAULT_PROOFS_FETCH_TIMEOUT", "5s")

	c, err := loadConfig(t, "")
	require.NoError(t, err)
	require.Equal(t, "hoodi", c.Network)
	require.EqualValues(t, 65536, c.ElectraSlot)
	require.Equal(t, 5*time.Second, c.FetchTimeout)
	fv, err := c.ForkVersion()
	require.NoError(t, err)
	require.Equal(t, [4]byte{0x10, 0x00, 0x09, 0x10}, fv)
	require.EqualValues(t, 65536, c.Schedule().ElectraSlot)

	t.Setenv("VAULT_PROOFS_ELECTRA_SLOT", "42")
	c, err = loadConfig(t, "")
	require.NoError(t, err)
	require.EqualValues(t, 42, c.ElectraSlot)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
network: hoodi
consensus-url: http://beacon:5052
gateway-url: http://ipfs:8080/ipfs
history-limit: 3
log-level: debug
`), 0o644))

	c, err := loadConfig(t, path)
	require.NoError(t, err)
	require.Equal(t, "http://beacon:5052", c.ConsensusURL)
	require.Equal(t, "http://ipfs:8080/ipfs", c.GatewayURL)
	require.Equal(t, 3, c.HistoryLimit)
	require.Equal(t, "debug", c.LogLevel)
	require.EqualValues(t, 65536, c.ElectraSlot)
}

func TestConfigInvalid(t *testing.T) {
	t.Setenv("VAULT_PROOFS_NETWORK", "sepolia")
	_, err := loadConfig(t, "")
	require.Error(t, err)

	t.Setenv("VAULT_PROOFS_NETWORK", "mainnet")
	t.Setenv("VAULT_PROOFS_GENESIS_FORK_VERSION", "0x0102")
	_, err = loadConfig(t, "")
	require.Error(t, err)

	_, err = NewViper(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

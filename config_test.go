package federate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(3, "fed-test")
	require.Equal(t, FedID(3), cfg.FedID)
	require.Equal(t, "fed-test", cfg.FederationID)
	require.Equal(t, DefaultStartingPort, cfg.StartingPort)
	require.Equal(t, DefaultPortRangeLimit, cfg.PortRangeLimit)
	require.Equal(t, DefaultConnectRetryInterval, cfg.ConnectRetryInterval)
	require.Equal(t, DefaultAddressQueryRetryInterval, cfg.AddressQueryRetryInterval)
	require.False(t, cfg.HasUpstream)
	require.False(t, cfg.HasDownstream)
}

func TestLoadConfigAppliesDefaultsForZeroFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "federation.toml")
	body := `
fed_id = 2
federation_id = "fed-test"
rti_host = "127.0.0.1"
has_upstream = true
connect_retry_interval_millis = 5000
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, FedID(2), cfg.FedID)
	require.True(t, cfg.HasUpstream)
	require.Equal(t, 5*time.Second, cfg.ConnectRetryInterval)
	require.Equal(t, DefaultAddressQueryRetryInterval, cfg.AddressQueryRetryInterval)
	require.Equal(t, DefaultStartingPort, cfg.StartingPort)
	require.Equal(t, DefaultPortRangeLimit, cfg.PortRangeLimit)
	require.Equal(t, DefaultConnectNumRetries, cfg.ConnectNumRetries)
	require.Equal(t, DefaultBufferSize, cfg.BufferSize)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}

func TestLoadConfigRejectsEmptyFederationID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "federation.toml")
	require.NoError(t, os.WriteFile(path, []byte("fed_id = 1\n"), 0o600))

	_, err := LoadConfig(path)
	require.ErrorIs(t, err, ErrFederationIDEmpty)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.FileExists(t, cfg.GovernanceKeystorePath)

	require.Equal(t, ":8645", cfg.RPCAddress)
	require.Equal(t, "wasabix-local", cfg.NetworkName)
	require.Equal(t, "DAI", cfg.Protocol.BaseToken)
	require.Equal(t, uint64(50), cfg.Protocol.TransmutationPeriod)

	// The fresh keystore address becomes the genesis governance.
	gov, err := ParseAddress(cfg.Protocol.Governance)
	require.NoError(t, err)
	require.False(t, gov.IsZero())

	// A second load reuses the persisted file and keystore.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Protocol.Governance, again.Protocol.Governance)
}

func TestLoadExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
RPCAddress = ":9999"
DataDir = "/tmp/wasabix"

[protocol]
BaseToken = "USDT"
MintFeeBps = 25
TransmutationPeriod = 100
CollateralizationLimit = "3000000000000000000"
RewardTokens = ["USDC"]
RewardVesting = [false]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.RPCAddress)
	require.Equal(t, "/tmp/wasabix", cfg.DataDir)
	require.Equal(t, "USDT", cfg.Protocol.BaseToken)
	require.Equal(t, uint64(25), cfg.Protocol.MintFeeBps)
	require.Equal(t, uint64(100), cfg.Protocol.TransmutationPeriod)
	require.Equal(t, []string{"USDC"}, cfg.Protocol.RewardTokens)

	// Unset fields fall back to defaults.
	require.Equal(t, ":9090", cfg.MetricsAddress)
	require.Equal(t, "WASABI", cfg.Protocol.WasabiToken)
}

func TestValidateRejectsBadParams(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	cfg := base()
	cfg.Protocol.MintFeeBps = 10_001
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Protocol.CollateralizationLimit = "100"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Protocol.TransmutationPeriod = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Protocol.RewardTokens = []string{"USDC"}
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Protocol.Governance = "not-an-address"
	require.Error(t, cfg.Validate())

	require.NoError(t, base().Validate())
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("")
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = ParseAmount("2000000000000000000")
	require.NoError(t, err)
	require.Equal(t, "2000000000000000000", v.String())

	_, err = ParseAmount("1.5")
	require.Error(t, err)

	_, err = ParseAmount("-4")
	require.Error(t, err)
}

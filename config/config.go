package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"wasabix/crypto"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration loaded from TOML.
type Config struct {
	RPCAddress             string `toml:"RPCAddress"`
	MetricsAddress         string `toml:"MetricsAddress"`
	DataDir                string `toml:"DataDir"`
	NetworkName            string `toml:"NetworkName"`
	GovernanceKeystorePath string `toml:"GovernanceKeystorePath"`

	Log       Log       `toml:"log"`
	Telemetry Telemetry `toml:"telemetry"`
	Protocol  Protocol  `toml:"protocol"`
}

// Load reads the configuration from the given path, writing a default file
// with a fresh governance keystore when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8645"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = ":9090"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./wasabix-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "wasabix-local"
	}
	p := &cfg.Protocol
	if strings.TrimSpace(p.BaseToken) == "" {
		p.BaseToken = "DAI"
	}
	if strings.TrimSpace(p.WasabiToken) == "" {
		p.WasabiToken = "WASABI"
	}
	if strings.TrimSpace(p.AdapterID) == "" {
		p.AdapterID = "idle"
	}
	if strings.TrimSpace(p.CollateralizationLimit) == "" {
		// 200% expressed as a 1e18-scaled ratio.
		p.CollateralizationLimit = "2000000000000000000"
	}
	if p.TransmutationPeriod == 0 {
		p.TransmutationPeriod = 50
	}
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.GovernanceKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
		if strings.TrimSpace(cfg.Protocol.Governance) == "" {
			cfg.Protocol.Governance = key.PubKey().Address().String()
		}
	} else if err != nil {
		return err
	}

	if cfg.GovernanceKeystorePath != keystorePath {
		cfg.GovernanceKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file together with
// a governance keystore whose address becomes the genesis governance.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{GovernanceKeystorePath: keystorePath}
	applyDefaults(cfg)
	cfg.Protocol.Governance = key.PubKey().Address().String()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "governance.keystore")
}

// ParseAmount converts a decimal string into a wei value. Empty strings
// return nil so callers can distinguish "unset" from zero.
func ParseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", raw)
	}
	return value, nil
}

// ParseAddress decodes a bech32 account address. Empty strings return the
// zero address.
func ParseAddress(raw string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return crypto.Address{}, nil
	}
	return crypto.DecodeAddress(trimmed)
}

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/norm"

	"stakevault/crypto"
	"stakevault/native/vault"
	"stakevault/storage"
)

// Config describes the vault node: where state lives and how the vault is
// bootstrapped.
type Config struct {
	DataDir   string `toml:"DataDir"`
	DBBackend string `toml:"DBBackend"`
	AssetID   string `toml:"AssetID"`
	// Admin, when set, initializes the vault on first start.
	Admin                string   `toml:"Admin"`
	CustodySeed          string   `toml:"CustodySeed"`
	VestingPeriodSeconds uint64   `toml:"VestingPeriodSeconds"`
	PausedModules        []string `toml:"PausedModules"`
}

const (
	defaultDataDir     = "./vault-data"
	defaultAsset       = "STK"
	defaultCustodySeed = "stakevault/custody"
)

// Load loads the configuration from the given path, writing defaults when the
// file does not exist yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.DBBackend) == "" {
		c.DBBackend = storage.BackendLevelDB
	}
	c.DBBackend = strings.ToLower(strings.TrimSpace(c.DBBackend))
	if strings.TrimSpace(c.AssetID) == "" {
		c.AssetID = defaultAsset
	}
	c.AssetID = strings.ToUpper(norm.NFKC.String(strings.TrimSpace(c.AssetID)))
	if strings.TrimSpace(c.CustodySeed) == "" {
		c.CustodySeed = defaultCustodySeed
	}
	if c.VestingPeriodSeconds == 0 {
		c.VestingPeriodSeconds = vault.DefaultVestingPeriod
	}
	if c.PausedModules == nil {
		c.PausedModules = []string{}
	}
}

// AdminAddress decodes the bootstrap admin. ok is false when none is set.
func (c *Config) AdminAddress() (addr crypto.Address, ok bool, err error) {
	trimmed := strings.TrimSpace(c.Admin)
	if trimmed == "" {
		return crypto.Address{}, false, nil
	}
	addr, err = crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, false, err
	}
	return addr, true, nil
}

// CustodyAddress is the module account that holds pooled funds.
func (c *Config) CustodyAddress() crypto.Address {
	return crypto.ModuleAddress(c.CustodySeed)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
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

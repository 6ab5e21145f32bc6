package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stakevault/crypto"
	"stakevault/native/vault"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vault.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.VestingPeriodSeconds != vault.DefaultVestingPeriod {
		t.Fatalf("vesting period = %d, want %d", cfg.VestingPeriodSeconds, vault.DefaultVestingPeriod)
	}
	if cfg.DBBackend != "leveldb" || cfg.AssetID != "STK" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.CustodyAddress() != cfg.CustodyAddress() {
		t.Fatalf("custody address changed across reloads")
	}
}

func TestLoadParsesVaultSettings(t *testing.T) {
	admin := crypto.ModuleAddress("admin-key")
	path := filepath.Join(t.TempDir(), "vault.toml")
	contents := `DataDir = "/var/lib/vault"
DBBackend = "Bolt"
AssetID = " ｓｔｋ "
Admin = "` + admin.String() + `"
CustodySeed = "mainnet"
VestingPeriodSeconds = 600
PausedModules = ["vault"]
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBBackend != "bolt" || cfg.VestingPeriodSeconds != 600 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	// Full-width letters fold to ASCII under NFKC.
	if cfg.AssetID != "STK" {
		t.Fatalf("asset = %q, want STK", cfg.AssetID)
	}
	got, ok, err := cfg.AdminAddress()
	if err != nil || !ok || !got.Equal(admin) {
		t.Fatalf("admin = %v ok=%v err=%v", got, ok, err)
	}
	if cfg.CustodyAddress() != crypto.ModuleAddress("mainnet") {
		t.Fatalf("custody not derived from seed")
	}
	if len(cfg.PausedModules) != 1 || cfg.PausedModules[0] != "vault" {
		t.Fatalf("paused modules = %v", cfg.PausedModules)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"backend": `DBBackend = "rocksdb"`,
		"admin":   `Admin = "not-an-address"`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "vault.toml")
			if err := os.WriteFile(path, []byte(body+"\n"), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), "config:") {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}

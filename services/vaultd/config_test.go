package vaultd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vaultd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  hmac_secret: "`+testSecret+`"
  clock_skew: 30s
faucet:
  enabled: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":8480", cfg.ListenAddress)
	require.Equal(t, ":8481", cfg.GRPCListenAddress)
	require.Equal(t, 30*time.Second, cfg.Auth.ClockSkew.Duration)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout.Duration)
	require.Equal(t, 20, cfg.RateLimit.Burst)
	require.Equal(t, uint64(1_000_000), cfg.Faucet.MaxAmount)
	require.Empty(t, cfg.Audit.DSN)
}

func TestLoadConfigReadsSecretsFromEnv(t *testing.T) {
	t.Setenv("VAULTD_TEST_SECRET", testSecret)
	t.Setenv("VAULTD_TEST_DSN", "postgres://vault@localhost/audit")
	path := writeConfig(t, `
listen: ":9000"
grpc_listen: ":9001"
auth:
  hmac_secret_env: VAULTD_TEST_SECRET
audit:
  dsn_env: VAULTD_TEST_DSN
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, testSecret, cfg.Auth.HMACSecret)
	require.Equal(t, "postgres://vault@localhost/audit", cfg.Audit.DSN)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing secret": "listen: \":9000\"\n",
		"short secret":   "auth:\n  hmac_secret: short\n",
		"same ports":     "listen: \":1\"\ngrpc_listen: \":1\"\nauth:\n  hmac_secret: \"" + testSecret + "\"\n",
		"bad duration":   "shutdown_timeout: soon\n",
		"unknown field":  "listne: \":1\"\n",
		"sample ratio":   "observability:\n  sample_ratio: 1.5\nauth:\n  hmac_secret: \"" + testSecret + "\"\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, contents))
			require.Error(t, err)
		})
	}
}

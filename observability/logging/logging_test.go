package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupEmitsRenamedKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := setup(&buf, "vaultd", "test", slog.LevelInfo)
	logger.Info("started", MaskField("token", "secret"), MaskField("operation", "deposit_stake"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "started", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "vaultd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, RedactedValue, line["token"])
	require.Equal(t, "deposit_stake", line["operation"])
	require.Contains(t, line, "timestamp")
}

func TestSetupFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := setup(&buf, "vaultd", "", ParseLevel("warn"))
	logger.Info("hidden")
	require.Zero(t, buf.Len())
	logger.Warn("shown")
	require.NotZero(t, buf.Len())
}

func TestSetupWithFileWritesRotatedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaultd.log")
	logger := SetupWithOptions("vaultd", "", Options{File: path})
	logger.Info("to file")
	require.FileExists(t, path)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestHandlerMasksCredentialKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := setup(&buf, "vaultd", "", slog.LevelInfo)
	logger.Info("configured",
		"hmac_secret", "0123456789abcdef",
		"audit_dsn", "postgres://vault:pw@db/audit",
		"Authorization", "Bearer abc",
		"empty_token", "",
		"caller", "stake1xyz",
	)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, RedactedValue, line["hmac_secret"])
	require.Equal(t, RedactedValue, line["audit_dsn"])
	require.Equal(t, RedactedValue, line["Authorization"])
	require.Equal(t, "", line["empty_token"])
	require.Equal(t, "stake1xyz", line["caller"])
}

func TestAllowlistHasNoCredentialKeys(t *testing.T) {
	for _, key := range RedactionAllowlist() {
		require.False(t, IsSensitive(key), key)
	}
	require.True(t, IsAllowlisted(" Operation "))
	require.False(t, IsAllowlisted("dsn"))
}

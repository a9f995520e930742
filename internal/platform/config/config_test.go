package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, LedgerSQLite, cfg.LedgerDriver)
	assert.Equal(t, "./data/clinic.db", cfg.LedgerDSN)
	assert.False(t, cfg.RedisEnabled)
	assert.Equal(t, 2*time.Second, cfg.SnapshotInterval)
	assert.Equal(t, ProfileDefault, cfg.Profile)
	require.NotNil(t, cfg.Tuning)
	assert.Equal(t, 1024, cfg.Tuning.EventQueue)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"CLINIC_ADDR":         "127.0.0.1:9000",
		"LEDGER_DRIVER":       "Postgres",
		"LEDGER_DSN":          "postgres://clinic@db/clinic",
		"REDIS_ENABLED":       "true",
		"REDIS_DB":            "3",
		"SNAPSHOT_INTERVAL":   "500ms",
		"TUNING_PROFILE":      "low",
		"CLINIC_CONTENT_FILE": "/etc/clinic/hard.yaml",
	}))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, LedgerPostgres, cfg.LedgerDriver)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 500*time.Millisecond, cfg.SnapshotInterval)
	assert.Equal(t, 4, cfg.Tuning.MaxClients)
	assert.Equal(t, "/etc/clinic/hard.yaml", cfg.ContentFile)
}

func TestFromEnvCollectsErrors(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{
		"REDIS_DB":          "two",
		"SNAPSHOT_INTERVAL": "soon",
		"LEDGER_DRIVER":     "mongo",
		"TUNING_PROFILE":    "turbo",
	}))
	require.Error(t, err)
	for _, key := range []string{"REDIS_DB", "SNAPSHOT_INTERVAL", "LEDGER_DRIVER", "TUNING_PROFILE"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoadFileReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinic.env")
	require.NoError(t, os.WriteFile(path, []byte("CLINIC_TEST_ONLY_ADDR=:7070\nTUNING_PROFILE=stress\n"), 0o600))
	t.Setenv("CLINIC_TEST_ONLY_ADDR", "")
	t.Setenv("TUNING_PROFILE", "")
	os.Unsetenv("CLINIC_TEST_ONLY_ADDR")
	os.Unsetenv("TUNING_PROFILE")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", os.Getenv("CLINIC_TEST_ONLY_ADDR"))
	assert.Equal(t, ProfileStress, cfg.Profile)
	assert.Equal(t, 200, cfg.Tuning.MaxMessagesPerSecond)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestProfiles(t *testing.T) {
	for _, name := range []string{ProfileDefault, ProfileStress, ProfileLow, ""} {
		tun, err := ProfileTuning(name)
		require.NoError(t, err, name)
		assert.Positive(t, tun.TickResolution)
		assert.Positive(t, tun.ClientSendBuffer)
	}
}

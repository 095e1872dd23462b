package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitverify/internal/services/distributor"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"CONFIG_FILE", "APP_ENV", "LISTEN_ADDR", "LOG_LEVEL", "TAX_RATE",
		"INGEST_WORKERS", "INGEST_POLL_INTERVAL", "INGEST_TIMEOUT",
		"MAX_UPLOAD_BYTES", "MAX_ROWS", "UPLOAD_RATE_PER_MINUTE", "UPLOAD_BURST",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, 0.25, cfg.TaxRate)
	assert.Equal(t, 250*time.Millisecond, cfg.IngestPollInterval.Duration)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("TAX_RATE", "0.3")
	t.Setenv("INGEST_WORKERS", "4")
	t.Setenv("INGEST_TIMEOUT", "5s")
	t.Setenv("UPLOAD_BURST", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 0.3, cfg.TaxRate)
	assert.Equal(t, 4, cfg.IngestWorkers)
	assert.Equal(t, 5*time.Second, cfg.IngestTimeout.Duration)
	assert.Equal(t, 10, cfg.UploadBurst, "unparseable values keep the default")
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "splitverify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: production
log_level: warn
tax_rate: 0.2
ingest_poll_interval: 1s
max_rows: 50
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0.2, cfg.TaxRate)
	assert.Equal(t, time.Second, cfg.IngestPollInterval.Duration)
	assert.Equal(t, 50, cfg.MaxRows)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ingest_timeout: soon\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	_, err = Load()
	assert.ErrorContains(t, err, "soon")
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.TaxRate = 1.5
	cfg.IngestWorkers = -1
	cfg.MaxUploadBytes = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "tax_rate")
	assert.ErrorContains(t, err, "ingest_workers")
	assert.ErrorContains(t, err, "max_upload_bytes")

	assert.NoError(t, Defaults().Validate())
}

func TestLoadRejectsNaNTaxRate(t *testing.T) {
	clearEnv(t)
	t.Setenv("TAX_RATE", "NaN")
	_, err := Load()
	assert.ErrorIs(t, err, distributor.ErrInvalidTaxRate)
}

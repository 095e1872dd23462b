package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"splitverify/internal/services/distributor"
)

type Config struct {
	Env                 string   `yaml:"env"`
	ListenAddr          string   `yaml:"listen_addr"`
	LogLevel            string   `yaml:"log_level"`
	TaxRate             float64  `yaml:"tax_rate"`
	IngestWorkers       int      `yaml:"ingest_workers"`
	IngestPollInterval  Duration `yaml:"ingest_poll_interval"`
	IngestTimeout       Duration `yaml:"ingest_timeout"`
	MaxUploadBytes      int64    `yaml:"max_upload_bytes"`
	MaxRows             int      `yaml:"max_rows"`
	UploadRatePerMinute float64  `yaml:"upload_rate_per_minute"`
	UploadBurst         int      `yaml:"upload_burst"`
}

// Duration wraps time.Duration to support YAML strings like "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a string")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

func Defaults() Config {
	return Config{
		Env:                 "development",
		ListenAddr:          ":8080",
		LogLevel:            "info",
		TaxRate:             0.25,
		IngestWorkers:       2,
		IngestPollInterval:  Duration{250 * time.Millisecond},
		IngestTimeout:       Duration{30 * time.Second},
		MaxUploadBytes:      5 << 20,
		MaxRows:             500,
		UploadRatePerMinute: 60,
		UploadBurst:         10,
	}
}

// Load starts from defaults, applies CONFIG_FILE when set, then environment
// overrides, and validates the result.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.Env = getenv("APP_ENV", cfg.Env)
	cfg.ListenAddr = getenv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.TaxRate = getenvFloat("TAX_RATE", cfg.TaxRate)
	cfg.IngestWorkers = getenvInt("INGEST_WORKERS", cfg.IngestWorkers)
	cfg.IngestPollInterval.Duration = getenvDuration("INGEST_POLL_INTERVAL", cfg.IngestPollInterval.Duration)
	cfg.IngestTimeout.Duration = getenvDuration("INGEST_TIMEOUT", cfg.IngestTimeout.Duration)
	cfg.MaxUploadBytes = int64(getenvInt("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes)))
	cfg.MaxRows = getenvInt("MAX_ROWS", cfg.MaxRows)
	cfg.UploadRatePerMinute = getenvFloat("UPLOAD_RATE_PER_MINUTE", cfg.UploadRatePerMinute)
	cfg.UploadBurst = getenvInt("UPLOAD_BURST", cfg.UploadBurst)
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if err := distributor.CheckTaxRate(c.TaxRate); err != nil {
		errs = append(errs, fmt.Errorf("tax_rate must be within [0, 1]: %w", err))
	}
	if c.IngestWorkers < 0 {
		errs = append(errs, fmt.Errorf("ingest_workers must be >= 0, got %d", c.IngestWorkers))
	}
	if c.IngestPollInterval.Duration <= 0 {
		errs = append(errs, errors.New("ingest_poll_interval must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max_upload_bytes must be positive"))
	}
	if c.UploadRatePerMinute <= 0 || c.UploadBurst <= 0 {
		errs = append(errs, errors.New("upload rate and burst must be positive"))
	}
	return errors.Join(errs...)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.Atoi(v); err == nil {
			return out
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.ParseFloat(v, 64); err == nil {
			return out
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if out, err := time.ParseDuration(v); err == nil {
			return out
		}
	}
	return def
}

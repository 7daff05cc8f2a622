package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the runtime configuration of the gateway. Values load from an
// optional TOML file and may be overridden per-field by TRUSTLOCK_*
// environment variables.
type Config struct {
	ListenAddress string `toml:"listen_address"`
	Environment   string `toml:"environment"`
	DatabaseDSN   string `toml:"database_dsn"`
	PolicyPath    string `toml:"policy_path"`

	LogLevel      string `toml:"log_level"`
	LogFile       string `toml:"log_file"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`

	JWTSecret   string `toml:"jwt_secret"`
	JWTIssuer   string `toml:"jwt_issuer"`
	JWTAudience string `toml:"jwt_audience"`

	GraderURL     string        `toml:"grader_url"`
	GraderAPIKey  string        `toml:"grader_api_key"`
	GraderTimeout time.Duration `toml:"-"`
	GraderRetries int           `toml:"grader_retries"`

	SweepInterval time.Duration `toml:"-"`

	RateLimitPerMinute float64 `toml:"rate_limit_per_minute"`
	RateLimitBurst     int     `toml:"rate_limit_burst"`

	ReconOutputDir string `toml:"recon_output_dir"`

	OTLPEndpoint string `toml:"otlp_endpoint"`
	OTLPInsecure bool   `toml:"otlp_insecure"`
	OTLPHeaders  string `toml:"otlp_headers"`
	Traces       bool   `toml:"traces"`
	Metrics      bool   `toml:"metrics"`

	// Raw duration strings from TOML; parsed into the fields above.
	GraderTimeoutRaw string `toml:"grader_timeout"`
	SweepIntervalRaw string `toml:"sweep_interval"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		ListenAddress:      ":8089",
		Environment:        "dev",
		DatabaseDSN:        "trustlock.db",
		LogLevel:           "info",
		LogMaxSizeMB:       100,
		LogMaxBackups:      5,
		JWTIssuer:          "trustlock-gateway",
		GraderTimeout:      30 * time.Second,
		GraderRetries:      2,
		SweepInterval:      time.Minute,
		RateLimitPerMinute: 120,
		RateLimitBurst:     30,
		ReconOutputDir:     "recon",
		Metrics:            true,
	}
}

// Load reads the TOML file at path (skipped when empty or absent), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if err := toml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}
	if cfg.GraderTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.GraderTimeoutRaw)
		if err != nil {
			return Config{}, fmt.Errorf("grader_timeout: %w", err)
		}
		cfg.GraderTimeout = d
	}
	if cfg.SweepIntervalRaw != "" {
		d, err := time.ParseDuration(cfg.SweepIntervalRaw)
		if err != nil {
			return Config{}, fmt.Errorf("sweep_interval: %w", err)
		}
		cfg.SweepInterval = d
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.ListenAddress, "TRUSTLOCK_LISTEN")
	setString(&cfg.Environment, "TRUSTLOCK_ENV")
	setString(&cfg.DatabaseDSN, "TRUSTLOCK_DB_DSN")
	setString(&cfg.PolicyPath, "TRUSTLOCK_POLICY_PATH")
	setString(&cfg.LogLevel, "TRUSTLOCK_LOG_LEVEL")
	setString(&cfg.LogFile, "TRUSTLOCK_LOG_FILE")
	setString(&cfg.JWTSecret, "TRUSTLOCK_JWT_SECRET")
	setString(&cfg.JWTIssuer, "TRUSTLOCK_JWT_ISSUER")
	setString(&cfg.JWTAudience, "TRUSTLOCK_JWT_AUDIENCE")
	setString(&cfg.GraderURL, "TRUSTLOCK_GRADER_URL")
	setString(&cfg.GraderAPIKey, "TRUSTLOCK_GRADER_API_KEY")
	setString(&cfg.ReconOutputDir, "TRUSTLOCK_RECON_DIR")
	setString(&cfg.OTLPEndpoint, "TRUSTLOCK_OTLP_ENDPOINT")
	setDuration(&cfg.GraderTimeout, "TRUSTLOCK_GRADER_TIMEOUT")
	setDuration(&cfg.SweepInterval, "TRUSTLOCK_SWEEP_INTERVAL")
	setInt(&cfg.GraderRetries, "TRUSTLOCK_GRADER_RETRIES")
	setFloat(&cfg.RateLimitPerMinute, "TRUSTLOCK_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.RateLimitBurst, "TRUSTLOCK_RATE_LIMIT_BURST")
	setBool(&cfg.OTLPInsecure, "TRUSTLOCK_OTLP_INSECURE")
	setBool(&cfg.Traces, "TRUSTLOCK_TRACES")
	setBool(&cfg.Metrics, "TRUSTLOCK_METRICS")
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: listen address required")
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("config: database dsn required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("config: jwt secret required (set TRUSTLOCK_JWT_SECRET)")
	}
	if c.GraderTimeout <= 0 {
		return fmt.Errorf("config: grader timeout must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("config: sweep interval must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("config: rate limit must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

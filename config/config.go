// Package config assembles the application configuration from three layers
// with a fixed precedence: an explicit YAML config file wins over environment
// overrides, which win over the safe local fallback (demo mode on an on-disk
// data file). There is no module-level mutable state; the resolved Config is
// passed explicitly to the constructors that need it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"commissionflow/catalog"
)

// Duration wraps time.Duration so YAML values like "10s" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Backend selects the persistence provider for the whole process. Exactly one
// is active per session; there is no dual-write or background sync between
// them.
type Backend string

const (
	BackendLocal    Backend = "local"
	BackendPostgres Backend = "postgres"
)

// Owner is a default target operator for client-originated requests of one
// commission type.
type Owner struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Config is the resolved application configuration.
type Config struct {
	Backend     Backend `yaml:"backend"`
	DatabaseURL string  `yaml:"database_url"`
	DataDir     string  `yaml:"data_dir"`

	// AppID namespaces all persisted data.
	AppID string `yaml:"app_id"`

	HTTPAddr string `yaml:"http_addr"`

	// OperatorPhraseHash is the bcrypt hash of the operator access phrase.
	OperatorPhraseHash string `yaml:"operator_phrase_hash"`
	OperatorID         string `yaml:"operator_id"`
	OperatorName       string `yaml:"operator_name"`
	JWTSecret          string `yaml:"jwt_secret"`

	SubmitTimeout Duration `yaml:"submit_timeout"`

	// DefaultOwners routes client-originated requests per commission type.
	DefaultOwners map[catalog.Type]Owner `yaml:"default_owners"`
}

// Defaults is the safe local fallback: demo mode against an on-disk data file,
// no remote database.
func Defaults() Config {
	return Config{
		Backend:       BackendLocal,
		DataDir:       ".",
		AppID:         "commission-tracker-v1",
		HTTPAddr:      ":8080",
		OperatorID:    "main-artist",
		OperatorName:  "主委託老師",
		SubmitTimeout: Duration(10 * time.Second),
		DefaultOwners: map[catalog.Type]Owner{
			catalog.TypeFlowingSand: {ID: "main-artist", Name: "主委託老師"},
			catalog.TypeScreenshot:  {ID: "screenshot-desk", Name: "截圖委託窗口"},
		},
	}
}

// Load resolves the configuration. path may be empty, in which case only the
// environment and fallback layers apply.
func Load(path string) (Config, error) {
	cfg := Defaults()
	applyEnv(&cfg)

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("COMMISSIONFLOW_BACKEND"); v != "" {
		cfg.Backend = Backend(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
		if os.Getenv("COMMISSIONFLOW_BACKEND") == "" {
			cfg.Backend = BackendPostgres
		}
	}
	cfg.DataDir = getEnv("COMMISSIONFLOW_DATA_DIR", cfg.DataDir)
	cfg.AppID = getEnv("COMMISSIONFLOW_APP_ID", cfg.AppID)
	cfg.HTTPAddr = getEnv("COMMISSIONFLOW_HTTP_ADDR", cfg.HTTPAddr)
	cfg.OperatorPhraseHash = getEnv("COMMISSIONFLOW_OPERATOR_PHRASE_HASH", cfg.OperatorPhraseHash)
	cfg.OperatorID = getEnv("COMMISSIONFLOW_OPERATOR_ID", cfg.OperatorID)
	cfg.OperatorName = getEnv("COMMISSIONFLOW_OPERATOR_NAME", cfg.OperatorName)
	cfg.JWTSecret = getEnv("COMMISSIONFLOW_JWT_SECRET", cfg.JWTSecret)
	if v := os.Getenv("COMMISSIONFLOW_SUBMIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SubmitTimeout = Duration(d)
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c Config) validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.DataDir == "" {
			return fmt.Errorf("config: local backend requires data_dir")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: postgres backend requires database_url")
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.AppID == "" {
		return fmt.Errorf("config: app_id required")
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("config: submit_timeout must be positive")
	}
	return nil
}

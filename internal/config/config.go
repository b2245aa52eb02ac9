package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the floramatch API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Recommend RecommendConfig `yaml:"recommend"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. An empty key list disables
// bearer auth entirely.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout_ms"`
}

// CacheConfig holds the optional embedding cache settings. Disabled means
// every embedding request goes straight to the provider.
type CacheConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addrs     []string `yaml:"addrs"`
	Password  string   `yaml:"password"`
	TTLSec    int      `yaml:"ttl_sec"`
	KeyPrefix string   `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// RecommendConfig holds ranking and tier partitioning settings.
type RecommendConfig struct {
	DefaultCount     int     `yaml:"default_count"`
	MaxCount         int     `yaml:"max_count"`
	Padding          int     `yaml:"padding"`
	GoodLowerPct     float64 `yaml:"good_lower_pct"`
	GoodUpperPct     float64 `yaml:"good_upper_pct"`
	MismatchLowerPct float64 `yaml:"mismatch_lower_pct"`
	MismatchUpperPct float64 `yaml:"mismatch_upper_pct"`
}

// DatasetConfig holds catalog seed settings.
type DatasetConfig struct {
	PlantsCSV string `yaml:"plants_csv"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "floramatch.db"
	}
	if c.Database.BusyTimeout <= 0 {
		c.Database.BusyTimeout = 5000
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 86400
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "floramatch:emb:"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Recommend.DefaultCount <= 0 {
		c.Recommend.DefaultCount = 3
	}
	if c.Recommend.MaxCount <= 0 {
		c.Recommend.MaxCount = 10
	}
	if c.Recommend.Padding <= 0 {
		c.Recommend.Padding = 10
	}
	if c.Recommend.GoodLowerPct <= 0 {
		c.Recommend.GoodLowerPct = 70
	}
	if c.Recommend.GoodUpperPct <= 0 {
		c.Recommend.GoodUpperPct = 90
	}
	if c.Recommend.MismatchLowerPct <= 0 {
		c.Recommend.MismatchLowerPct = 5
	}
	if c.Recommend.MismatchUpperPct <= 0 {
		c.Recommend.MismatchUpperPct = 20
	}
	if c.Dataset.PlantsCSV == "" {
		c.Dataset.PlantsCSV = "data/plants.csv"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache is enabled")
	}
	if c.Recommend.GoodLowerPct >= c.Recommend.GoodUpperPct {
		return fmt.Errorf("recommend.good_lower_pct must be below good_upper_pct, got %.1f >= %.1f",
			c.Recommend.GoodLowerPct, c.Recommend.GoodUpperPct)
	}
	if c.Recommend.MismatchLowerPct >= c.Recommend.MismatchUpperPct {
		return fmt.Errorf("recommend.mismatch_lower_pct must be below mismatch_upper_pct, got %.1f >= %.1f",
			c.Recommend.MismatchLowerPct, c.Recommend.MismatchUpperPct)
	}
	if c.Recommend.DefaultCount > c.Recommend.MaxCount {
		return fmt.Errorf("recommend.default_count %d exceeds max_count %d",
			c.Recommend.DefaultCount, c.Recommend.MaxCount)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

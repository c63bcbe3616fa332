package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/KLIEBHAN/pg-plsql-graphs/internal/log"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/query"
)

// MinMaxTracked is the smallest accepted max_tracked.
const MinMaxTracked = 100

// Config holds all configuration for plsqlgraph
type Config struct {
	// Result table bounds
	MaxTracked  int `yaml:"max_tracked" env:"PLSQLGRAPH_MAX_TRACKED"`
	MaxDOTBytes int `yaml:"max_dot_bytes" env:"PLSQLGRAPH_MAX_DOT_BYTES"`

	// Extractor selects how query references are resolved
	Extractor query.Name `yaml:"extractor" env:"PLSQLGRAPH_EXTRACTOR"`

	// StorePath is where the result table is persisted between runs
	StorePath string `yaml:"store_path" env:"PLSQLGRAPH_STORE_PATH"`

	// ListenAddr is the address of the HTTP server
	ListenAddr string `yaml:"listen_addr" env:"PLSQLGRAPH_LISTEN_ADDR"`

	// Rendering and conflict options
	SameLevel bool `yaml:"same_level" env:"PLSQLGRAPH_SAME_LEVEL"`
	Symmetric bool `yaml:"symmetric" env:"PLSQLGRAPH_SYMMETRIC"`

	// Workers bounds concurrent analyses in batch runs
	Workers int `yaml:"workers" env:"PLSQLGRAPH_WORKERS"`

	// Logging. Verbose forces the debug level.
	LogLevel string `yaml:"log_level" env:"PLSQLGRAPH_LOG_LEVEL"`
	Verbose  bool   `yaml:"verbose" env:"PLSQLGRAPH_VERBOSE"`
	LogJSON  bool   `yaml:"log_json" env:"PLSQLGRAPH_LOG_JSON"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxTracked:  5000,
		MaxDOTBytes: 1 << 20,
		Extractor:   query.NameLexical,
		StorePath:   filepath.Join(".plsqlgraph", "graphs.msgpack"),
		ListenAddr:  "127.0.0.1:8642",
		SameLevel:   true,
		Symmetric:   false,
		Workers:     4,
		LogLevel:    "info",
		Verbose:     false,
		LogJSON:     false,
	}
}

// globalConfigFilePath returns the global config file path (~/.plsqlgraph/config.yaml)
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".plsqlgraph/config.yaml"
	}
	return filepath.Join(home, ".plsqlgraph", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.plsqlgraph/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(".plsqlgraph", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. .env in the working directory
// 3. Project-level config (./.plsqlgraph/config.yaml)
// 4. Global config (~/.plsqlgraph/config.yaml)
// 5. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{globalConfigFilePath(), ProjectConfigFilePath()} {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := applyDotEnv(cfg, ".env"); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path in
// place of the global and project files. The .env file and environment
// variables still apply on top, as with Load.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := applyDotEnv(cfg, ".env"); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// applyDotEnv applies PLSQLGRAPH_* entries of a .env file. The process
// environment is left untouched so real variables still win.
func applyDotEnv(cfg *Config, path string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	applyOverrides(cfg, func(key string) string { return vars[key] })
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	applyOverrides(cfg, os.Getenv)
}

func applyOverrides(cfg *Config, get func(string) string) {
	if v := get("PLSQLGRAPH_MAX_TRACKED"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.MaxTracked = i
		}
	}
	if v := get("PLSQLGRAPH_MAX_DOT_BYTES"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.MaxDOTBytes = i
		}
	}
	if v := get("PLSQLGRAPH_EXTRACTOR"); v != "" {
		cfg.Extractor = query.Name(v)
	}
	if v := get("PLSQLGRAPH_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := get("PLSQLGRAPH_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := get("PLSQLGRAPH_SAME_LEVEL"); v != "" {
		cfg.SameLevel = parseBool(v)
	}
	if v := get("PLSQLGRAPH_SYMMETRIC"); v != "" {
		cfg.Symmetric = parseBool(v)
	}
	if v := get("PLSQLGRAPH_WORKERS"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Workers = i
		}
	}
	if v := get("PLSQLGRAPH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := get("PLSQLGRAPH_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
	if v := get("PLSQLGRAPH_LOG_JSON"); v != "" {
		cfg.LogJSON = parseBool(v)
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if c.MaxTracked < MinMaxTracked {
		return fmt.Errorf("max_tracked must be at least %d", MinMaxTracked)
	}
	if c.MaxDOTBytes <= 0 {
		return fmt.Errorf("max_dot_bytes must be positive")
	}

	switch c.Extractor {
	case query.NameLexical, query.NameTreeSitter:
		// Valid
	default:
		return fmt.Errorf("invalid extractor: %s (must be 'lexical' or 'treesitter')", c.Extractor)
	}

	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// Level returns the configured log level, DebugLevel when Verbose is set.
func (c *Config) Level() (log.Level, error) {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return lvl, err
	}
	if c.Verbose {
		return log.DebugLevel, nil
	}
	return lvl, nil
}

// parseInt attempts to parse a string as int
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0
	}
	return i
}

func parseBool(s string) bool {
	return s == "true" || s == "1" || s == "yes"
}

// Package config loads engine configuration from defaults, a .env file,
// a project-level auditor.yml, and CLI flags, in that order of increasing
// precedence.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the engine's run configuration. CLI flags are applied on
// top of this by the cmd/auditor layer after Load returns.
type Config struct {
	Root    string `yaml:"root"`
	Workers int    `yaml:"workers"`
	Verbose bool   `yaml:"verbose"`
	JSON    bool   `yaml:"json"`

	Taint   TaintConfig   `yaml:"taint"`
	Deps    DepsConfig    `yaml:"deps"`
	Docs    DocsConfig    `yaml:"docs"`
	Exclude []string      `yaml:"exclude"`
	Include []string      `yaml:"include"`
}

// TaintConfig tunes the taint engine's bounds (§4.6 invariants 2-3).
type TaintConfig struct {
	MaxDepth              int `yaml:"max_depth"`
	MaxSignaturesPerState int `yaml:"max_signatures_per_state"`
	MaxRecursionDepth     int `yaml:"max_recursion_depth"`
}

// DepsConfig controls the `deps` subcommand's upgrade policy (§6).
type DepsConfig struct {
	CheckLatest     bool `yaml:"check_latest"`
	AllowPrerelease bool `yaml:"allow_prerelease"`
	UpgradeAll      bool `yaml:"upgrade_all"`
}

// DocsConfig controls the `docs` fetcher (§6).
type DocsConfig struct {
	MaxPages     int `yaml:"max_pages"`
	RateLimitMS  int `yaml:"rate_limit_ms"`
}

// Default returns the built-in defaults, the lowest-precedence layer.
func Default() *Config {
	return &Config{
		Root:    ".",
		Workers: 0,
		Taint: TaintConfig{
			MaxDepth:              40,
			MaxSignaturesPerState: 32,
			MaxRecursionDepth:     2,
		},
		Deps: DepsConfig{
			CheckLatest:     false,
			AllowPrerelease: false,
			UpgradeAll:      false,
		},
		Docs: DocsConfig{
			MaxPages:    50,
			RateLimitMS: 300,
		},
	}
}

// Load builds a Config from defaults, the process environment (via a
// .env file if present, ground: termfx-morfx internal/config/config.go's
// AUDITOR_*-prefixed env var convention), and an optional auditor.yml
// at the project root. CLI flags are layered on top by the caller.
func Load(root string) (*Config, error) {
	cfg := Default()
	cfg.Root = root

	envPath := filepath.Join(root, ".env")
	if _, err := os.Stat(envPath); err == nil {
		_ = godotenv.Load(envPath)
	}

	applyEnv(cfg)

	ymlPath := filepath.Join(root, "auditor.yml")
	if data, err := os.ReadFile(ymlPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AUDITOR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("AUDITOR_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Taint.MaxDepth = n
		}
	}
	if v := os.Getenv("AUDITOR_MAX_SIGNATURES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Taint.MaxSignaturesPerState = n
		}
	}
	if v := os.Getenv("AUDITOR_VERBOSE"); v != "" {
		cfg.Verbose = v == "1" || v == "true"
	}
}

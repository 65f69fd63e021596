// Package hiveconfig loads operator-facing configuration for a run: API
// credentials, default model, concurrency, turn budget, workspace root, and
// drone directory. A YAML file supplies defaults, environment variables
// overlay it, and validation reports actionable error messages.
package hiveconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full set of operator knobs for one hive run.
type Config struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	Backend         string `yaml:"backend"` // "anthropic" or "bedrock"
	BedrockRegion   string `yaml:"bedrock_region"`

	DefaultModel   string `yaml:"default_model"`
	MaxConcurrency int    `yaml:"max_concurrency"`
	MaxTurns       int    `yaml:"max_turns"`
	ThinkingBudget int    `yaml:"thinking_budget"`

	Workspace string `yaml:"workspace"`
	DroneDir  string `yaml:"drone_dir"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// defaults returns the Config applied before a file or env vars are read.
func defaults() Config {
	return Config{
		Backend:        "anthropic",
		DefaultModel:   "sonnet",
		MaxConcurrency: 3,
		MaxTurns:       25,
		Workspace:      ".",
		DroneDir:       ".hive",
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Load reads path (if non-empty) as a YAML file over the defaults, then
// applies HIVE_-prefixed environment variable overrides, then validates.
func Load(path string) (Config, error) {
	cfg := defaults()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HIVE_ANTHROPIC_API_KEY"); v != "" {
		cfg.AnthropicAPIKey = v
	} else if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := os.Getenv("HIVE_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("HIVE_BEDROCK_REGION"); v != "" {
		cfg.BedrockRegion = v
	}
	if v := os.Getenv("HIVE_DEFAULT_MODEL"); v != "" {
		cfg.DefaultModel = v
	}
	if v := os.Getenv("HIVE_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrency = n
		}
	}
	if v := os.Getenv("HIVE_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTurns = n
		}
	}
	if v := os.Getenv("HIVE_THINKING_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ThinkingBudget = n
		}
	}
	if v := os.Getenv("HIVE_WORKSPACE"); v != "" {
		cfg.Workspace = v
	}
	if v := os.Getenv("HIVE_DRONE_DIR"); v != "" {
		cfg.DroneDir = v
	}
	if v := os.Getenv("HIVE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HIVE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}

func (c Config) validate() error {
	if c.Backend != "anthropic" && c.Backend != "bedrock" {
		return fmt.Errorf("config: backend must be \"anthropic\" or \"bedrock\", got %q", c.Backend)
	}
	if c.Backend == "bedrock" && strings.TrimSpace(c.BedrockRegion) == "" {
		return fmt.Errorf("config: bedrock_region is required when backend is \"bedrock\"")
	}
	if c.Backend == "anthropic" && strings.TrimSpace(c.AnthropicAPIKey) == "" {
		return fmt.Errorf("config: anthropic_api_key is required when backend is \"anthropic\"")
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("config: max_concurrency must be >= 1, got %d", c.MaxConcurrency)
	}
	if c.MaxTurns < 1 {
		return fmt.Errorf("config: max_turns must be >= 1, got %d", c.MaxTurns)
	}
	return nil
}

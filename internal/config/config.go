// Package config loads filesage user configuration from
// <workspace>/.filesage/config.yaml, with environment variables taking
// precedence for API keys. Components receive explicit config structs;
// nothing in the core reads this package's state globally.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StateDirName is the per-directory state folder filesage maintains.
const StateDirName = ".filesage"

// Config is the root user configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Cache    CacheConfig    `yaml:"cache"`
	Organize OrganizeConfig `yaml:"organize"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig controls the category debug logs under .filesage/logs.
type LoggingConfig struct {
	DebugMode  bool   `yaml:"debug_mode"`
	Level      string `yaml:"level"`
	JSONFormat bool   `yaml:"json_format"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		LLM:      DefaultLLMConfig(),
		Cache:    DefaultCacheConfig(),
		Organize: DefaultOrganizeConfig(),
		Logging:  LoggingConfig{Level: "info"},
	}
}

// DefaultPath returns the config path for a workspace directory.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, StateDirName, "config.yaml")
}

// Load reads the config file at path, applies defaults for missing fields,
// and then applies environment overrides. A missing file is not an error;
// defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LLM.applyEnv()
}

func (c *Config) validate() error {
	if c.Organize.ConfidenceThreshold < 0 || c.Organize.ConfidenceThreshold > 1 {
		return fmt.Errorf("organize.confidence_threshold must be within [0,1], got %v",
			c.Organize.ConfidenceThreshold)
	}
	if c.Organize.MaxTurns <= 0 {
		return fmt.Errorf("organize.max_turns must be positive, got %d", c.Organize.MaxTurns)
	}
	return nil
}

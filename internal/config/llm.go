package config

import (
	"os"
	"time"
)

// LLMConfig configures the model provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // gemini, anthropic, openai
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"` // Go duration string, e.g. "120s"
	Temperature float64 `yaml:"temperature"`
}

// DefaultLLMConfig returns provider defaults. The provider is resolved at
// runtime from whichever API key is available.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Timeout:     "120s",
		Temperature: 0.2,
	}
}

// TimeoutDuration parses the timeout string, falling back to two minutes.
func (c LLMConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// applyEnv lets environment variables supply an API key when the config
// file carries none. Priority: GEMINI > ANTHROPIC > OPENAI, matching the
// provider detection order.
func (c *LLMConfig) applyEnv() {
	if c.APIKey != "" {
		return
	}
	candidates := []struct {
		envVar   string
		provider string
	}{
		{"GEMINI_API_KEY", "gemini"},
		{"ANTHROPIC_API_KEY", "anthropic"},
		{"OPENAI_API_KEY", "openai"},
	}
	for _, cand := range candidates {
		if c.Provider != "" && c.Provider != cand.provider {
			continue
		}
		if key := os.Getenv(cand.envVar); key != "" {
			c.APIKey = key
			if c.Provider == "" {
				c.Provider = cand.provider
			}
			return
		}
	}
}

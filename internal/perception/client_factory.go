package perception

import (
	"fmt"

	"filesage/internal/config"
)

// NewClient builds an LLMClient from the resolved user configuration.
// Provider priority when unset: whichever API key config.Load resolved
// (GEMINI > ANTHROPIC > OPENAI).
func NewClient(cfg config.LLMConfig) (LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured; set llm.api_key or one of GEMINI_API_KEY, ANTHROPIC_API_KEY, OPENAI_API_KEY")
	}

	switch cfg.Provider {
	case "gemini", "":
		gc := DefaultGeminiConfig(cfg.APIKey)
		if cfg.Model != "" {
			gc.Model = cfg.Model
		}
		gc.Temperature = cfg.Temperature
		return NewGeminiClientWithConfig(gc)

	case "anthropic":
		ac := DefaultAnthropicConfig(cfg.APIKey)
		if cfg.Model != "" {
			ac.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			ac.BaseURL = cfg.BaseURL
		}
		ac.Temperature = cfg.Temperature
		ac.Timeout = cfg.TimeoutDuration()
		return NewAnthropicClientWithConfig(ac), nil

	case "openai":
		oc := DefaultOpenAIConfig(cfg.APIKey)
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		oc.Temperature = cfg.Temperature
		oc.Timeout = cfg.TimeoutDuration()
		return NewOpenAIClientWithConfig(oc), nil

	default:
		return nil, fmt.Errorf("unknown provider %q (want gemini, anthropic or openai)", cfg.Provider)
	}
}

package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// OrganizeConfig controls the negotiation and post-processing behavior.
type OrganizeConfig struct {
	// ConfidenceThreshold drops final suggestions scored below it.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// PreserveNames keeps original filenames, taking only the suggested
	// destination directory from the model.
	PreserveNames bool `yaml:"preserve_names"`

	// MaxTurns bounds the total model round-trips per negotiation,
	// including orchestrated retries.
	MaxTurns int `yaml:"max_turns"`

	// ContextBudget caps the serialized conversation history in bytes
	// before old non-system messages are pruned.
	ContextBudget int `yaml:"context_budget"`

	// MaxClarificationRounds bounds how often a phase may be retried after
	// collecting clarification answers.
	MaxClarificationRounds int `yaml:"max_clarification_rounds"`

	// Backup copies files aside before moving them.
	Backup bool `yaml:"backup"`
}

// DefaultOrganizeConfig returns the negotiation defaults.
func DefaultOrganizeConfig() OrganizeConfig {
	return OrganizeConfig{
		ConfidenceThreshold:    0.4,
		MaxTurns:               10,
		ContextBudget:          48 * 1024,
		MaxClarificationRounds: 2,
		Backup:                 true,
	}
}

// SuggestionHash fingerprints every setting that can change what the model
// suggests. Cached suggestion lists are invalid once this differs.
func (c *Config) SuggestionHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "provider=%s\nmodel=%s\ntemperature=%v\n",
		c.LLM.Provider, c.LLM.Model, c.LLM.Temperature)
	fmt.Fprintf(h, "threshold=%v\npreserve=%v\n",
		c.Organize.ConfidenceThreshold, c.Organize.PreserveNames)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

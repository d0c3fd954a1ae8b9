// Package recovery turns raw model replies into typed organization data.
// Model output length and format are not contractually guaranteed, so a
// strict parse of the first balanced JSON span is backed by a salvage pass
// that recovers individual suggestion objects from truncated or malformed
// replies. Downstream code only ever sees the typed envelope; it never
// inspects raw text.
package recovery

import (
	"encoding/json"
	"fmt"
	"strings"

	"filesage/internal/logging"
)

// RawSuggestion is one per-file proposal as the model emits it. The file
// reference stays a bare name; the negotiation layer binds it to a
// descriptor later.
type RawSuggestion struct {
	File        string            `json:"file"`
	Destination string            `json:"destination"`
	Reason      string            `json:"reason"`
	Confidence  *float64          `json:"confidence,omitempty"`
	Category    string            `json:"category,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ClarificationRequest asks the caller for answers before the phase can
// proceed.
type ClarificationRequest struct {
	Questions []string `json:"questions"`
	Context   string   `json:"context,omitempty"`
}

// Envelope is the tagged union of everything a reply can carry.
type Envelope struct {
	Suggestions   []RawSuggestion       `json:"suggestions,omitempty"`
	Categories    map[string][]string   `json:"categories,omitempty"`
	Clarification *ClarificationRequest `json:"clarification,omitempty"`
	Reasoning     string                `json:"reasoning,omitempty"`
}

func (e *Envelope) empty() bool {
	return len(e.Suggestions) == 0 && len(e.Categories) == 0 &&
		(e.Clarification == nil || len(e.Clarification.Questions) == 0)
}

// Result is a decoded reply plus how it was obtained.
type Result struct {
	Envelope

	// Truncated is set when the reply's JSON span never closed.
	Truncated bool

	// Salvaged is set when the strict parse failed and suggestions were
	// recovered object by object.
	Salvaged bool
}

// ParseError reports that no usable data could be recovered from a reply.
// Excerpt is bounded for diagnostics.
type ParseError struct {
	Excerpt string
}

const excerptLimit = 256

func (e *ParseError) Error() string {
	return fmt.Sprintf("no organization data recovered from model reply (excerpt: %q)", e.Excerpt)
}

func newParseError(raw string) *ParseError {
	excerpt := strings.TrimSpace(raw)
	if len(excerpt) > excerptLimit {
		excerpt = excerpt[:excerptLimit]
	}
	return &ParseError{Excerpt: excerpt}
}

// Decode extracts a typed envelope from a raw model reply.
//
// Strict mode parses the first balanced JSON span (object or bare
// suggestion array). If that fails, or the span is unclosed, salvage mode
// re-parses each balanced object independently and keeps the ones shaped
// like suggestions. Decode fails only when neither mode yields anything.
func Decode(raw string) (*Result, error) {
	span, truncated := firstValue(raw)
	if span == "" {
		return nil, newParseError(raw)
	}

	result := &Result{Truncated: truncated}

	if !truncated {
		if strings.HasPrefix(span, "[") {
			var suggestions []RawSuggestion
			if err := json.Unmarshal([]byte(span), &suggestions); err == nil && len(suggestions) > 0 {
				result.Suggestions = suggestions
				normalize(result)
				return result, nil
			}
		} else {
			var env Envelope
			if err := json.Unmarshal([]byte(span), &env); err == nil && !env.empty() {
				result.Envelope = env
				normalize(result)
				return result, nil
			}
		}
	}

	// Salvage mode: recover whatever per-suggestion objects survived.
	salvaged := salvageSuggestions(raw)
	if len(salvaged) == 0 {
		return nil, newParseError(raw)
	}
	logging.OrganizerWarn("salvaged %d suggestion(s) from malformed reply (truncated=%v)",
		len(salvaged), truncated)

	result.Suggestions = salvaged
	result.Salvaged = true
	normalize(result)
	return result, nil
}

// salvageSuggestions parses every balanced object in raw and keeps those
// that look like suggestions. Failures are discarded; an enclosing
// envelope object is skipped because it lacks file/destination fields.
func salvageSuggestions(raw string) []RawSuggestion {
	var out []RawSuggestion
	seen := make(map[string]bool)

	for _, candidate := range scanObjects(raw) {
		var s RawSuggestion
		if err := json.Unmarshal([]byte(candidate), &s); err != nil {
			continue
		}
		if s.File == "" || s.Destination == "" {
			continue
		}
		if seen[s.File] {
			continue
		}
		seen[s.File] = true
		out = append(out, s)
	}
	return out
}

const defaultConfidence = 0.5

// normalize clamps confidences into [0,1], defaulting absent values.
func normalize(r *Result) {
	for i := range r.Suggestions {
		s := &r.Suggestions[i]
		if s.Confidence == nil {
			c := defaultConfidence
			s.Confidence = &c
			continue
		}
		if *s.Confidence < 0 {
			*s.Confidence = 0
		} else if *s.Confidence > 1 {
			*s.Confidence = 1
		}
	}
}

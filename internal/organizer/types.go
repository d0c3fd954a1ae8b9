package organizer

import (
	"errors"
	"time"

	"filesage/internal/recovery"
	"filesage/internal/scan"
)

// Phase is the coarse stage of an organization negotiation. Transitions
// are monotonic (analysis -> conversation -> organization -> complete)
// with two exceptions: conversation may re-enter itself on feedback, and
// ReopenConversation explicitly steps organization back to conversation.
type Phase string

const (
	PhaseAnalysis     Phase = "analysis"
	PhaseConversation Phase = "conversation"
	PhaseOrganization Phase = "organization"
	PhaseComplete     Phase = "complete"
)

// CatchAllCategory is the explicit bucket for files the model never
// classified. Nothing is ever silently omitted.
const CatchAllCategory = "unsorted"

// ErrWrongPhase reports an operation invoked outside its valid phase.
var ErrWrongPhase = errors.New("operation not valid in current phase")

// Suggestion is one negotiated file move. File is nil until the raw model
// reference has been bound by name.
type Suggestion struct {
	File          *scan.FileDescriptor `json:"file,omitempty"`
	SuggestedPath string               `json:"suggestedPath"`
	Reason        string               `json:"reason"`
	Confidence    float64              `json:"confidence"`
	Category      string               `json:"category,omitempty"`
	Metadata      map[string]string    `json:"metadata,omitempty"`
}

// Clarification is one answered question collected mid-negotiation.
type Clarification struct {
	ID        string    `json:"id"`
	Phase     Phase     `json:"phase"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// Feedback is the caller's verdict on the current proposal.
type Feedback struct {
	Approved         bool
	Comments         string
	RejectedPaths    []string
	ApprovedPatterns []string
}

// Outcome is the result of one negotiation round. Exactly one of two
// shapes: Suggestions set when the plan was finalized, otherwise the
// updated category discovery plus an optional clarification request.
type Outcome struct {
	Suggestions   []Suggestion
	Reasoning     string
	Categories    map[string][]string
	Clarification *recovery.ClarificationRequest
}

// Finalized reports whether the outcome carries the final plan.
func (o *Outcome) Finalized() bool { return len(o.Suggestions) > 0 }

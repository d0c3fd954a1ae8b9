// Package conversation implements the turn-bounded message history and
// lifecycle state machine wrapping model provider calls. It is the
// domain-neutral primitive underneath the organizer negotiation: it never
// retries, never parses replies, and never decides what to say next. Each
// provider call carries only the system prompt and the current prompt; the
// history is an audit record, kept within the context budget by pruning.
//
// A State instance is not safe for concurrent use; callers running
// parallel negotiations use separate instances.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"filesage/internal/logging"
	"filesage/internal/perception"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Lifecycle is the conversation's coarse state.
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "active"
	LifecyclePaused   Lifecycle = "paused"
	LifecycleComplete Lifecycle = "complete"
	LifecycleFailed   Lifecycle = "failed"
)

// Sentinel errors. All of them are contract violations in the sense of the
// state machine: the operation was invoked outside its valid state.
var (
	ErrNotActive  = errors.New("conversation is not active")
	ErrNotPaused  = errors.New("conversation is not paused")
	ErrTurnBudget = errors.New("turn budget exhausted")
)

// Message is one append-only history entry.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Config bounds a conversation.
type Config struct {
	MaxTurns      int
	ContextBudget int // bytes of serialized history before pruning
	Temperature   float64
	SystemPrompt  string
}

// DefaultConfig returns the bounds the organizer uses unless configured
// otherwise.
func DefaultConfig() Config {
	return Config{
		MaxTurns:      10,
		ContextBudget: 48 * 1024,
		Temperature:   0.2,
	}
}

// State is a turn-bounded conversation with a model provider.
type State struct {
	id        string
	subject   string
	lifecycle Lifecycle
	messages  []Message
	turnCount int
	cfg       Config
	client    perception.LLMClient
	createdAt time.Time
	updatedAt time.Time
}

// New creates an active conversation. The system prompt, when present,
// becomes the first history entry and survives pruning and resets.
func New(subject string, cfg Config, client perception.LLMClient) *State {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultConfig().MaxTurns
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = DefaultConfig().ContextBudget
	}

	now := time.Now()
	s := &State{
		id:        uuid.NewString(),
		subject:   subject,
		lifecycle: LifecycleActive,
		cfg:       cfg,
		client:    client,
		createdAt: now,
		updatedAt: now,
	}
	if cfg.SystemPrompt != "" {
		s.messages = append(s.messages, Message{
			Role:      RoleSystem,
			Content:   cfg.SystemPrompt,
			Timestamp: now,
		})
	}
	return s
}

// ID returns the conversation's unique id.
func (s *State) ID() string { return s.id }

// Subject returns the caller-supplied topic label.
func (s *State) Subject() string { return s.subject }

// Lifecycle returns the current lifecycle state.
func (s *State) Lifecycle() Lifecycle { return s.lifecycle }

// TurnCount returns the number of consumed turns.
func (s *State) TurnCount() int { return s.turnCount }

// Config returns the conversation bounds.
func (s *State) Config() Config { return s.cfg }

// UpdatedAt returns the time of the last mutation.
func (s *State) UpdatedAt() time.Time { return s.updatedAt }

// Messages returns a copy of the history.
func (s *State) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// AddMessage appends to the history and prunes if the serialized size
// exceeds the context budget.
func (s *State) AddMessage(role Role, content string) {
	s.messages = append(s.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	s.updatedAt = time.Now()
	s.pruneToBudget()
}

// serializedSize approximates the wire size of the history: content plus a
// small per-message envelope overhead.
func (s *State) serializedSize() int {
	size := 0
	for _, m := range s.messages {
		size += len(m.Content) + len(m.Role) + 64
	}
	return size
}

// pruneToBudget drops the oldest non-system messages until the history
// fits the budget. System messages always survive; the most recent
// message is never dropped.
func (s *State) pruneToBudget() {
	for s.serializedSize() > s.cfg.ContextBudget {
		dropped := false
		for i, m := range s.messages {
			if m.Role == RoleSystem {
				continue
			}
			if i == len(s.messages)-1 {
				break // never drop the newest entry
			}
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			dropped = true
			break
		}
		if !dropped {
			return
		}
		logging.ConversationDebug("pruned history to %d message(s), %d bytes",
			len(s.messages), s.serializedSize())
	}
}

// ContinueWithPrompt consumes one turn: appends the prompt as a user
// message, invokes the provider, appends the raw reply as an assistant
// message, and returns the reply.
//
// Prompts are self-contained: the organizer renders everything the model
// needs (file listing, current categorization, clarification answers,
// rejection context) into every prompt, so only the system prompt and the
// current prompt go over the wire. The retained history is an audit trail
// for inspection and debugging; pruning bounds its memory footprint, not
// the request size.
//
// Valid only while active with turns remaining; exhausting the budget
// fails the conversation. A provider failure also transitions to failed
// and is returned unwrapped for the orchestrator to inspect — this
// primitive never retries.
func (s *State) ContinueWithPrompt(ctx context.Context, prompt string) (string, error) {
	if s.lifecycle != LifecycleActive {
		return "", fmt.Errorf("continue conversation %s: %w (lifecycle %s)", s.id, ErrNotActive, s.lifecycle)
	}
	if s.turnCount >= s.cfg.MaxTurns {
		s.lifecycle = LifecycleFailed
		s.updatedAt = time.Now()
		return "", fmt.Errorf("continue conversation %s: %w (%d turns)", s.id, ErrTurnBudget, s.cfg.MaxTurns)
	}

	s.turnCount++
	s.AddMessage(RoleUser, prompt)
	logging.Conversation("turn %d/%d on %q", s.turnCount, s.cfg.MaxTurns, s.subject)

	reply, err := s.client.CompleteWithSystem(ctx, s.cfg.SystemPrompt, prompt)
	if err != nil {
		s.lifecycle = LifecycleFailed
		s.updatedAt = time.Now()
		return "", fmt.Errorf("turn %d failed: %w", s.turnCount, err)
	}

	s.AddMessage(RoleAssistant, reply)
	return reply, nil
}

// Pause suspends an active conversation.
func (s *State) Pause() error {
	if s.lifecycle != LifecycleActive {
		return fmt.Errorf("pause: %w (lifecycle %s)", ErrNotActive, s.lifecycle)
	}
	s.lifecycle = LifecyclePaused
	s.updatedAt = time.Now()
	return nil
}

// Resume reactivates a paused conversation; the only backward transition.
func (s *State) Resume() error {
	if s.lifecycle != LifecyclePaused {
		return fmt.Errorf("resume: %w (lifecycle %s)", ErrNotPaused, s.lifecycle)
	}
	s.lifecycle = LifecycleActive
	s.updatedAt = time.Now()
	return nil
}

// Complete terminates the conversation successfully.
func (s *State) Complete() error {
	if s.lifecycle != LifecycleActive {
		return fmt.Errorf("complete: %w (lifecycle %s)", ErrNotActive, s.lifecycle)
	}
	s.lifecycle = LifecycleComplete
	s.updatedAt = time.Now()
	return nil
}

// Fail terminates the conversation unsuccessfully. Terminal.
func (s *State) Fail() {
	if s.lifecycle == LifecycleComplete || s.lifecycle == LifecycleFailed {
		return
	}
	s.lifecycle = LifecycleFailed
	s.updatedAt = time.Now()
}

// Revive returns a conversation failed by a provider error to active so
// the orchestrator can retry with an altered prompt. The turn spent on the
// failed call stays counted, so retries drain the shared budget; once the
// orchestrator gives up the failure is permanent.
func (s *State) Revive() error {
	if s.lifecycle != LifecycleFailed {
		return fmt.Errorf("revive: conversation is %s, not failed", s.lifecycle)
	}
	s.lifecycle = LifecycleActive
	s.updatedAt = time.Now()
	return nil
}

// Reset clears the history and turn counter and returns to active.
// keepSystem preserves the system messages.
func (s *State) Reset(keepSystem bool) {
	var kept []Message
	if keepSystem {
		for _, m := range s.messages {
			if m.Role == RoleSystem {
				kept = append(kept, m)
			}
		}
	}
	s.messages = kept
	s.turnCount = 0
	s.lifecycle = LifecycleActive
	s.updatedAt = time.Now()
}

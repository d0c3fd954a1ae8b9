// Package organizer drives the multi-round negotiation with the model:
// discover categories for a file set, refine them with user feedback, and
// finalize exactly one move suggestion per file. Phase discipline and the
// per-file coverage guarantee live here; retry policy does not — the
// caller owns the loop and every retry consumes a conversation turn.
package organizer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"filesage/internal/conversation"
	"filesage/internal/logging"
	"filesage/internal/perception"
	"filesage/internal/recovery"
	"filesage/internal/scan"
)

// AnswerFunc supplies the user's answer to one clarification question.
// This is the asynchronous caller boundary: implementations may block on
// UI and must honor ctx cancellation.
type AnswerFunc func(ctx context.Context, question string) (string, error)

// Negotiation owns one organization exchange over a fixed file set. It is
// not safe for concurrent use; run parallel negotiations on separate
// instances.
type Negotiation struct {
	conv    *conversation.State
	files   []scan.FileDescriptor
	byName  map[string]*scan.FileDescriptor
	baseDir string
	intent  string
	phase   Phase

	// categories maps category -> filenames; categoryOrder preserves
	// discovery order so the first-discovered category wins conflicts
	// deterministically.
	categories    map[string][]string
	categoryOrder []string
	fileCategory  map[string]string

	rejectedPaths    []string
	approvedPatterns []string
	clarifications   []Clarification

	log *logging.Logger
}

// NewNegotiation creates a negotiation in the analysis phase. The file set
// is fixed for the negotiation's lifetime; the filesystem is never
// re-scanned.
func NewNegotiation(files []scan.FileDescriptor, baseDir, intent string, cfg conversation.Config, client perception.LLMClient) *Negotiation {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = buildSystemPrompt(baseDir, intent)
	}

	byName := make(map[string]*scan.FileDescriptor, len(files))
	for i := range files {
		byName[files[i].Name] = &files[i]
	}

	return &Negotiation{
		conv:         conversation.New(fmt.Sprintf("organize %s", baseDir), cfg, client),
		files:        files,
		byName:       byName,
		baseDir:      baseDir,
		intent:       intent,
		phase:        PhaseAnalysis,
		categories:   make(map[string][]string),
		fileCategory: make(map[string]string),
		log:          logging.Get(logging.CategoryOrganizer),
	}
}

// Phase returns the current negotiation phase.
func (n *Negotiation) Phase() Phase { return n.phase }

// Conversation exposes the underlying state for inspection (turn count,
// lifecycle). Callers must not drive it directly.
func (n *Negotiation) Conversation() *conversation.State { return n.conv }

// Categories returns a copy of the discovered category map.
func (n *Negotiation) Categories() map[string][]string {
	out := make(map[string][]string, len(n.categories))
	for cat, files := range n.categories {
		out[cat] = append([]string(nil), files...)
	}
	return out
}

// Clarifications returns a copy of the collected clarification log.
func (n *Negotiation) Clarifications() []Clarification {
	return append([]Clarification(nil), n.clarifications...)
}

// ApprovePattern records a naming/folder pattern the user confirmed; it is
// fed back into every later prompt to keep suggestions consistent.
func (n *Negotiation) ApprovePattern(pattern string) {
	n.approvedPatterns = append(n.approvedPatterns, pattern)
}

// StartAnalysis runs the first exchange: the model sees the full file
// listing and proposes a category map, optionally asking for
// clarification. The negotiation advances to the conversation phase
// unless clarification is needed, in which case the caller answers via
// HandleClarification and calls StartAnalysis again.
func (n *Negotiation) StartAnalysis(ctx context.Context) (*Outcome, error) {
	if n.phase != PhaseAnalysis {
		return nil, fmt.Errorf("start analysis: %w (phase %s)", ErrWrongPhase, n.phase)
	}

	raw, err := n.conv.ContinueWithPrompt(ctx, n.buildAnalysisPrompt())
	if err != nil {
		return nil, err
	}

	res, err := recovery.Decode(raw)
	if err != nil {
		return nil, err
	}

	n.mergeCategories(res.Categories)
	n.routeUnclassified()

	if res.Clarification != nil && len(res.Clarification.Questions) > 0 {
		n.log.Info("analysis paused on %d clarification question(s)", len(res.Clarification.Questions))
		return &Outcome{Categories: n.Categories(), Clarification: res.Clarification}, nil
	}

	n.phase = PhaseConversation
	n.log.Info("analysis complete: %d categories over %d files", len(n.categories), len(n.files))
	return &Outcome{Categories: n.Categories()}, nil
}

// CloseAnalysis force-completes the analysis phase with the categories
// gathered so far. The orchestrator calls it when its clarification rounds
// are spent and the model is still asking questions; files the unanswered
// questions concerned stay in the catch-all bucket instead of blocking the
// negotiation.
func (n *Negotiation) CloseAnalysis() (*Outcome, error) {
	if n.phase != PhaseAnalysis {
		return nil, fmt.Errorf("close analysis: %w (phase %s)", ErrWrongPhase, n.phase)
	}

	n.routeUnclassified()
	n.phase = PhaseConversation
	n.log.Info("analysis closed best-effort: %d categories over %d files",
		len(n.categories), len(n.files))
	return &Outcome{Categories: n.Categories()}, nil
}

// ContinueConversation sends a refinement message and merges whatever new
// category assignments come back. Earlier discoveries are never discarded;
// the phase re-enters itself.
func (n *Negotiation) ContinueConversation(ctx context.Context, message string) (*Outcome, error) {
	if n.phase != PhaseConversation {
		return nil, fmt.Errorf("continue conversation: %w (phase %s)", ErrWrongPhase, n.phase)
	}

	raw, err := n.conv.ContinueWithPrompt(ctx, n.buildConversationPrompt(message))
	if err != nil {
		return nil, err
	}

	res, err := recovery.Decode(raw)
	if err != nil {
		return nil, err
	}

	n.mergeCategories(res.Categories)
	n.routeUnclassified()

	if res.Clarification != nil && len(res.Clarification.Questions) > 0 {
		return &Outcome{Categories: n.Categories(), Clarification: res.Clarification}, nil
	}
	return &Outcome{Categories: n.Categories()}, nil
}

// ProcessFeedback applies the user's verdict. Approval advances to the
// organization phase and short-circuits into GenerateFinalSuggestions;
// rejection becomes a natural-language refinement turn.
func (n *Negotiation) ProcessFeedback(ctx context.Context, fb Feedback) (*Outcome, error) {
	if n.phase != PhaseConversation {
		return nil, fmt.Errorf("process feedback: %w (phase %s)", ErrWrongPhase, n.phase)
	}

	if fb.Approved {
		n.approvedPatterns = append(n.approvedPatterns, fb.ApprovedPatterns...)
		n.phase = PhaseOrganization
		n.log.Info("categorization approved, generating final suggestions")
		return n.GenerateFinalSuggestions(ctx)
	}

	n.rejectedPaths = append(n.rejectedPaths, fb.RejectedPaths...)
	return n.ContinueConversation(ctx, rejectionMessage(fb))
}

// GenerateFinalSuggestions produces the final plan: exactly one suggestion
// per input file. Files the model skipped get a deterministic fallback
// (reduced confidence, explicit reason) rather than being dropped. On
// success the negotiation completes.
func (n *Negotiation) GenerateFinalSuggestions(ctx context.Context) (*Outcome, error) {
	if n.phase != PhaseOrganization {
		return nil, fmt.Errorf("generate final suggestions: %w (phase %s)", ErrWrongPhase, n.phase)
	}

	raw, err := n.conv.ContinueWithPrompt(ctx, n.buildFinalPrompt())
	if err != nil {
		return nil, err
	}

	res, err := recovery.Decode(raw)
	if err != nil {
		return nil, err
	}

	// A reply that only asks questions keeps the phase open for a retry
	// after HandleClarification.
	if len(res.Suggestions) == 0 && res.Clarification != nil {
		return &Outcome{Categories: n.Categories(), Clarification: res.Clarification}, nil
	}

	suggestions := n.bindSuggestions(res.Suggestions)
	suggestions = n.fillCoverage(suggestions)

	n.phase = PhaseComplete
	if err := n.conv.Complete(); err != nil {
		// The conversation may already be terminal after salvage paths;
		// the negotiation result stands regardless.
		n.log.Warn("conversation close: %v", err)
	}

	n.log.Info("final plan: %d suggestion(s) for %d file(s)", len(suggestions), len(n.files))
	return &Outcome{Suggestions: suggestions, Reasoning: res.Reasoning}, nil
}

// HandleClarification collects one answer per question from the caller and
// records them against the originating phase. The caller then retries that
// phase; the stored answers are embedded in the retried prompt.
func (n *Negotiation) HandleClarification(ctx context.Context, questions []string, phase Phase, answer AnswerFunc) error {
	for _, q := range questions {
		ans, err := answer(ctx, q)
		if err != nil {
			return fmt.Errorf("clarification %q: %w", q, err)
		}
		n.clarifications = append(n.clarifications, Clarification{
			ID:        uuid.NewString(),
			Phase:     phase,
			Question:  q,
			Answer:    ans,
			Timestamp: time.Now(),
		})
	}
	n.log.Info("collected %d clarification answer(s) for phase %s", len(questions), phase)
	return nil
}

// ReopenConversation is the one sanctioned backward transition: step from
// organization back to conversation when the user wants to renegotiate
// before a plan was finalized.
func (n *Negotiation) ReopenConversation() error {
	if n.phase != PhaseOrganization {
		return fmt.Errorf("reopen conversation: %w (phase %s)", ErrWrongPhase, n.phase)
	}
	n.phase = PhaseConversation
	return nil
}

// mergeCategories folds newly discovered categories into the running map.
// Unknown filenames are dropped; a file already claimed by a real category
// stays where it was (first-discovered wins), though a catch-all
// assignment may be upgraded.
func (n *Negotiation) mergeCategories(discovered map[string][]string) {
	for cat, names := range discovered {
		for _, name := range names {
			if _, known := n.byName[name]; !known {
				n.log.Debug("dropping unknown filename %q from category %q", name, cat)
				continue
			}
			current, assigned := n.fileCategory[name]
			if assigned && current != CatchAllCategory {
				continue
			}
			if assigned {
				n.removeFromCategory(name, current)
			}
			n.assign(name, cat)
		}
	}
}

// routeUnclassified sends every still-unassigned file to the catch-all
// bucket so the category map accounts for the whole input set.
func (n *Negotiation) routeUnclassified() {
	for _, f := range n.files {
		if _, ok := n.fileCategory[f.Name]; !ok {
			n.assign(f.Name, CatchAllCategory)
		}
	}
}

func (n *Negotiation) assign(name, cat string) {
	if _, exists := n.categories[cat]; !exists {
		n.categoryOrder = append(n.categoryOrder, cat)
	}
	n.categories[cat] = append(n.categories[cat], name)
	n.fileCategory[name] = cat
}

func (n *Negotiation) removeFromCategory(name, cat string) {
	files := n.categories[cat]
	for i, f := range files {
		if f == name {
			n.categories[cat] = append(files[:i], files[i+1:]...)
			break
		}
	}
	delete(n.fileCategory, name)
}

// bindSuggestions resolves raw model suggestions against the known file
// set. Unknown filenames are dropped; duplicates keep the first
// occurrence.
func (n *Negotiation) bindSuggestions(raw []recovery.RawSuggestion) []Suggestion {
	var out []Suggestion
	bound := make(map[string]bool)

	for _, rs := range raw {
		fd, known := n.byName[rs.File]
		if !known {
			n.log.Debug("dropping suggestion for unknown file %q", rs.File)
			continue
		}
		if bound[rs.File] {
			continue
		}
		bound[rs.File] = true

		confidence := 0.5
		if rs.Confidence != nil {
			confidence = *rs.Confidence
		}
		out = append(out, Suggestion{
			File:          fd,
			SuggestedPath: rs.Destination,
			Reason:        rs.Reason,
			Confidence:    confidence,
			Category:      rs.Category,
			Metadata:      rs.Metadata,
		})
	}
	return out
}

const fallbackConfidence = 0.3

// fillCoverage guarantees exactly one suggestion per input file: any file
// the model skipped gets a deterministic fallback routed into its
// discovered category, or the catch-all bucket.
func (n *Negotiation) fillCoverage(suggestions []Suggestion) []Suggestion {
	covered := make(map[string]bool, len(suggestions))
	for _, s := range suggestions {
		covered[s.File.Name] = true
	}

	for i := range n.files {
		f := &n.files[i]
		if covered[f.Name] {
			continue
		}

		cat, ok := n.fileCategory[f.Name]
		if !ok {
			cat = CatchAllCategory
		}
		suggestions = append(suggestions, Suggestion{
			File:          f,
			SuggestedPath: filepath.Join(categoryDir(cat), f.Name),
			Reason:        fmt.Sprintf("no proposal received from the model; filed under %q", cat),
			Confidence:    fallbackConfidence,
			Category:      cat,
		})
		n.log.Warn("model skipped %q, using fallback into %q", f.Name, cat)
	}
	return suggestions
}

// categoryDir turns a category name into a destination directory segment.
func categoryDir(cat string) string {
	out := make([]rune, 0, len(cat))
	for _, r := range cat {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '/':
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

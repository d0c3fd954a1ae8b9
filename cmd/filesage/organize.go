package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"filesage/internal/cache"
	"filesage/internal/conversation"
	"filesage/internal/executor"
	"filesage/internal/organizer"
	"filesage/internal/perception"
	"filesage/internal/recovery"
	"filesage/internal/scan"
)

var noCache bool

var organizeCmd = &cobra.Command{
	Use:   "organize [directory]",
	Short: "Negotiate and apply an organization plan for a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOrganize,
}

func init() {
	organizeCmd.Flags().StringVarP(&intent, "intent", "i", "", "what the organization should achieve, e.g. \"group by project\"")
	organizeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the plan without moving anything")
	organizeCmd.Flags().BoolVarP(&assume, "yes", "y", false, "apply the plan without the final confirmation")
	organizeCmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore cached suggestions")
}

func runOrganize(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	cfg, abs, err := initWorkspace(dir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := scan.NewScanner().Scan(abs)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to organize.")
		return nil
	}
	zap.S().Infof("scanned %d file(s) in %s", len(files), abs)

	suggestionCache := cache.NewTiered[[]organizer.Suggestion](
		"suggestions", stateDir(abs), cfg.Cache.TTLDuration())
	defer suggestionCache.Flush()

	key := cache.Key(abs)
	configHash := cfg.SuggestionHash()

	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	useCache := !noCache && !cfg.Cache.Disabled
	if useCache {
		if cached, reason := suggestionCache.Lookup(key, files, configHash); reason == cache.MissNone {
			fmt.Fprintln(out, successStyle.Render("Using cached suggestions (directory unchanged)."))
			fmt.Fprint(out, renderPlan(cached, ""))
			return confirmAndApply(ctx, out, in, abs, cfg.Organize.Backup, cached)
		} else {
			zap.S().Debugf("cache miss: %s", reason)
		}
	}

	client, err := perception.NewClient(cfg.LLM)
	if err != nil {
		return err
	}

	convCfg := conversation.Config{
		MaxTurns:      cfg.Organize.MaxTurns,
		ContextBudget: cfg.Organize.ContextBudget,
		Temperature:   cfg.LLM.Temperature,
	}
	neg := organizer.NewNegotiation(files, abs, intent, convCfg, client)
	answer := stdinAnswer(out, in)

	// Analysis, with bounded clarification rounds. When the rounds run out
	// and the model still asks questions, proceed best-effort with the
	// categories gathered so far rather than dead-ending the run.
	var outcome *organizer.Outcome
	for round := 0; ; round++ {
		outcome, err = withRetries(neg, func() (*organizer.Outcome, error) {
			return neg.StartAnalysis(ctx)
		})
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
		if outcome.Clarification == nil {
			break
		}
		if round >= cfg.Organize.MaxClarificationRounds {
			outcome, err = neg.CloseAnalysis()
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}
			fmt.Fprintln(out, warnStyle.Render(
				fmt.Sprintf("Proceeding without further clarification; unanswered files go to %q.",
					organizer.CatchAllCategory)))
			break
		}
		if err := neg.HandleClarification(ctx, outcome.Clarification.Questions,
			organizer.PhaseAnalysis, answer); err != nil {
			return err
		}
	}

	// Feedback loop until the user approves and a plan is finalized.
	for !outcome.Finalized() {
		fmt.Fprint(out, renderCategories(neg.Categories()))
		fb, quit, err := readFeedback(out, in)
		if err != nil {
			return err
		}
		if quit {
			fmt.Fprintln(out, "Aborted; nothing was moved.")
			return nil
		}

		outcome, err = withRetries(neg, func() (*organizer.Outcome, error) {
			return neg.ProcessFeedback(ctx, fb)
		})
		if err != nil {
			return fmt.Errorf("negotiation failed: %w", err)
		}

		// The organization phase may itself ask for clarification before
		// it can finalize.
		for outcome.Clarification != nil && neg.Phase() == organizer.PhaseOrganization {
			if err := neg.HandleClarification(ctx, outcome.Clarification.Questions,
				organizer.PhaseOrganization, answer); err != nil {
				return err
			}
			outcome, err = withRetries(neg, func() (*organizer.Outcome, error) {
				return neg.GenerateFinalSuggestions(ctx)
			})
			if err != nil {
				return fmt.Errorf("finalization failed: %w", err)
			}
		}
	}

	post := organizer.PostProcessor{
		ConfidenceThreshold: cfg.Organize.ConfidenceThreshold,
		PreserveNames:       cfg.Organize.PreserveNames,
	}
	plan := post.Apply(outcome.Suggestions)

	if useCache {
		suggestionCache.Put(key, files, plan, configHash)
	}

	fmt.Fprint(out, renderPlan(plan, outcome.Reasoning))
	return confirmAndApply(ctx, out, in, abs, cfg.Organize.Backup, plan)
}

// maxAttempts bounds orchestrated retries around one negotiation call.
// Every retry consumes a turn of the shared budget, so the conversation's
// MaxTurns still caps the total model traffic.
const maxAttempts = 3

// withRetries retries provider and parse failures; state violations and
// an exhausted turn budget are final.
func withRetries(neg *organizer.Negotiation, call func() (*organizer.Outcome, error)) (*organizer.Outcome, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := call()
		if err == nil {
			return out, nil
		}
		lastErr = err

		if errors.Is(err, organizer.ErrWrongPhase) ||
			errors.Is(err, conversation.ErrTurnBudget) ||
			errors.Is(err, conversation.ErrNotActive) {
			return nil, err
		}

		var provErr *perception.ProviderError
		var parseErr *recovery.ParseError
		switch {
		case errors.As(err, &provErr):
			// The failed call marked the conversation failed; revive it
			// so the retry can spend another turn.
			if reviveErr := neg.Conversation().Revive(); reviveErr != nil {
				return nil, err
			}
			zap.S().Warnf("provider error (attempt %d/%d): %v", attempt, maxAttempts, err)
		case errors.As(err, &parseErr):
			zap.S().Warnf("unparseable reply (attempt %d/%d): %v", attempt, maxAttempts, err)
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

// stdinAnswer is the clarification boundary: one question, one line.
func stdinAnswer(out io.Writer, in *bufio.Reader) organizer.AnswerFunc {
	return func(ctx context.Context, question string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprintf(out, "%s\n> ", categoryStyle.Render(question))
		line, err := in.ReadString('\n')
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}

// readFeedback asks for a verdict on the current categorization.
func readFeedback(out io.Writer, in *bufio.Reader) (organizer.Feedback, bool, error) {
	fmt.Fprint(out, "\nAccept this categorization? [y]es / [n]o with feedback / [q]uit: ")
	line, err := in.ReadString('\n')
	if err != nil {
		return organizer.Feedback{}, false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return organizer.Feedback{Approved: true}, false, nil
	case "q", "quit":
		return organizer.Feedback{}, true, nil
	default:
		fmt.Fprint(out, "What should change?\n> ")
		comment, err := in.ReadString('\n')
		if err != nil {
			return organizer.Feedback{}, false, err
		}
		return organizer.Feedback{Comments: strings.TrimSpace(comment)}, false, nil
	}
}

func confirmAndApply(ctx context.Context, out io.Writer, in *bufio.Reader, baseDir string, backup bool, plan []organizer.Suggestion) error {
	if len(plan) == 0 {
		fmt.Fprintln(out, "No suggestions above the confidence threshold; nothing to do.")
		return nil
	}

	if dryRun {
		fmt.Fprintln(out, warnStyle.Render("Dry run; nothing was moved."))
		return nil
	}

	if !assume {
		fmt.Fprint(out, "\nApply these moves? [y/N]: ")
		line, err := in.ReadString('\n')
		if err != nil {
			return err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(out, "Aborted; nothing was moved.")
			return nil
		}
	}

	exec := executor.New(baseDir)
	exec.Backup = backup
	report, err := exec.Apply(ctx, plan)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Moved %d file(s), skipped %d.",
		len(report.Moves), report.Skipped)))
	for _, e := range report.Errors {
		fmt.Fprintln(out, errorStyle.Render(e.Error()))
	}
	if len(report.Errors) > 0 {
		return fmt.Errorf("%d move(s) failed", len(report.Errors))
	}
	return nil
}

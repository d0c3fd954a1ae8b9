package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// go.opencensus.io starts a background worker at package init, before
	// any test runs; it is a known goleak false positive.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

// echoClient replies with a fixed string, or the queued error, and records
// what each call carried.
type echoClient struct {
	reply   string
	err     error
	calls   int
	systems []string
	prompts []string
}

func (c *echoClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

func (c *echoClient) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	c.calls++
	c.systems = append(c.systems, system)
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func TestContinueWithPrompt_AppendsBothSides(t *testing.T) {
	client := &echoClient{reply: "reply one"}
	s := New("test", Config{MaxTurns: 3, SystemPrompt: "system here"}, client)

	reply, err := s.ContinueWithPrompt(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "reply one", reply)
	assert.Equal(t, 1, s.TurnCount())

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, RoleUser, msgs[1].Role)
	assert.Equal(t, "hello", msgs[1].Content)
	assert.Equal(t, RoleAssistant, msgs[2].Role)
}

// Each provider call carries only the system prompt and the current
// prompt; the retained history is audit-only.
func TestContinueWithPrompt_SelfContainedRequests(t *testing.T) {
	client := &echoClient{reply: "reply"}
	s := New("test", Config{MaxTurns: 5, SystemPrompt: "sys"}, client)

	_, err := s.ContinueWithPrompt(context.Background(), "first prompt")
	require.NoError(t, err)
	_, err = s.ContinueWithPrompt(context.Background(), "second prompt")
	require.NoError(t, err)

	assert.Equal(t, []string{"sys", "sys"}, client.systems)
	assert.Equal(t, []string{"first prompt", "second prompt"}, client.prompts)
	assert.NotContains(t, client.prompts[1], "first prompt",
		"earlier turns are not replayed into later requests")
	assert.Len(t, s.Messages(), 5, "history still records every exchange")
}

func TestTurnBudget_ExhaustionFailsConversation(t *testing.T) {
	const maxTurns = 3
	client := &echoClient{reply: "ok"}
	s := New("test", Config{MaxTurns: maxTurns}, client)

	for i := 0; i < maxTurns; i++ {
		_, err := s.ContinueWithPrompt(context.Background(), fmt.Sprintf("turn %d", i))
		require.NoError(t, err)
	}
	require.Equal(t, LifecycleActive, s.Lifecycle())

	// The (maxTurns+1)th call must fail and leave the conversation failed.
	_, err := s.ContinueWithPrompt(context.Background(), "one too many")
	require.ErrorIs(t, err, ErrTurnBudget)
	assert.Equal(t, LifecycleFailed, s.Lifecycle())
	assert.Equal(t, maxTurns, s.TurnCount())
	assert.Equal(t, maxTurns, client.calls, "the over-budget call must not reach the provider")
}

func TestProviderFailure_FailsWithoutRetry(t *testing.T) {
	boom := errors.New("provider exploded")
	client := &echoClient{err: boom}
	s := New("test", Config{MaxTurns: 5}, client)

	_, err := s.ContinueWithPrompt(context.Background(), "hello")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, LifecycleFailed, s.Lifecycle())
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 1, s.TurnCount(), "the failed call still consumed a turn")

	// Failed is terminal for the primitive itself.
	_, err = s.ContinueWithPrompt(context.Background(), "again")
	assert.ErrorIs(t, err, ErrNotActive)
	assert.Equal(t, 1, client.calls)
}

func TestRevive_RestoresActiveKeepingTurns(t *testing.T) {
	client := &echoClient{err: errors.New("transient")}
	s := New("test", Config{MaxTurns: 5}, client)

	_, err := s.ContinueWithPrompt(context.Background(), "hello")
	require.Error(t, err)
	require.Equal(t, LifecycleFailed, s.Lifecycle())

	require.NoError(t, s.Revive())
	assert.Equal(t, LifecycleActive, s.Lifecycle())
	assert.Equal(t, 1, s.TurnCount())

	client.err = nil
	client.reply = "recovered"
	reply, err := s.ContinueWithPrompt(context.Background(), "hello again")
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply)
	assert.Equal(t, 2, s.TurnCount())

	assert.Error(t, s.Revive(), "revive is only valid from failed")
}

func TestPruning_PreservesSystemAndNewest(t *testing.T) {
	s := New("test", Config{
		MaxTurns:      100,
		ContextBudget: 1024,
		SystemPrompt:  "keep me",
	}, &echoClient{})

	filler := strings.Repeat("x", 300)
	for i := 0; i < 10; i++ {
		s.AddMessage(RoleUser, fmt.Sprintf("%d-%s", i, filler))
	}

	msgs := s.Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "keep me", msgs[0].Content)

	last := msgs[len(msgs)-1]
	assert.True(t, strings.HasPrefix(last.Content, "9-"), "newest message must survive pruning")

	// Oldest non-system entries were the ones dropped.
	for _, m := range msgs[1:] {
		assert.NotEqual(t, "0-"+filler, m.Content)
	}
}

func TestPauseResume(t *testing.T) {
	client := &echoClient{reply: "ok"}
	s := New("test", Config{MaxTurns: 5}, client)

	require.NoError(t, s.Pause())
	assert.Equal(t, LifecyclePaused, s.Lifecycle())

	_, err := s.ContinueWithPrompt(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotActive)
	assert.Zero(t, client.calls)

	assert.ErrorIs(t, s.Pause(), ErrNotActive)
	require.NoError(t, s.Resume())
	assert.Equal(t, LifecycleActive, s.Lifecycle())
	assert.ErrorIs(t, s.Resume(), ErrNotPaused)

	_, err = s.ContinueWithPrompt(context.Background(), "hello")
	require.NoError(t, err)
}

func TestCompleteIsTerminal(t *testing.T) {
	s := New("test", Config{MaxTurns: 5}, &echoClient{reply: "ok"})

	require.NoError(t, s.Complete())
	assert.Equal(t, LifecycleComplete, s.Lifecycle())

	_, err := s.ContinueWithPrompt(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotActive)
	assert.Error(t, s.Complete())
	assert.Error(t, s.Revive())

	s.Fail()
	assert.Equal(t, LifecycleComplete, s.Lifecycle(), "fail must not demote a completed conversation")
}

func TestReset(t *testing.T) {
	client := &echoClient{reply: "ok"}
	s := New("test", Config{MaxTurns: 2, SystemPrompt: "sys"}, client)

	_, err := s.ContinueWithPrompt(context.Background(), "a")
	require.NoError(t, err)
	_, err = s.ContinueWithPrompt(context.Background(), "b")
	require.NoError(t, err)
	_, err = s.ContinueWithPrompt(context.Background(), "c")
	require.ErrorIs(t, err, ErrTurnBudget)

	s.Reset(true)
	assert.Equal(t, LifecycleActive, s.Lifecycle())
	assert.Zero(t, s.TurnCount())
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleSystem, msgs[0].Role)

	s.Reset(false)
	assert.Empty(t, s.Messages())
}

func TestDefaultsApplied(t *testing.T) {
	s := New("test", Config{}, &echoClient{})
	assert.Equal(t, DefaultConfig().MaxTurns, s.Config().MaxTurns)
	assert.Equal(t, DefaultConfig().ContextBudget, s.Config().ContextBudget)
	assert.NotEmpty(t, s.ID())
}

package ingest_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robalyx/sentinel/internal/dispatcher"
	"github.com/robalyx/sentinel/internal/engine"
	"github.com/robalyx/sentinel/internal/engine/config"
	"github.com/robalyx/sentinel/internal/engine/types"
	"github.com/robalyx/sentinel/internal/engine/types/enum"
	"github.com/robalyx/sentinel/internal/worker/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chanSource feeds events from a channel and reports context cancellation
// once the channel drains.
type chanSource struct {
	events chan *types.Event
}

func (s *chanSource) Next(ctx context.Context) (*types.Event, error) {
	select {
	case event := <-s.events:
		return event, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func setupTest(t *testing.T) (*ingest.Worker, *engine.Engine) {
	t.Helper()

	rs, err := config.NewRuleSet(config.DefaultValues())
	require.NoError(t, err)

	e := engine.New(nil, zap.NewNop())
	d := dispatcher.New(nil, nil, zap.NewNop())
	rules := func(string) *config.RuleSet { return rs }

	return ingest.New(e, rules, d, 4, zap.NewNop()), e
}

func spamEvent(actor string, ts time.Time) *types.Event {
	return &types.Event{
		Kind:      enum.EventKindMessage,
		Community: "community",
		ActorID:   actor,
		Timestamp: ts,
		Profile: &types.Profile{
			DisplayName: "alexandra",
			CreatedAt:   ts.AddDate(-1, 0, 0),
			HasAvatar:   true,
		},
		Message: &types.Message{
			Text:  "FREE NITRO click here to claim now",
			Links: []string{"https://bit.ly/claim"},
		},
	}
}

func TestProcessEscalatesActor(t *testing.T) {
	t.Parallel()

	w, e := setupTest(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := range 6 {
		w.Process(t.Context(), spamEvent("spammer", now.Add(time.Duration(i)*time.Second)))
	}

	assert.Equal(t, enum.StageBanned, e.ActorState("community", "spammer").Stage)
}

func TestProcessSurvivesMissingConfig(t *testing.T) {
	t.Parallel()

	e := engine.New(nil, zap.NewNop())
	d := dispatcher.New(nil, nil, zap.NewNop())
	rules := func(string) *config.RuleSet { return nil }
	w := ingest.New(e, rules, d, 1, zap.NewNop())

	// Evaluation fails closed; processing must not panic or enforce.
	w.Process(t.Context(), spamEvent("actor", time.Now()))
	assert.Equal(t, enum.StageClean, e.ActorState("community", "actor").Stage)
}

// failingSource always errors without blocking, like a queue whose backend
// is down.
type failingSource struct {
	calls atomic.Int64
}

func (s *failingSource) Next(ctx context.Context) (*types.Event, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.calls.Add(1)
	return nil, errors.New("backend unavailable")
}

func TestRunPacesFailingSource(t *testing.T) {
	t.Parallel()

	w, _ := setupTest(t)
	source := &failingSource{}

	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, source)
	}()

	// A broken source must not spin the read loop hot: over this span only a
	// couple of paced attempts fit.
	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}

	assert.LessOrEqual(t, source.calls.Load(), int64(3))
}

func TestRunDrainsUntilCancelled(t *testing.T) {
	t.Parallel()

	w, e := setupTest(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	source := &chanSource{events: make(chan *types.Event, 16)}
	for i := range 6 {
		source.events <- spamEvent("spammer", now.Add(time.Duration(i)*time.Second))
	}

	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, source)
	}()

	// Wait for the queue to drain, then stop the worker.
	require.Eventually(t, func() bool {
		return e.ActorState("community", "spammer").Stage == enum.StageBanned
	}, 5*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

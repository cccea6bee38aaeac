// Package ingest drains observed events into the detection engine with a
// bounded worker pool. Backpressure is the queue's problem; the engine is
// safe at arbitrary call rates.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/robalyx/sentinel/internal/dispatcher"
	"github.com/robalyx/sentinel/internal/engine"
	"github.com/robalyx/sentinel/internal/engine/config"
	"github.com/robalyx/sentinel/internal/engine/types"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// sourceErrorDelay paces retries when the source itself is failing, so a dead
// queue backend does not spin the read loop hot.
const sourceErrorDelay = time.Second

// RuleProvider returns the current validated ruleset snapshot for a
// community, or nil when the community has no usable configuration. Hot
// reloads swap what this returns between calls.
type RuleProvider func(community string) *config.RuleSet

// Source supplies the next pending event, blocking until one arrives or the
// context ends. A (nil, nil) return means temporarily empty.
type Source interface {
	Next(ctx context.Context) (*types.Event, error)
}

// Worker pushes events through the engine and forwards directives to the
// dispatcher.
type Worker struct {
	engine     *engine.Engine
	rules      RuleProvider
	dispatcher *dispatcher.Dispatcher
	logger     *zap.Logger
	workers    int
}

// New creates an ingest worker running evaluation on up to workers goroutines.
func New(e *engine.Engine, rules RuleProvider, d *dispatcher.Dispatcher, workers int, logger *zap.Logger) *Worker {
	if workers <= 0 {
		workers = 1
	}
	return &Worker{
		engine:     e,
		rules:      rules,
		dispatcher: d,
		logger:     logger.Named("ingest"),
		workers:    workers,
	}
}

// Run drains the source until the context ends. Evaluations for different
// actors proceed in parallel; the engine serializes per actor internally.
func (w *Worker) Run(ctx context.Context, source Source) error {
	p := pool.New().WithMaxGoroutines(w.workers)

	for {
		event, err := source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			w.logger.Error("Failed to read next event", zap.Error(err))

			select {
			case <-ctx.Done():
			case <-time.After(sourceErrorDelay):
			}
			continue
		}
		if event == nil {
			if ctx.Err() != nil {
				break
			}
			continue
		}

		p.Go(func() {
			w.process(ctx, event)
		})
	}

	p.Wait()
	return ctx.Err()
}

// Process evaluates a single event synchronously. Exposed for hosts that
// feed events directly instead of through a queue.
func (w *Worker) Process(ctx context.Context, event *types.Event) {
	w.process(ctx, event)
}

func (w *Worker) process(ctx context.Context, event *types.Event) {
	rs := w.rules(event.Community)

	decision, err := w.engine.Evaluate(ctx, event, rs)
	if err != nil {
		// Fail closed: a config or caller problem means no enforcement.
		w.logger.Warn("Evaluation failed, no action taken",
			zap.String("community", event.Community),
			zap.String("actorID", event.ActorID),
			zap.Error(err))
		return
	}

	state := w.engine.ActorState(event.Community, event.ActorID)
	if err := w.dispatcher.Dispatch(ctx, decision, state); err != nil {
		w.logger.Error("Failed to dispatch decision",
			zap.String("community", event.Community),
			zap.String("actorID", event.ActorID),
			zap.Error(err))
	}
}

// Package dispatcher hands the engine's directives to the durable side of
// the system: every enforcement decision is recorded as an infraction and the
// actor's suspicion snapshot is persisted. Executing the action against the
// chat platform stays with the host.
package dispatcher

import (
	"context"
	"time"

	"github.com/robalyx/sentinel/internal/engine"
	"github.com/robalyx/sentinel/internal/engine/types"
	"github.com/robalyx/sentinel/internal/engine/types/enum"
	"github.com/robalyx/sentinel/internal/storage/database"
	"github.com/robalyx/sentinel/internal/storage/database/models"
	"github.com/robalyx/sentinel/pkg/utils"
	"go.uber.org/zap"
)

// Dispatcher records enforcement outcomes with retry. The engine itself
// never retries; delivery durability lives here.
type Dispatcher struct {
	db     *database.Client
	store  engine.StateStore
	logger *zap.Logger
}

// New creates a Dispatcher. db and store may each be nil, disabling the
// corresponding sink.
func New(db *database.Client, store engine.StateStore, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		db:     db,
		store:  store,
		logger: logger.Named("dispatcher"),
	}
}

// Dispatch records a decision. Decisions without an action are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, decision types.Decision, state types.SuspicionState) error {
	if decision.Action == enum.ActionKindNone {
		return nil
	}

	d.logger.Info("Dispatching enforcement action",
		zap.String("community", decision.Community),
		zap.String("actorID", decision.ActorID),
		zap.String("action", decision.Action.String()),
		zap.String("reason", decision.Reason))

	if d.db != nil {
		infraction := &models.Infraction{
			Community: decision.Community,
			ActorID:   decision.ActorID,
			Action:    decision.Action,
			Stage:     decision.Stage,
			Score:     decision.Score,
			Reason:    decision.Reason,
			CreatedAt: time.Now(),
		}

		err := utils.WithRetry(ctx, func() error {
			return d.db.Infractions().Log(ctx, infraction)
		}, utils.GetStoreRetryOptions())
		if err != nil {
			return err
		}
	}

	// Community-wide directives carry no actor snapshot to persist.
	if d.store != nil && decision.ActorID != "" {
		err := utils.WithRetry(ctx, func() error {
			return d.store.Save(ctx, decision.Community, decision.ActorID, state, 0)
		}, utils.GetStoreRetryOptions())
		if err != nil {
			return err
		}
	}

	return nil
}

package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/sentinel/internal/engine/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Infraction records one enforcement directive the engine emitted, giving
// moderators a durable audit trail per community and actor.
type Infraction struct {
	bun.BaseModel `bun:"table:infractions,alias:i"`

	ID        uuid.UUID       `bun:",pk,type:uuid"`
	Community string          `bun:",notnull"`
	ActorID   string          `bun:",notnull"`
	Action    enum.ActionKind `bun:",notnull"`
	Stage     enum.Stage      `bun:",notnull"`
	Score     float64         `bun:",notnull"`
	Reason    string
	CreatedAt time.Time `bun:",notnull"`
}

// InfractionModel handles database operations for infraction records.
type InfractionModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewInfraction creates an InfractionModel repository.
func NewInfraction(db *bun.DB, logger *zap.Logger) *InfractionModel {
	return &InfractionModel{
		db:     db,
		logger: logger.Named("infractions"),
	}
}

// Log stores a new infraction record.
func (m *InfractionModel) Log(ctx context.Context, infraction *Infraction) error {
	if infraction.ID == uuid.Nil {
		infraction.ID = uuid.New()
	}
	if infraction.CreatedAt.IsZero() {
		infraction.CreatedAt = time.Now()
	}

	if _, err := m.db.NewInsert().Model(infraction).Exec(ctx); err != nil {
		return fmt.Errorf("failed to log infraction for %s/%s: %w", infraction.Community, infraction.ActorID, err)
	}

	m.logger.Debug("Logged infraction",
		zap.String("community", infraction.Community),
		zap.String("actorID", infraction.ActorID),
		zap.String("action", infraction.Action.String()))
	return nil
}

// ListByActor returns an actor's infractions, newest first.
func (m *InfractionModel) ListByActor(ctx context.Context, community, actorID string, limit int) ([]Infraction, error) {
	var infractions []Infraction
	err := m.db.NewSelect().
		Model(&infractions).
		Where("community = ?", community).
		Where("actor_id = ?", actorID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list infractions for %s/%s: %w", community, actorID, err)
	}
	return infractions, nil
}

// CountSince returns how many infractions a community accumulated after the
// given time, for host-side statistics.
func (m *InfractionModel) CountSince(ctx context.Context, community string, since time.Time) (int, error) {
	count, err := m.db.NewSelect().
		Model((*Infraction)(nil)).
		Where("community = ?", community).
		Where("created_at > ?", since).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count infractions for %s: %w", community, err)
	}
	return count, nil
}

// Package engine implements the behavioral detection and progressive
// enforcement core: heuristic scorers, sliding-window rate tracking, raid
// detection, and the per-actor escalation state machine that turns detection
// signals into moderation directives.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robalyx/sentinel/internal/engine/checker"
	"github.com/robalyx/sentinel/internal/engine/config"
	"github.com/robalyx/sentinel/internal/engine/escalation"
	"github.com/robalyx/sentinel/internal/engine/raid"
	"github.com/robalyx/sentinel/internal/engine/tracker"
	"github.com/robalyx/sentinel/internal/engine/types"
	"github.com/robalyx/sentinel/internal/engine/types/enum"
	"go.uber.org/zap"
)

// StateStore persists suspicion state across actor membership gaps so
// leave/rejoin cannot shed an escalation history. Implementations must treat
// a missing entry as (nil, nil).
type StateStore interface {
	Save(ctx context.Context, community, actorID string, st types.SuspicionState, ttl time.Duration) error
	Load(ctx context.Context, community, actorID string) (*types.SuspicionState, error)
	Delete(ctx context.Context, community, actorID string) error
}

type actorKey struct {
	community string
	actorID   string
}

// actorState serializes all evaluation for one actor. Operations on
// different actors share nothing but the keying map.
type actorState struct {
	mu sync.Mutex

	state types.SuspicionState

	// lastMessageNorm is the normalized text of the actor's previous message,
	// kept for the duplicate-content signal.
	lastMessageNorm string
	lastMessageAt   time.Time
}

// Engine is the evaluation facade the host calls for every observed event.
// It owns all mutable detection state, keyed per (community, actor); the
// host supplies the configuration snapshot and the event timestamp acts as
// the injected clock.
type Engine struct {
	tracker  *tracker.Tracker
	raid     *raid.Detector
	accounts *checker.AccountChecker
	messages *checker.MessageChecker
	store    StateStore
	logger   *zap.Logger

	mu     sync.RWMutex
	actors map[actorKey]*actorState
}

// New creates an Engine. store may be nil, in which case suspicion state
// lives only in memory and leave/rejoin abuse is not caught across restarts.
func New(store StateStore, logger *zap.Logger) *Engine {
	t := tracker.New(tracker.DefaultHorizon)
	return &Engine{
		tracker:  t,
		raid:     raid.NewDetector(t, logger),
		accounts: checker.NewAccountChecker(logger),
		messages: checker.NewMessageChecker(logger),
		store:    store,
		logger:   logger.Named("engine"),
		actors:   make(map[actorKey]*actorState),
	}
}

// Evaluate runs one event through exemption filtering, the relevant scorers,
// and the escalation state machine, and returns the moderation directive to
// take. The event's timestamp is the evaluation clock. An evaluation either
// fully applies its state update or, on error, has no effect.
func (e *Engine) Evaluate(ctx context.Context, event *types.Event, rs *config.RuleSet) (types.Decision, error) {
	if event == nil {
		return types.Decision{}, fmt.Errorf("%w: nil event", checker.ErrCallerMisuse)
	}
	if rs == nil {
		// Fail closed: no enforcement without a valid policy.
		return types.Decision{}, fmt.Errorf("%w: community %s", config.ErrConfigUnavailable, event.Community)
	}
	if !rs.Enabled() {
		return types.NoAction(event.Community, event.ActorID), nil
	}

	// Configured windows may exceed the tracker's current retention; widen it
	// before anything records or counts against this ruleset.
	e.tracker.ExtendHorizon(rs.MaxWindow())

	if event.Kind == enum.EventKindLeave {
		return e.handleLeave(ctx, event, rs)
	}

	// The raid detector watches the raw join stream. Exemption only bypasses
	// the per-actor scoring path, so exempt joins still count toward bursts.
	var (
		lock      types.CommunityLockState
		triggered bool
	)
	if event.Kind == enum.EventKindJoin {
		e.tracker.Record(event.Community, event.ActorID, enum.EventKindJoin, event.Timestamp)
		lock, triggered = e.raid.ObserveJoin(event.Community, rs, event.Timestamp)
	}

	if checker.IsExempt(event.ActorID, event.Profile, rs) {
		if triggered {
			return lockdownDecision(event.Community, lock, rs), nil
		}
		return types.NoAction(event.Community, event.ActorID), nil
	}

	switch event.Kind {
	case enum.EventKindJoin:
		return e.handleJoin(ctx, event, rs, lock, triggered)
	case enum.EventKindMessage:
		return e.handleMessage(event, rs)
	case enum.EventKindProfileUpdate:
		return e.handleProfileUpdate(event, rs)
	default:
		return types.Decision{}, fmt.Errorf("%w: unknown event kind %d", checker.ErrCallerMisuse, event.Kind)
	}
}

// LockState reports the community's admission state for host-side display,
// applying the automatic lift rule as of now.
func (e *Engine) LockState(community string, rs *config.RuleSet, now time.Time) types.CommunityLockState {
	return e.raid.State(community, rs, now)
}

// Unlock clears a community lockdown by administrative action.
func (e *Engine) Unlock(community string) {
	e.raid.Unlock(community)
}

// ResetActor is the explicit manual clear: the actor's stage becomes
// ManuallyCleared with score zero, and any persisted grace copy is dropped.
func (e *Engine) ResetActor(ctx context.Context, community, actorID string, now time.Time) error {
	st := e.actorState(community, actorID)

	st.mu.Lock()
	st.state = escalation.Reset(now)
	st.lastMessageNorm = ""
	st.mu.Unlock()

	if e.store != nil {
		if err := e.store.Delete(ctx, community, actorID); err != nil {
			return fmt.Errorf("failed to drop persisted state for %s/%s: %w", community, actorID, err)
		}
	}

	e.logger.Info("Actor manually cleared",
		zap.String("community", community),
		zap.String("actorID", actorID))
	return nil
}

// ActorState returns a copy of the actor's current suspicion state. Unknown
// actors report the zero state without allocating an entry.
func (e *Engine) ActorState(community, actorID string) types.SuspicionState {
	e.mu.RLock()
	st, ok := e.actors[actorKey{community: community, actorID: actorID}]
	e.mu.RUnlock()
	if !ok {
		return types.SuspicionState{}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

func (e *Engine) handleJoin(ctx context.Context, event *types.Event, rs *config.RuleSet, lock types.CommunityLockState, triggered bool) (types.Decision, error) {
	now := event.Timestamp
	st := e.actorState(event.Community, event.ActorID)

	st.mu.Lock()
	defer st.mu.Unlock()

	// A rejoin within the grace period restores the previous escalation
	// history instead of starting clean.
	if e.store != nil && st.state.UpdatedAt.IsZero() {
		if saved, err := e.store.Load(ctx, event.Community, event.ActorID); err != nil {
			e.logger.Warn("Failed to load persisted suspicion state",
				zap.String("community", event.Community),
				zap.String("actorID", event.ActorID),
				zap.Error(err))
		} else if saved != nil {
			st.state = *saved
		}
	}

	signal, err := e.accounts.Score(event.ActorID, event.Profile, rs, now)
	if err != nil {
		return types.Decision{}, err
	}

	if lock.Status == enum.LockStatusLocked {
		// Joining a community under lockdown is itself suspicious.
		st.state.JoinedDuringLockdown = true
		signal = biased(signal, rs)
	}

	decision := e.advance(st, event, signal, "account heuristics", rs, now)

	if triggered {
		// The community-wide directive overrides the individual outcome.
		return lockdownDecision(event.Community, lock, rs), nil
	}
	return decision, nil
}

func lockdownDecision(community string, lock types.CommunityLockState, rs *config.RuleSet) types.Decision {
	return types.Decision{
		Action:    enum.ActionKindLockdown,
		Community: community,
		Reason:    fmt.Sprintf("raid detected: %d joins within %ds", lock.TriggerCount, rs.Raid().WindowSeconds),
	}
}

func (e *Engine) handleMessage(event *types.Event, rs *config.RuleSet) (types.Decision, error) {
	if event.Message == nil {
		return types.Decision{}, fmt.Errorf("%w: message event without payload", checker.ErrCallerMisuse)
	}

	now := event.Timestamp
	st := e.actorState(event.Community, event.ActorID)

	st.mu.Lock()
	defer st.mu.Unlock()

	e.tracker.Record(event.Community, event.ActorID, enum.EventKindMessage, now)
	window := time.Duration(rs.Message().WindowSeconds) * time.Second
	count := e.tracker.CountInWindow(event.Community, event.ActorID, enum.EventKindMessage, window, now)

	// The previous message only counts as a duplicate candidate while it is
	// still inside the rate window.
	prev := st.lastMessageNorm
	if !st.lastMessageAt.IsZero() && st.lastMessageAt.Before(now.Add(-window)) {
		prev = ""
	}

	signal, normalized, err := e.messages.Score(event.ActorID, event.Profile, event.Message, prev, count, rs, now)
	if err != nil {
		return types.Decision{}, err
	}

	st.lastMessageNorm = normalized
	st.lastMessageAt = now

	if st.state.JoinedDuringLockdown && e.raid.State(event.Community, rs, now).Status == enum.LockStatusLocked {
		signal = biased(signal, rs)
	}

	return e.advance(st, event, signal, "message patterns", rs, now), nil
}

func (e *Engine) handleProfileUpdate(event *types.Event, rs *config.RuleSet) (types.Decision, error) {
	now := event.Timestamp
	st := e.actorState(event.Community, event.ActorID)

	st.mu.Lock()
	defer st.mu.Unlock()

	signal, err := e.accounts.Score(event.ActorID, event.Profile, rs, now)
	if err != nil {
		return types.Decision{}, err
	}

	if st.state.JoinedDuringLockdown && e.raid.State(event.Community, rs, now).Status == enum.LockStatusLocked {
		signal = biased(signal, rs)
	}

	return e.advance(st, event, signal, "account heuristics", rs, now), nil
}

// handleLeave drops the actor's in-memory state. When a store is configured
// the state survives for the rejoin grace period first.
func (e *Engine) handleLeave(ctx context.Context, event *types.Event, rs *config.RuleSet) (types.Decision, error) {
	key := actorKey{community: event.Community, actorID: event.ActorID}

	e.mu.Lock()
	st, ok := e.actors[key]
	delete(e.actors, key)
	e.mu.Unlock()

	if ok && e.store != nil {
		st.mu.Lock()
		state := st.state
		st.mu.Unlock()

		grace := time.Duration(rs.Escalation().RejoinGraceSeconds) * time.Second
		if grace > 0 && state.Stage != enum.StageClean {
			if err := e.store.Save(ctx, event.Community, event.ActorID, state, grace); err != nil {
				return types.Decision{}, fmt.Errorf("failed to persist state on leave: %w", err)
			}
		}
	}

	e.tracker.Forget(event.Community, event.ActorID)
	return types.NoAction(event.Community, event.ActorID), nil
}

// advance folds the signal into the actor's suspicion state and shapes the
// resulting directive. Callers hold st.mu.
func (e *Engine) advance(st *actorState, event *types.Event, signal float64, source string, rs *config.RuleSet, now time.Time) types.Decision {
	next, action := escalation.Advance(st.state, signal, rs, now)
	st.state = next

	if action == enum.ActionKindNone {
		return types.NoAction(event.Community, event.ActorID)
	}

	e.logger.Info("Escalation stage reached",
		zap.String("community", event.Community),
		zap.String("actorID", event.ActorID),
		zap.String("stage", next.Stage.String()),
		zap.String("action", action.String()),
		zap.Float64("score", next.Score))

	return types.Decision{
		Action:    action,
		Community: event.Community,
		ActorID:   event.ActorID,
		Reason:    fmt.Sprintf("%s raised suspicion to %.2f, stage %s", source, next.Score, next.Stage),
		Score:     next.Score,
		Stage:     next.Stage,
	}
}

// biased applies the lockdown bias to a raw signal, keeping it in [0,1]
// before accumulation.
func biased(signal float64, rs *config.RuleSet) float64 {
	signal += rs.Raid().LockdownBias
	if signal > 1 {
		return 1
	}
	return signal
}

func (e *Engine) actorState(community, actorID string) *actorState {
	key := actorKey{community: community, actorID: actorID}

	e.mu.RLock()
	st, ok := e.actors[key]
	e.mu.RUnlock()
	if ok {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok = e.actors[key]; ok {
		return st
	}
	st = &actorState{}
	e.actors[key] = st
	return st
}

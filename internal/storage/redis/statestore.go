package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"github.com/robalyx/sentinel/internal/engine/types"
	"go.uber.org/zap"
)

// StateKeyPrefix namespaces Redis keys storing suspicion state.
// Keys are formatted as "suspicion:{community}:{actorID}".
const StateKeyPrefix = "suspicion:"

// StateStore persists per-actor suspicion state in Redis. Entries written
// with a TTL cover the rejoin grace period: an actor who leaves and rejoins
// inside the grace window gets their escalation history back.
type StateStore struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewStateStore creates a state store on the given Redis client.
func NewStateStore(client rueidis.Client, logger *zap.Logger) *StateStore {
	return &StateStore{
		client: client,
		logger: logger.Named("state_store"),
	}
}

// Save writes the actor's suspicion state. A positive ttl expires the entry
// after the rejoin grace period; ttl zero keeps it until overwritten.
func (s *StateStore) Save(ctx context.Context, community, actorID string, st types.SuspicionState, ttl time.Duration) error {
	payload, err := sonic.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal suspicion state: %w", err)
	}

	key := stateKey(community, actorID)
	cmd := s.client.B().Set().Key(key).Value(string(payload))
	var built rueidis.Completed
	if ttl > 0 {
		built = cmd.Ex(ttl).Build()
	} else {
		built = cmd.Build()
	}

	if err := s.client.Do(ctx, built).Error(); err != nil {
		return fmt.Errorf("failed to save suspicion state for %s: %w", key, err)
	}
	return nil
}

// Load reads the actor's persisted suspicion state. A missing entry returns
// (nil, nil).
func (s *StateStore) Load(ctx context.Context, community, actorID string) (*types.SuspicionState, error) {
	key := stateKey(community, actorID)
	resp, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load suspicion state for %s: %w", key, err)
	}

	var st types.SuspicionState
	if err := sonic.Unmarshal([]byte(resp), &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal suspicion state for %s: %w", key, err)
	}
	return &st, nil
}

// Delete drops the actor's persisted suspicion state.
func (s *StateStore) Delete(ctx context.Context, community, actorID string) error {
	key := stateKey(community, actorID)
	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete suspicion state for %s: %w", key, err)
	}
	return nil
}

func stateKey(community, actorID string) string {
	return fmt.Sprintf("%s%s:%s", StateKeyPrefix, community, actorID)
}

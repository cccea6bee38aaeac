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

// EventQueueKey is the Redis list the host pushes parsed events onto.
const EventQueueKey = "events:pending"

// EventQueue is the boundary between the host's gateway plumbing and the
// detection engine: the host enqueues parsed events, the ingest worker drains
// them. FIFO through a Redis list.
type EventQueue struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewEventQueue creates an event queue on the given Redis client.
func NewEventQueue(client rueidis.Client, logger *zap.Logger) *EventQueue {
	return &EventQueue{
		client: client,
		logger: logger.Named("event_queue"),
	}
}

// Push appends an event to the queue.
func (q *EventQueue) Push(ctx context.Context, event *types.Event) error {
	payload, err := sonic.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = q.client.Do(ctx, q.client.B().Rpush().Key(EventQueueKey).Element(string(payload)).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to push event: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for the next event. It returns (nil, nil) when
// the timeout elapses with the queue still empty.
func (q *EventQueue) Pop(ctx context.Context, timeout time.Duration) (*types.Event, error) {
	resp, err := q.client.Do(ctx,
		q.client.B().Blpop().Key(EventQueueKey).Timeout(timeout.Seconds()).Build(),
	).AsStrSlice()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop event: %w", err)
	}
	if len(resp) < 2 {
		return nil, nil
	}

	var event types.Event
	if err := sonic.Unmarshal([]byte(resp[1]), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &event, nil
}

// Length returns the number of pending events.
func (q *EventQueue) Length(ctx context.Context) int {
	count, err := q.client.Do(ctx, q.client.B().Llen().Key(EventQueueKey).Build()).ToInt64()
	if err != nil {
		q.logger.Error("Failed to get event queue length", zap.Error(err))
		return 0
	}
	return int(count)
}

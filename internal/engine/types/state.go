package types

import (
	"time"

	"github.com/robalyx/sentinel/internal/engine/types/enum"
)

// SuspicionState is the cumulative risk record kept per actor. The score is a
// decaying accumulator and the stage only moves upward under automated
// evaluation.
type SuspicionState struct {
	Score                float64    `json:"score"`
	Stage                enum.Stage `json:"stage"`
	UpdatedAt            time.Time  `json:"updatedAt"`
	JoinedDuringLockdown bool       `json:"joinedDuringLockdown"`
}

// CommunityLockState is the single shared admission state of a community.
type CommunityLockState struct {
	Status       enum.LockStatus `json:"status"`
	Since        time.Time       `json:"since"`        // When the lockdown began
	TriggerCount int             `json:"triggerCount"` // Peak joins in the window during the triggering burst
}

// Decision is the outcome of evaluating one event. A Decision with
// ActionKindNone means no enforcement is required.
type Decision struct {
	Action    enum.ActionKind `json:"action"`
	Community string          `json:"community"`
	ActorID   string          `json:"actorId"` // Empty for community-wide directives
	Reason    string          `json:"reason"`
	Score     float64         `json:"score"`
	Stage     enum.Stage      `json:"stage"`
}

// NoAction returns the empty decision for a community.
func NoAction(community, actorID string) Decision {
	return Decision{
		Action:    enum.ActionKindNone,
		Community: community,
		ActorID:   actorID,
	}
}

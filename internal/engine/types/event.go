package types

import (
	"time"

	"github.com/robalyx/sentinel/internal/engine/types/enum"
)

// Profile is a read-only snapshot of an actor's account attributes at the
// time of evaluation. It is supplied by the host and never mutated here.
type Profile struct {
	DisplayName string    `json:"displayName"` // Name shown in the community
	CreatedAt   time.Time `json:"createdAt"`   // Account creation time on the platform
	JoinedAt    time.Time `json:"joinedAt"`    // Time the actor joined this community
	HasAvatar   bool      `json:"hasAvatar"`   // Whether a custom avatar is set
	Verified    bool      `json:"verified"`    // Platform-level verification flag
	RoleIDs     []string  `json:"roleIds"`     // Roles held in this community
}

// Message carries the payload of a message event.
type Message struct {
	Text             string   `json:"text"`             // Raw message text
	MentionCount     int      `json:"mentionCount"`     // User and role mentions combined
	MentionsEveryone bool     `json:"mentionsEveryone"` // Community-wide mention used
	Links            []string `json:"links"`            // Embedded URLs
}

// Event is a single observed occurrence inside a community. Events are
// ephemeral: they are consumed once and never stored beyond what the rate
// tracker needs for window computation.
type Event struct {
	Kind      enum.EventKind `json:"kind"`
	Community string         `json:"community"`
	ActorID   string         `json:"actorId"`
	Timestamp time.Time      `json:"timestamp"`
	Profile   *Profile       `json:"profile,omitempty"`
	Message   *Message       `json:"message,omitempty"` // Set only for message events
}

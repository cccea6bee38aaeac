package enum

// ActionKind is the moderation directive the engine asks the host to carry out.
type ActionKind int

const (
	// ActionKindNone indicates no enforcement is required.
	ActionKindNone ActionKind = iota
	// ActionKindWarn asks the host to warn the actor.
	ActionKindWarn
	// ActionKindRestrict asks the host to restrict the actor and notify moderators.
	ActionKindRestrict
	// ActionKindRemove asks the host to remove the actor and notify moderators.
	ActionKindRemove
	// ActionKindLockdown asks the host to lock the community against new admissions.
	ActionKindLockdown
)

// String returns the name of the action kind.
func (a ActionKind) String() string {
	switch a {
	case ActionKindNone:
		return "None"
	case ActionKindWarn:
		return "Warn"
	case ActionKindRestrict:
		return "RestrictAndNotify"
	case ActionKindRemove:
		return "RemoveAndNotify"
	case ActionKindLockdown:
		return "Lockdown"
	default:
		return "Unknown"
	}
}

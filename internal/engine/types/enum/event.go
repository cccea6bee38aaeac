package enum

// EventKind identifies the type of an observed community event.
type EventKind int

const (
	// EventKindJoin indicates a member joined the community.
	EventKindJoin EventKind = iota
	// EventKindMessage indicates a member posted a message.
	EventKindMessage
	// EventKindProfileUpdate indicates a member changed their profile attributes.
	EventKindProfileUpdate
	// EventKindLeave indicates a member left the community.
	EventKindLeave
)

// String returns the name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventKindJoin:
		return "Join"
	case EventKindMessage:
		return "Message"
	case EventKindProfileUpdate:
		return "ProfileUpdate"
	case EventKindLeave:
		return "Leave"
	default:
		return "Unknown"
	}
}

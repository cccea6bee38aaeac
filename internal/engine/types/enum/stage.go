package enum

// Stage represents the escalation level an actor has reached.
// Automated evaluation only ever moves a stage upward; manual
// moderation is the only path back down.
type Stage int

const (
	// StageClean indicates no suspicion has crossed any threshold.
	StageClean Stage = iota
	// StageFlagged indicates the actor crossed the flag threshold and was warned.
	StageFlagged
	// StageQuarantined indicates the actor crossed the quarantine threshold and was restricted.
	StageQuarantined
	// StageBanned indicates the actor crossed the ban threshold and was removed.
	StageBanned
	// StageManuallyCleared indicates a moderator explicitly cleared the actor.
	StageManuallyCleared
)

// String returns the name of the stage.
func (s Stage) String() string {
	switch s {
	case StageClean:
		return "Clean"
	case StageFlagged:
		return "Flagged"
	case StageQuarantined:
		return "Quarantined"
	case StageBanned:
		return "Banned"
	case StageManuallyCleared:
		return "ManuallyCleared"
	default:
		return "Unknown"
	}
}

// Rank returns the ordering used for upward-only comparisons.
// ManuallyCleared ranks with Clean so a cleared actor can escalate again.
func (s Stage) Rank() int {
	if s == StageManuallyCleared {
		return int(StageClean)
	}
	return int(s)
}

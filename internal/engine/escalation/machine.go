package escalation

import (
	"time"

	"github.com/robalyx/sentinel/internal/engine/config"
	"github.com/robalyx/sentinel/internal/engine/types"
	"github.com/robalyx/sentinel/internal/engine/types/enum"
)

// Advance folds a new detection signal into an actor's suspicion state and
// returns the updated state with the action the upward transition demands.
//
// The cumulative score decays before the signal is added, so old suspicion
// fades: score' = score*decay + signal. The stage derived from the new score
// never moves the actor downward; only Reset does that. A directive is
// emitted only when the derived stage exceeds the current one, so each
// upward transition produces exactly one action.
func Advance(st types.SuspicionState, signal float64, rs *config.RuleSet, now time.Time) (types.SuspicionState, enum.ActionKind) {
	cfg := rs.Escalation()

	st.Score = st.Score*cfg.DecayFactor + signal
	st.UpdatedAt = now

	derived := stageFor(st.Score, cfg)
	if derived.Rank() <= st.Stage.Rank() {
		if st.Stage == enum.StageManuallyCleared && derived == enum.StageClean {
			st.Stage = enum.StageClean
		}
		return st, enum.ActionKindNone
	}

	st.Stage = derived
	return st, actionFor(derived)
}

// Reset returns the state produced by an explicit manual clear: stage
// ManuallyCleared with the score zeroed. Automated evaluation treats the
// cleared stage like Clean, so the actor can escalate again from scratch.
func Reset(now time.Time) types.SuspicionState {
	return types.SuspicionState{
		Score:     0,
		Stage:     enum.StageManuallyCleared,
		UpdatedAt: now,
	}
}

func stageFor(score float64, cfg config.EscalationValues) enum.Stage {
	switch {
	case score >= cfg.BanThreshold:
		return enum.StageBanned
	case score >= cfg.QuarantineThreshold:
		return enum.StageQuarantined
	case score >= cfg.FlagThreshold:
		return enum.StageFlagged
	default:
		return enum.StageClean
	}
}

func actionFor(stage enum.Stage) enum.ActionKind {
	switch stage {
	case enum.StageFlagged:
		return enum.ActionKindWarn
	case enum.StageQuarantined:
		return enum.ActionKindRestrict
	case enum.StageBanned:
		return enum.ActionKindRemove
	default:
		return enum.ActionKindNone
	}
}

package escalation_test

import (
	"testing"
	"time"

	"github.com/robalyx/sentinel/internal/engine/config"
	"github.com/robalyx/sentinel/internal/engine/escalation"
	"github.com/robalyx/sentinel/internal/engine/types"
	"github.com/robalyx/sentinel/internal/engine/types/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules(t *testing.T) *config.RuleSet {
	t.Helper()

	// decay 0.8, thresholds 0.6 / 1.2 / 2.0
	rs, err := config.NewRuleSet(config.DefaultValues())
	require.NoError(t, err)
	return rs
}

func TestAdvanceEscalatesThroughStages(t *testing.T) {
	t.Parallel()

	rs := testRules(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var st types.SuspicionState

	// 1.0 -> Flagged
	st, action := escalation.Advance(st, 1.0, rs, now)
	assert.InDelta(t, 1.0, st.Score, 1e-9)
	assert.Equal(t, enum.StageFlagged, st.Stage)
	assert.Equal(t, enum.ActionKindWarn, action)

	// 1.0*0.8 + 1.0 = 1.8 -> Quarantined
	st, action = escalation.Advance(st, 1.0, rs, now.Add(time.Second))
	assert.InDelta(t, 1.8, st.Score, 1e-9)
	assert.Equal(t, enum.StageQuarantined, st.Stage)
	assert.Equal(t, enum.ActionKindRestrict, action)

	// 1.8*0.8 + 1.0 = 2.44 -> Banned
	st, action = escalation.Advance(st, 1.0, rs, now.Add(2*time.Second))
	assert.InDelta(t, 2.44, st.Score, 1e-9)
	assert.Equal(t, enum.StageBanned, st.Stage)
	assert.Equal(t, enum.ActionKindRemove, action)

	// Already at the top, no further directive.
	st, action = escalation.Advance(st, 1.0, rs, now.Add(3*time.Second))
	assert.Equal(t, enum.StageBanned, st.Stage)
	assert.Equal(t, enum.ActionKindNone, action)
}

func TestAdvanceEmitsOneActionPerTransition(t *testing.T) {
	t.Parallel()

	rs := testRules(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var st types.SuspicionState
	actions := make(map[enum.ActionKind]int)

	for i := range 20 {
		var action enum.ActionKind
		st, action = escalation.Advance(st, 0.5, rs, now.Add(time.Duration(i)*time.Second))
		if action != enum.ActionKindNone {
			actions[action]++
		}
	}

	// Score converges to 0.5/(1-0.8) = 2.5, crossing each threshold once.
	assert.Equal(t, 1, actions[enum.ActionKindWarn])
	assert.Equal(t, 1, actions[enum.ActionKindRestrict])
	assert.Equal(t, 1, actions[enum.ActionKindRemove])
	assert.Equal(t, enum.StageBanned, st.Stage)
}

func TestDecayNeverLowersStage(t *testing.T) {
	t.Parallel()

	rs := testRules(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	st := types.SuspicionState{Score: 1.5, Stage: enum.StageQuarantined, UpdatedAt: now}

	// Quiet signals decay the score well below the quarantine threshold, but
	// the stage holds until a manual clear.
	for i := range 10 {
		var action enum.ActionKind
		st, action = escalation.Advance(st, 0, rs, now.Add(time.Duration(i)*time.Minute))
		assert.Equal(t, enum.ActionKindNone, action)
	}

	assert.Less(t, st.Score, 0.6)
	assert.Equal(t, enum.StageQuarantined, st.Stage)
}

func TestThresholdBoundaryIsInclusive(t *testing.T) {
	t.Parallel()

	rs := testRules(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	st, action := escalation.Advance(types.SuspicionState{}, 0.6, rs, now)
	assert.Equal(t, enum.StageFlagged, st.Stage)
	assert.Equal(t, enum.ActionKindWarn, action)
}

func TestResetClearsAndAllowsReescalation(t *testing.T) {
	t.Parallel()

	rs := testRules(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	st := escalation.Reset(now)
	assert.Zero(t, st.Score)
	assert.Equal(t, enum.StageManuallyCleared, st.Stage)

	// Harmless activity keeps the actor effectively clean.
	st, action := escalation.Advance(st, 0.1, rs, now.Add(time.Second))
	assert.Equal(t, enum.StageClean, st.Stage)
	assert.Equal(t, enum.ActionKindNone, action)

	// Fresh abuse escalates again from scratch.
	st, action = escalation.Advance(st, 1.0, rs, now.Add(2*time.Second))
	assert.Equal(t, enum.StageFlagged, st.Stage)
	assert.Equal(t, enum.ActionKindWarn, action)
}

package raid_test

import (
	"testing"
	"time"

	"github.com/robalyx/sentinel/internal/engine/config"
	"github.com/robalyx/sentinel/internal/engine/raid"
	"github.com/robalyx/sentinel/internal/engine/tracker"
	"github.com/robalyx/sentinel/internal/engine/types/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTest(t *testing.T, mutate func(v *config.Values)) (*raid.Detector, *config.RuleSet) {
	t.Helper()

	v := config.DefaultValues()
	if mutate != nil {
		mutate(&v)
	}

	rs, err := config.NewRuleSet(v)
	require.NoError(t, err)

	return raid.NewDetector(tracker.New(0), zap.NewNop()), rs
}

func TestJoinSurgeTriggersLockdown(t *testing.T) {
	t.Parallel()

	d, rs := setupTest(t, nil) // threshold 5 in a 60s window
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var triggers int
	for i := range 8 {
		st, triggered := d.ObserveJoin("community", rs, base.Add(time.Duration(i)*time.Second))
		if triggered {
			triggers++
			assert.Equal(t, enum.LockStatusLocked, st.Status)
			assert.Equal(t, 5, st.TriggerCount)
			assert.Equal(t, base.Add(4*time.Second), st.Since)
		}
	}

	// A sustained burst declares lockdown exactly once.
	assert.Equal(t, 1, triggers)
	assert.Equal(t, enum.LockStatusLocked, d.State("community", rs, base.Add(10*time.Second)).Status)
}

func TestBurstPastThresholdRecordsPeak(t *testing.T) {
	t.Parallel()

	d, rs := setupTest(t, func(v *config.Values) {
		v.Raid.JoinThreshold = 20
		v.Raid.WindowSeconds = 10
	})
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var triggers int
	for i := range 25 {
		_, triggered := d.ObserveJoin("community", rs, base.Add(time.Duration(i)*200*time.Millisecond))
		if triggered {
			triggers++
		}
	}

	st := d.State("community", rs, base.Add(5*time.Second))
	assert.Equal(t, 1, triggers)
	assert.Equal(t, enum.LockStatusLocked, st.Status)
	assert.Equal(t, 25, st.TriggerCount)
}

func TestSlowJoinsStayNormal(t *testing.T) {
	t.Parallel()

	d, rs := setupTest(t, nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Joins spread wider than the window never accumulate to the threshold.
	for i := range 10 {
		st, triggered := d.ObserveJoin("community", rs, base.Add(time.Duration(i)*2*time.Minute))
		assert.False(t, triggered)
		assert.Equal(t, enum.LockStatusNormal, st.Status)
	}
}

func TestCommunitiesAreIndependent(t *testing.T) {
	t.Parallel()

	d, rs := setupTest(t, nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		d.ObserveJoin("raided", rs, base.Add(time.Duration(i)*time.Second))
	}
	d.ObserveJoin("quiet", rs, base)

	assert.Equal(t, enum.LockStatusLocked, d.State("raided", rs, base.Add(5*time.Second)).Status)
	assert.Equal(t, enum.LockStatusNormal, d.State("quiet", rs, base.Add(5*time.Second)).Status)
}

func TestAutomaticLift(t *testing.T) {
	t.Parallel()

	d, rs := setupTest(t, nil) // lift: under 3 joins per 60s sustained for 120s
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		d.ObserveJoin("community", rs, base.Add(time.Duration(i)*time.Second))
	}
	require.Equal(t, enum.LockStatusLocked, d.State("community", rs, base.Add(5*time.Second)).Status)

	// Joins have left the lift window but the calm has only just begun.
	calm := base.Add(5 * time.Minute)
	assert.Equal(t, enum.LockStatusLocked, d.State("community", rs, calm).Status)

	// Still locked halfway through the sustain period.
	assert.Equal(t, enum.LockStatusLocked, d.State("community", rs, calm.Add(time.Minute)).Status)

	// Calm held long enough, the lock lifts.
	assert.Equal(t, enum.LockStatusNormal, d.State("community", rs, calm.Add(2*time.Minute)).Status)
}

func TestSurgeResetsCalmClock(t *testing.T) {
	t.Parallel()

	d, rs := setupTest(t, nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		d.ObserveJoin("community", rs, base.Add(time.Duration(i)*time.Second))
	}

	// Calm begins, then a fresh surge arrives before the sustain elapses.
	calm := base.Add(5 * time.Minute)
	require.Equal(t, enum.LockStatusLocked, d.State("community", rs, calm).Status)

	for i := range 4 {
		d.ObserveJoin("community", rs, calm.Add(time.Minute).Add(time.Duration(i)*time.Second))
	}

	// The earlier calm no longer counts toward the sustain.
	assert.Equal(t, enum.LockStatusLocked, d.State("community", rs, calm.Add(2*time.Minute)).Status)
}

func TestManualUnlock(t *testing.T) {
	t.Parallel()

	d, rs := setupTest(t, nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		d.ObserveJoin("community", rs, base.Add(time.Duration(i)*time.Second))
	}
	require.Equal(t, enum.LockStatusLocked, d.State("community", rs, base.Add(5*time.Second)).Status)

	d.Unlock("community")
	assert.Equal(t, enum.LockStatusNormal, d.State("community", rs, base.Add(6*time.Second)).Status)
}

func TestDisabledDetectorNeverLocks(t *testing.T) {
	t.Parallel()

	d, rs := setupTest(t, func(v *config.Values) {
		v.Raid.Enabled = false
	})
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := range 50 {
		st, triggered := d.ObserveJoin("community", rs, base.Add(time.Duration(i)*time.Second))
		assert.False(t, triggered)
		assert.Equal(t, enum.LockStatusNormal, st.Status)
	}
}

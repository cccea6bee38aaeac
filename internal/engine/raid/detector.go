package raid

import (
	"sync"
	"time"

	"github.com/robalyx/sentinel/internal/engine/config"
	"github.com/robalyx/sentinel/internal/engine/tracker"
	"github.com/robalyx/sentinel/internal/engine/types"
	"github.com/robalyx/sentinel/internal/engine/types/enum"
	"go.uber.org/zap"
)

// communityActor is the aggregate tracker key carrying the whole community's
// join stream.
const communityActor = "community-wide"

type lockState struct {
	status       enum.LockStatus
	since        time.Time
	triggerCount int

	// calmSince marks when joins last dropped below the lift threshold; the
	// lock lifts once the calm has been sustained long enough. Zero while the
	// join rate is still at or above the lift threshold.
	calmSince time.Time
}

// Detector watches the community-wide join rate and owns the community lock
// state. The lock transition is a check-then-set under the detector's mutex
// so two concurrent joins can never both declare lockdown.
type Detector struct {
	tracker *tracker.Tracker
	logger  *zap.Logger

	mu     sync.Mutex
	states map[string]*lockState
}

// NewDetector creates a raid detector reading join windows from the shared
// rate tracker.
func NewDetector(t *tracker.Tracker, logger *zap.Logger) *Detector {
	return &Detector{
		tracker: t,
		logger:  logger.Named("raid_detector"),
		states:  make(map[string]*lockState),
	}
}

// ObserveJoin records a community-wide join and re-evaluates the lock state.
// It returns the state after the join and whether this join triggered the
// lockdown; exactly one ObserveJoin per sustained burst reports true.
func (d *Detector) ObserveJoin(community string, rs *config.RuleSet, now time.Time) (types.CommunityLockState, bool) {
	cfg := rs.Raid()

	d.tracker.Record(community, communityActor, enum.EventKindJoin, now)
	if !cfg.Enabled {
		return types.CommunityLockState{Status: enum.LockStatusNormal}, false
	}

	window := time.Duration(cfg.WindowSeconds) * time.Second
	joins := d.tracker.CountInWindow(community, communityActor, enum.EventKindJoin, window, now)

	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.state(community)
	d.maybeLift(community, st, cfg, now)

	// A burst that keeps growing past the trigger updates the recorded size.
	if st.status == enum.LockStatusLocked && joins > st.triggerCount {
		st.triggerCount = joins
	}

	if st.status == enum.LockStatusNormal && joins >= cfg.JoinThreshold {
		st.status = enum.LockStatusLocked
		st.since = now
		st.triggerCount = joins
		st.calmSince = time.Time{}
		d.logger.Warn("Raid detected, community locked",
			zap.String("community", community),
			zap.Int("joinsInWindow", joins),
			zap.Int("threshold", cfg.JoinThreshold))
		return snapshot(st), true
	}

	return snapshot(st), false
}

// State returns the community's lock state, applying the automatic lift rule
// lazily so reads observe an up-to-date status.
func (d *Detector) State(community string, rs *config.RuleSet, now time.Time) types.CommunityLockState {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.state(community)
	if rs != nil {
		d.maybeLift(community, st, rs.Raid(), now)
	}
	return snapshot(st)
}

// Unlock clears the lock by administrative action.
func (d *Detector) Unlock(community string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.state(community)
	if st.status == enum.LockStatusLocked {
		d.logger.Info("Community lock lifted by administrator", zap.String("community", community))
	}
	*st = lockState{}
}

// maybeLift applies the automatic lift rule: joins over the lift window must
// stay strictly below the lift threshold continuously for the sustain
// duration. Any surge back above the threshold resets the calm clock.
// Callers hold d.mu.
func (d *Detector) maybeLift(community string, st *lockState, cfg config.RaidValues, now time.Time) {
	if st.status != enum.LockStatusLocked || !cfg.Enabled {
		return
	}

	liftWindow := time.Duration(cfg.LiftWindowSeconds) * time.Second
	joins := d.tracker.CountInWindow(community, communityActor, enum.EventKindJoin, liftWindow, now)

	if joins >= cfg.LiftThreshold {
		st.calmSince = time.Time{}
		return
	}

	if st.calmSince.IsZero() {
		st.calmSince = now
		return
	}

	sustain := time.Duration(cfg.LiftSustainSeconds) * time.Second
	if now.Sub(st.calmSince) >= sustain {
		d.logger.Info("Raid subsided, community lock lifted",
			zap.String("community", community),
			zap.Duration("lockedFor", now.Sub(st.since)))
		*st = lockState{}
	}
}

// state returns the community's lock state, creating it on first access.
// Callers hold d.mu.
func (d *Detector) state(community string) *lockState {
	st, ok := d.states[community]
	if !ok {
		st = &lockState{}
		d.states[community] = st
	}
	return st
}

func snapshot(st *lockState) types.CommunityLockState {
	return types.CommunityLockState{
		Status:       st.status,
		Since:        st.since,
		TriggerCount: st.triggerCount,
	}
}

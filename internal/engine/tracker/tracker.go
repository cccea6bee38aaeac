package tracker

import (
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robalyx/sentinel/internal/engine/types/enum"
)

const (
	// shardCount spreads actor windows over independent locks so recording for
	// one actor never blocks counting for another.
	shardCount = 64

	// DefaultHorizon bounds how much history any window retains until a wider
	// configured window extends it. Entries older than the horizon are purged
	// on the next access, keeping memory at O(active actors x events per
	// horizon).
	DefaultHorizon = 15 * time.Minute
)

type windowKey struct {
	community string
	actor     string
	kind      enum.EventKind
}

type shard struct {
	mu      sync.Mutex
	windows map[windowKey][]time.Time
}

// Tracker maintains per-(community, actor, kind) sliding windows of event
// timestamps. Operations on the same actor are linearized through the actor's
// shard lock; different actors usually land on different shards and proceed
// in parallel.
type Tracker struct {
	horizon atomic.Int64
	shards  [shardCount]*shard
}

// New creates a tracker retaining at most horizon of history per window.
// A non-positive horizon falls back to DefaultHorizon.
func New(horizon time.Duration) *Tracker {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	t := &Tracker{}
	t.horizon.Store(int64(horizon))
	for i := range t.shards {
		t.shards[i] = &shard{windows: make(map[windowKey][]time.Time)}
	}
	return t
}

// ExtendHorizon raises the retention horizon to at least d. Horizons only
// grow; a configured window wider than the current horizon must extend it
// before counting or older entries would already be purged.
func (t *Tracker) ExtendHorizon(d time.Duration) {
	for {
		cur := t.horizon.Load()
		if int64(d) <= cur {
			return
		}
		if t.horizon.CompareAndSwap(cur, int64(d)) {
			return
		}
	}
}

// Record appends an event timestamp to the actor's window for the given kind.
// Timestamps arriving slightly out of order are inserted in position so the
// window stays sorted; entries beyond the retention horizon are purged.
func (t *Tracker) Record(community, actor string, kind enum.EventKind, ts time.Time) {
	key := windowKey{community: community, actor: actor, kind: kind}
	s := t.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.windows[key]
	window = purge(window, ts.Add(-time.Duration(t.horizon.Load())))

	// Fast path: timestamps normally arrive in order.
	if n := len(window); n == 0 || !ts.Before(window[n-1]) {
		window = append(window, ts)
	} else {
		i := sort.Search(n, func(i int) bool { return window[i].After(ts) })
		window = append(window, time.Time{})
		copy(window[i+1:], window[i:])
		window[i] = ts
	}

	s.windows[key] = window
}

// CountInWindow returns how many recorded events of the kind fall in
// (now-window, now] for the actor.
func (t *Tracker) CountInWindow(community, actor string, kind enum.EventKind, window time.Duration, now time.Time) int {
	key := windowKey{community: community, actor: actor, kind: kind}
	s := t.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := purge(s.windows[key], now.Add(-time.Duration(t.horizon.Load())))
	if len(entries) == 0 {
		delete(s.windows, key)
		return 0
	}
	s.windows[key] = entries

	cutoff := now.Add(-window)
	lo := sort.Search(len(entries), func(i int) bool { return entries[i].After(cutoff) })
	hi := sort.Search(len(entries), func(i int) bool { return entries[i].After(now) })
	return hi - lo
}

// Forget drops all windows kept for an actor. Called when the actor leaves
// and their retention grace expires.
func (t *Tracker) Forget(community, actor string) {
	for kind := enum.EventKindJoin; kind <= enum.EventKindLeave; kind++ {
		key := windowKey{community: community, actor: actor, kind: kind}
		s := t.shardFor(key)
		s.mu.Lock()
		delete(s.windows, key)
		s.mu.Unlock()
	}
}

func (t *Tracker) shardFor(key windowKey) *shard {
	h := fnv.New32a()
	h.Write([]byte(key.community))
	h.Write([]byte{0})
	h.Write([]byte(key.actor))
	return t.shards[h.Sum32()%shardCount]
}

// purge drops entries at or before the cutoff, reusing the backing array.
func purge(entries []time.Time, cutoff time.Time) []time.Time {
	i := sort.Search(len(entries), func(i int) bool { return entries[i].After(cutoff) })
	if i == 0 {
		return entries
	}
	return append(entries[:0], entries[i:]...)
}

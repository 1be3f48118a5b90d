// Package reconcile batches unconfirmed taps, tracks the flush state machine
// and merges authoritative snapshots into optimistic local state without
// visible rollback while the player is tapping.
package reconcile

import (
	"time"

	"github.com/talgya/tap-league/internal/economy"
)

// DefaultEngagementWindow is how long after the last tap the player counts as
// actively tapping.
const DefaultEngagementWindow = 3 * time.Second

// Phase is the flush state.
type Phase int

const (
	Idle Phase = iota
	Flushing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Flushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// Delta is the optimistic effect of taps the server has not confirmed.
// A tap moves the same amount from energy to points, so Points is also the
// energy spent.
type Delta struct {
	Taps   int
	Points float64
}

func (d Delta) sub(o Delta) Delta {
	return Delta{Taps: max(d.Taps-o.Taps, 0), Points: max(d.Points-o.Points, 0)}
}

// Batch is one in-flight flush: the pending delta snapshotted at Begin.
type Batch struct {
	Delta
	Started time.Time
}

// Stats are counters for logging.
type Stats struct {
	Flushes   int
	Failures  int
	TapsSent  int
	Resyncs   int
	LastError error
}

// Reconciler owns the pending tap delta. It is not safe for concurrent use;
// the session loop serializes every call.
type Reconciler struct {
	window  time.Duration
	pending Delta
	phase   Phase
	lastTap time.Time
	drifted bool // local state changed since the last strict resync
	stats   Stats
}

// New returns a reconciler with the given engagement window.
func New(window time.Duration) *Reconciler {
	if window <= 0 {
		window = DefaultEngagementWindow
	}
	return &Reconciler{window: window}
}

// RecordTap counts one applied tap event worth value points.
func (r *Reconciler) RecordTap(now time.Time, value float64) {
	r.pending.Taps++
	r.pending.Points += value
	r.lastTap = now
	r.drifted = true
}

// Unsynced returns the number of taps not yet confirmed by the server.
func (r *Reconciler) Unsynced() int { return r.pending.Taps }

// Pending returns the optimistic delta not yet confirmed by the server.
func (r *Reconciler) Pending() Delta { return r.pending }

// Phase returns the current flush state.
func (r *Reconciler) Phase() Phase { return r.phase }

// Stats returns a copy of the flush counters.
func (r *Reconciler) Stats() Stats { return r.stats }

// Engaged reports whether the player tapped within the engagement window.
func (r *Reconciler) Engaged(now time.Time) bool {
	return !r.lastTap.IsZero() && now.Sub(r.lastTap) < r.window
}

// Begin snapshots the pending delta for a flush. It returns false when there
// is nothing to send or a flush is already in flight. Pending is not zeroed;
// Complete subtracts what was actually sent.
func (r *Reconciler) Begin(now time.Time) (Batch, bool) {
	if r.phase == Flushing || r.pending.Taps == 0 {
		return Batch{}, false
	}
	r.phase = Flushing
	return Batch{Delta: r.pending, Started: now}, true
}

// Complete finishes a flush. On error pending is left untouched so the same
// taps are retried next cycle. On success exactly the batch is removed from
// pending, keeping taps made while the request was in flight, and the
// authoritative snapshot is merged with points and energy withheld.
func (r *Reconciler) Complete(b Batch, patch economy.Patch, err error, local economy.PlayerState, now time.Time) economy.PlayerState {
	r.phase = Idle
	if err != nil {
		r.stats.Failures++
		r.stats.LastError = err
		return local
	}

	r.pending = r.pending.sub(b.Delta)
	r.stats.Flushes++
	r.stats.TapsSent += b.Taps
	r.stats.LastError = nil

	// The batch itself was optimistic local play, so a flush response never
	// carries fresher points or energy than the client already shows.
	return Merge(local, patch, true)
}

// NeedsResync reports whether a strict resync is due: the player is idle
// past the window, nothing is pending or in flight, and local state has
// drifted since the last resync.
func (r *Reconciler) NeedsResync(now time.Time) bool {
	return r.drifted && r.phase == Idle && r.pending.Taps == 0 && !r.Engaged(now)
}

// BeginResync marks a resync fetch as in flight.
func (r *Reconciler) BeginResync() bool {
	if r.phase == Flushing {
		return false
	}
	r.phase = Flushing
	return true
}

// CompleteResync applies a fetched snapshot. If the player started tapping
// again while the fetch was in flight the merge is gated like a flush.
func (r *Reconciler) CompleteResync(patch economy.Patch, err error, local economy.PlayerState, now time.Time) economy.PlayerState {
	r.phase = Idle
	if err != nil {
		r.stats.Failures++
		r.stats.LastError = err
		return local
	}
	if r.pending.Taps > 0 || r.Engaged(now) {
		return Merge(local, patch, true)
	}
	return r.Resync(local, patch)
}

// Resync replaces local state with the authoritative snapshot, then
// re-applies any taps the server has not confirmed yet. It is the merge used
// for login, purchases and offline settlement.
func (r *Reconciler) Resync(local economy.PlayerState, patch economy.Patch) economy.PlayerState {
	r.stats.Resyncs++
	r.drifted = r.pending.Taps > 0
	return Rebase(Merge(local, patch, false), r.pending)
}

// MarkDrifted records a local change that a later resync should correct,
// such as passive income the server has not settled yet.
func (r *Reconciler) MarkDrifted() { r.drifted = true }

// Rebase layers a pending delta over a confirmed state.
func Rebase(confirmed economy.PlayerState, d Delta) economy.PlayerState {
	if d.Taps == 0 {
		return confirmed
	}
	confirmed.Points += d.Points
	confirmed.Energy = max(confirmed.Energy-d.Points, 0)
	return confirmed
}

// Merge overlays an authoritative patch onto local state. While engaged the
// optimistic points and energy are kept and every other field is applied;
// otherwise every present field replaces the local value.
func Merge(local economy.PlayerState, patch economy.Patch, engaged bool) economy.PlayerState {
	if engaged {
		patch = patch.WithoutVolatile()
	}
	return patch.Apply(local)
}

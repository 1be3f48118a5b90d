package reconcile

import (
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/talgya/tap-league/internal/economy"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func tapN(r *Reconciler, n int, at time.Time) {
	for i := 0; i < n; i++ {
		r.RecordTap(at, 1)
	}
}

func TestEngagedMergeKeepsOptimisticValues(t *testing.T) {
	local := economy.NewPlayerState()
	local.Points = 1000
	local.Energy = 400

	stale := economy.Patch{
		Points:        ptr(950.0),
		Energy:        ptr(450.0),
		Multitap:      ptr(2),
		ProfitPerHour: ptr(30.0),
	}

	got := Merge(local, stale, true)
	if got.Points != 1000 || got.Energy != 400 {
		t.Fatalf("engaged merge regressed to points=%v energy=%v", got.Points, got.Energy)
	}
	if got.Boosts.Multitap != 2 || got.ProfitPerHour != 30 {
		t.Fatalf("non-volatile fields not applied: %+v", got)
	}

	got = Merge(local, stale, false)
	if got.Points != 950 || got.Energy != 450 {
		t.Fatalf("idle merge should replace: %+v", got)
	}
}

func TestCompleteSubtractsExactlyTheBatch(t *testing.T) {
	r := New(time.Second)
	tapN(r, 7, t0)

	b, ok := r.Begin(t0)
	if !ok || b.Taps != 7 || b.Points != 7 {
		t.Fatalf("Begin = %+v, %v", b, ok)
	}
	if r.Phase() != Flushing {
		t.Fatalf("phase = %s, want flushing", r.Phase())
	}

	// Taps that land while the request is in flight.
	tapN(r, 3, t0.Add(100*time.Millisecond))

	r.Complete(b, economy.Patch{}, nil, economy.NewPlayerState(), t0.Add(200*time.Millisecond))
	if r.Unsynced() != 3 {
		t.Fatalf("unsynced = %d, want 3", r.Unsynced())
	}
	if r.Phase() != Idle {
		t.Fatalf("phase = %s, want idle", r.Phase())
	}
}

func TestCompleteSubtractionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := New(time.Second)
		before := rapid.IntRange(1, 500).Draw(t, "before")
		during := rapid.IntRange(0, 500).Draw(t, "during")
		tapN(r, before, t0)
		b, ok := r.Begin(t0)
		if !ok {
			t.Fatal("Begin refused with pending taps")
		}
		tapN(r, during, t0)
		r.Complete(b, economy.Patch{}, nil, economy.NewPlayerState(), t0)
		if r.Unsynced() != during {
			t.Fatalf("unsynced = %d, want %d", r.Unsynced(), during)
		}
	})
}

func TestFailedFlushRetainsTaps(t *testing.T) {
	r := New(time.Second)
	tapN(r, 5, t0)
	local := economy.NewPlayerState()
	local.Points = 5

	b, _ := r.Begin(t0)
	got := r.Complete(b, economy.Full(economy.NewPlayerState()), errors.New("timeout"), local, t0)
	if got != local {
		t.Fatalf("failed flush changed state: %+v", got)
	}
	if r.Unsynced() != 5 {
		t.Fatalf("unsynced = %d, want 5", r.Unsynced())
	}
	if s := r.Stats(); s.Failures != 1 || s.LastError == nil {
		t.Fatalf("stats = %+v", s)
	}

	b, ok := r.Begin(t0.Add(2 * time.Second))
	if !ok || b.Taps != 5 {
		t.Fatalf("retry Begin = %+v, %v", b, ok)
	}
}

func TestBeginSkipsWhenNothingPendingOrInFlight(t *testing.T) {
	r := New(time.Second)
	if _, ok := r.Begin(t0); ok {
		t.Fatal("Begin with zero taps should skip")
	}
	r.RecordTap(t0, 1)
	b, _ := r.Begin(t0)
	r.RecordTap(t0, 1)
	if _, ok := r.Begin(t0); ok {
		t.Fatal("Begin while flushing should refuse")
	}
	r.Complete(b, economy.Patch{}, nil, economy.NewPlayerState(), t0)
	if _, ok := r.Begin(t0); !ok {
		t.Fatal("Begin after completion should proceed")
	}
}

func TestFlushResponseNeverAppliesVolatileFields(t *testing.T) {
	r := New(time.Second)
	local := economy.NewPlayerState()
	local.Points = 120
	local.Energy = 880
	tapN(r, 120, t0)

	b, _ := r.Begin(t0)
	resp := economy.Patch{Points: ptr(100.0), Energy: ptr(900.0), RechargeSpeed: ptr(2)}
	// Completed long after the last tap: still gated because the response
	// describes the batch, not fresher state.
	got := r.Complete(b, resp, nil, local, t0.Add(time.Minute))
	if got.Points != 120 || got.Energy != 880 {
		t.Fatalf("flush response applied volatile fields: %+v", got)
	}
	if got.Boosts.RechargeSpeed != 2 {
		t.Fatalf("recharge level = %d, want 2", got.Boosts.RechargeSpeed)
	}
}

func TestIdleResyncReplacesState(t *testing.T) {
	r := New(3 * time.Second)
	local := economy.NewPlayerState()
	local.Points = 10

	if r.NeedsResync(t0) {
		t.Fatal("fresh reconciler should not need a resync")
	}

	r.RecordTap(t0, 1)
	b, _ := r.Begin(t0)
	local = r.Complete(b, economy.Patch{}, nil, local, t0)

	if r.NeedsResync(t0.Add(time.Second)) {
		t.Fatal("resync while engaged")
	}
	now := t0.Add(5 * time.Second)
	if !r.NeedsResync(now) {
		t.Fatal("expected resync after idle window")
	}
	if !r.BeginResync() {
		t.Fatal("BeginResync refused")
	}
	got := r.CompleteResync(economy.Patch{Points: ptr(9.0)}, nil, local, now)
	if got.Points != 9 {
		t.Fatalf("idle resync points = %v, want 9", got.Points)
	}
	if r.NeedsResync(now.Add(time.Minute)) {
		t.Fatal("resync should clear drift")
	}
}

func TestResyncGatedWhenTappingResumes(t *testing.T) {
	r := New(3 * time.Second)
	local := economy.NewPlayerState()
	local.Points = 50
	r.MarkDrifted()

	now := t0.Add(10 * time.Second)
	if !r.NeedsResync(now) || !r.BeginResync() {
		t.Fatal("resync should start")
	}
	r.RecordTap(now, 1)
	if _, ok := r.Begin(now); ok {
		t.Fatal("flush must wait for the resync fetch")
	}
	got := r.CompleteResync(economy.Patch{Points: ptr(40.0)}, nil, local, now)
	if got.Points != 50 {
		t.Fatalf("resync overwrote optimistic points: %v", got.Points)
	}
	if r.Unsynced() != 1 {
		t.Fatalf("unsynced = %d, want 1", r.Unsynced())
	}
}

func TestEngagedWindow(t *testing.T) {
	r := New(0)
	if r.Engaged(t0) {
		t.Fatal("never tapped should not be engaged")
	}
	r.RecordTap(t0, 1)
	if !r.Engaged(t0.Add(DefaultEngagementWindow - time.Millisecond)) {
		t.Fatal("inside window should be engaged")
	}
	if r.Engaged(t0.Add(DefaultEngagementWindow)) {
		t.Fatal("at window boundary should be idle")
	}
}

func TestResyncReappliesPendingTaps(t *testing.T) {
	r := New(time.Second)
	local := economy.NewPlayerState()
	local.Points = 2006
	local.Energy = 994
	for i := 0; i < 3; i++ {
		r.RecordTap(t0, 2)
	}

	// Purchase reply computed before the three taps reached the server.
	reply := economy.Patch{Points: ptr(1000.0), Energy: ptr(1000.0), Multitap: ptr(2)}
	got := r.Resync(local, reply)
	if got.Points != 1006 || got.Energy != 994 || got.Boosts.Multitap != 2 {
		t.Fatalf("rebased state = %+v", got)
	}
	if p := r.Pending(); p.Taps != 3 || p.Points != 6 {
		t.Fatalf("pending = %+v", p)
	}

	b, _ := r.Begin(t0)
	r.Complete(b, economy.Patch{}, nil, got, t0)
	if !r.NeedsResync(t0.Add(time.Hour)) {
		t.Fatal("taps pending at resync time should leave a later resync due")
	}
}

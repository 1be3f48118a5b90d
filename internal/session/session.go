// Package session owns one player's economy state and drives it: local taps,
// energy regeneration and passive income on the engine loop, with tap sync
// and purchases against the authoritative backend.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/tap-league/internal/boost"
	"github.com/talgya/tap-league/internal/economy"
	"github.com/talgya/tap-league/internal/engine"
	"github.com/talgya/tap-league/internal/league"
	"github.com/talgya/tap-league/internal/reconcile"
)

var (
	// ErrInsufficientPoints is the local affordability check. The server
	// re-validates every purchase.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrInvalidPurchase rejects non-positive asset prices or yields.
	ErrInvalidPurchase = errors.New("invalid purchase")
)

// Config tunes a session. Zero values take the defaults.
type Config struct {
	Table            league.Table
	SyncInterval     time.Duration
	RegenInterval    time.Duration
	PassiveInterval  time.Duration
	EngagementWindow time.Duration
	RequestTimeout   time.Duration
	Clock            engine.Clock
	Logger           *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.SyncInterval <= 0 {
		c.SyncInterval = engine.SyncInterval
	}
	if c.RegenInterval <= 0 {
		c.RegenInterval = engine.RegenInterval
	}
	if c.PassiveInterval <= 0 {
		c.PassiveInterval = engine.PassiveInterval
	}
	if c.EngagementWindow <= 0 {
		c.EngagementWindow = reconcile.DefaultEngagementWindow
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Session is the single owner of a PlayerState. All reads and writes of the
// state happen on the loop goroutine; network calls run outside it and post
// their results back.
type Session struct {
	ID string

	backend Backend
	rules   economy.Rules
	loop    *engine.Loop
	rec     *reconcile.Reconciler
	log     *slog.Logger
	timeout time.Duration

	runCtx context.Context
	state  economy.PlayerState
	// inflight is closed when the running flush, resync or exclusive
	// operation ends; nil when none is running. Loop-owned.
	inflight chan struct{}
}

// New creates a session with default local state. Call Run, then Open.
func New(backend Backend, cfg Config) *Session {
	cfg = cfg.withDefaults()
	id := uuid.NewString()
	s := &Session{
		ID:      id,
		backend: backend,
		rules:   economy.NewRules(cfg.Table),
		rec:     reconcile.New(cfg.EngagementWindow),
		log:     cfg.Logger.With("session_id", id),
		timeout: cfg.RequestTimeout,
		runCtx:  context.Background(),
		state:   economy.NewPlayerState(),
	}
	s.loop = engine.NewLoop(cfg.Clock, s.log)
	s.loop.Every("regen", cfg.RegenInterval, s.regen)
	s.loop.Every("passive", cfg.PassiveInterval, s.passive)
	s.loop.Every("sync", cfg.SyncInterval, s.sync)
	return s
}

// Run drives the session until ctx is cancelled. Cancelling tears down every
// periodic task; in-flight requests are cancelled with it.
func (s *Session) Run(ctx context.Context) error {
	s.runCtx = ctx
	s.log.Info("session running")
	err := s.loop.Run(ctx)
	st := s.rec.Stats()
	s.log.Info("session stopped",
		"flushes", st.Flushes,
		"failures", st.Failures,
		"taps_sent", st.TapsSent,
		"unsynced", s.rec.Unsynced(),
	)
	return err
}

// Open logs in and settles offline passive income. Both replace local state
// outright. A failed settlement is logged and the session stays usable.
func (s *Session) Open(ctx context.Context, id Identity) (Settlement, error) {
	patch, err := s.backend.Login(ctx, id)
	if err != nil {
		return Settlement{}, fmt.Errorf("login: %w", err)
	}
	if err := s.do(ctx, func(time.Time) {
		s.state = s.rec.Resync(economy.NewPlayerState(), patch)
	}); err != nil {
		return Settlement{}, err
	}

	settled, err := s.settlePassive(ctx, false)
	if err != nil {
		s.log.Warn("passive settlement failed", "error", err)
		settled = Settlement{}
	}

	view, _ := s.View(ctx)
	s.log.Info("session opened",
		"user_id", id.ID,
		"tier", view.Tier.Name,
		"points", humanize.Comma(int64(view.State.Points)),
		"earned_offline", settled.Earned,
	)
	return settled, nil
}

// settlePassive replaces local state with the server's settlement. drifted
// marks local energy stale in the same step.
func (s *Session) settlePassive(ctx context.Context, drifted bool) (Settlement, error) {
	release, err := s.exclusive(ctx)
	if err != nil {
		return Settlement{}, err
	}
	defer release()

	settled, err := s.backend.SyncPassive(ctx)
	if err != nil {
		return Settlement{}, err
	}
	err = s.do(ctx, func(time.Time) {
		s.state = s.rec.Resync(s.state, settled.Patch)
		if drifted {
			s.rec.MarkDrifted()
		}
	})
	if err != nil {
		return Settlement{}, err
	}
	return settled, nil
}

// Tap applies one tap locally. It reports false when energy gated the tap;
// a gated tap is not an error and is never sent to the server.
func (s *Session) Tap(ctx context.Context) (bool, error) {
	applied := false
	err := s.loop.Do(ctx, func(now time.Time) {
		value := s.rules.View(s.state).TapValue
		if s.rules.Tap(&s.state) {
			s.rec.RecordTap(now, value)
			applied = true
		}
	})
	return applied, err
}

// View returns a consistent snapshot with derived stats.
func (s *Session) View(ctx context.Context) (View, error) {
	var v View
	err := s.loop.Do(ctx, func(time.Time) {
		v = View{
			State:    s.state,
			View:     s.rules.View(s.state),
			Unsynced: s.rec.Unsynced(),
			Phase:    s.rec.Phase(),
		}
	})
	return v, err
}

// BuyBoost raises one boost by a level. Pending taps are flushed first so
// the server prices against the freshest balance; the reply replaces local
// state with any still-unconfirmed taps layered on top.
func (s *Session) BuyBoost(ctx context.Context, t boost.Type) error {
	st, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	cost, err := boost.Cost(t, st.Boosts.Level(t))
	if err != nil {
		return err
	}
	if st.Points < float64(cost) {
		return fmt.Errorf("%w: %s level %d costs %s", ErrInsufficientPoints, t, st.Boosts.Level(t), humanize.Comma(cost))
	}

	release, err := s.exclusive(ctx)
	if err != nil {
		return err
	}
	defer release()

	s.flushBeforePurchase(ctx)
	patch, err := s.backend.BuyBoost(ctx, t)
	if err != nil {
		return fmt.Errorf("buy boost %s: %w", t, err)
	}
	if err := s.replace(ctx, patch); err != nil {
		return err
	}
	s.log.Info("boost purchased", "type", t, "cost", cost)
	return nil
}

// BuyAsset buys a passive-income asset that adds profitIncrease per hour.
func (s *Session) BuyAsset(ctx context.Context, cost, profitIncrease int64) error {
	if cost <= 0 || profitIncrease <= 0 {
		return fmt.Errorf("%w: cost %d, profit %d", ErrInvalidPurchase, cost, profitIncrease)
	}
	st, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	if st.Points < float64(cost) {
		return fmt.Errorf("%w: asset costs %s", ErrInsufficientPoints, humanize.Comma(cost))
	}

	release, err := s.exclusive(ctx)
	if err != nil {
		return err
	}
	defer release()

	s.flushBeforePurchase(ctx)
	patch, err := s.backend.BuyAsset(ctx, cost, profitIncrease)
	if err != nil {
		return fmt.Errorf("buy asset: %w", err)
	}
	if err := s.replace(ctx, patch); err != nil {
		return err
	}
	s.log.Info("asset purchased", "cost", cost, "profit_increase", profitIncrease)
	return nil
}

// flushBeforePurchase sends pending taps so the purchase is priced against
// them. The caller holds the session exclusively.
func (s *Session) flushBeforePurchase(ctx context.Context) {
	if err := s.flushHeld(ctx); err != nil {
		s.log.Warn("pre-purchase tap sync failed", "error", err)
	}
}

// SyncNow flushes pending taps immediately and waits for the reply. A flush
// already in flight is waited for first. It is a no-op when nothing is
// pending.
func (s *Session) SyncNow(ctx context.Context) error {
	release, err := s.exclusive(ctx)
	if err != nil {
		return err
	}
	defer release()
	return s.flushHeld(ctx)
}

func (s *Session) flushHeld(ctx context.Context) error {
	var (
		batch reconcile.Batch
		ok    bool
	)
	if err := s.loop.Do(ctx, func(now time.Time) { batch, ok = s.rec.Begin(now) }); err != nil {
		return err
	}
	if !ok {
		return nil
	}

	patch, err := s.backend.SyncTaps(ctx, batch.Taps)
	if derr := s.do(ctx, func(now time.Time) { s.completeFlush(batch, patch, err, now) }); derr != nil {
		return derr
	}
	if err != nil {
		return fmt.Errorf("sync taps: %w", err)
	}
	return nil
}

// exclusive waits for any background flush or resync to finish and keeps new
// ones from starting until release is called. Server snapshots fetched while
// holding it never overlap a batch the reconciler still counts as pending.
func (s *Session) exclusive(ctx context.Context) (release func(), err error) {
	for {
		var wait chan struct{}
		held := make(chan struct{})
		if err := s.loop.Do(ctx, func(time.Time) {
			if s.inflight != nil {
				wait = s.inflight
				return
			}
			s.inflight = held
		}); err != nil {
			return nil, err
		}
		if wait == nil {
			return func() { _ = s.do(ctx, func(time.Time) { s.finish(held) }) }, nil
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.loop.Done():
			return nil, engine.ErrStopped
		}
	}
}

// finish ends the in-flight operation identified by ch.
func (s *Session) finish(ch chan struct{}) {
	if s.inflight == ch {
		s.inflight = nil
	}
	close(ch)
}

// Suspend models the app moving to the background: periodic regen, passive
// income and sync stop firing.
func (s *Session) Suspend() {
	s.loop.SetPaused(true)
	s.log.Info("session suspended")
}

// Resume restarts periodic work and settles passive income earned while
// suspended. Energy catches up at the next idle resync.
func (s *Session) Resume(ctx context.Context) (Settlement, error) {
	s.loop.SetPaused(false)
	settled, err := s.settlePassive(ctx, true)
	if err != nil {
		return Settlement{}, fmt.Errorf("settle passive: %w", err)
	}
	s.log.Info("session resumed", "earned", settled.Earned)
	return settled, nil
}

// ── Loop tasks ──────────────────────────────────────────────────────────

func (s *Session) regen(time.Time) {
	s.rules.RegenTick(&s.state)
}

func (s *Session) passive(time.Time) {
	s.rules.PassiveTick(&s.state)
}

func (s *Session) sync(now time.Time) {
	if s.inflight != nil {
		return
	}
	if batch, ok := s.rec.Begin(now); ok {
		s.inflight = make(chan struct{})
		go s.flush(batch, s.inflight)
		return
	}
	if s.rec.NeedsResync(now) && s.rec.BeginResync() {
		s.inflight = make(chan struct{})
		go s.resync(s.inflight)
	}
}

func (s *Session) flush(batch reconcile.Batch, done chan struct{}) {
	ctx, cancel := context.WithTimeout(s.runCtx, s.timeout)
	defer cancel()
	patch, err := s.backend.SyncTaps(ctx, batch.Taps)
	s.loop.Post(func(now time.Time) {
		s.completeFlush(batch, patch, err, now)
		s.finish(done)
	})
}

func (s *Session) completeFlush(batch reconcile.Batch, patch economy.Patch, err error, now time.Time) {
	s.state = s.rec.Complete(batch, patch, err, s.state, now)
	if err != nil {
		s.log.Warn("tap sync failed, will retry", "taps", batch.Taps, "error", err)
		return
	}
	s.log.Debug("taps synced", "taps", batch.Taps, "latency", now.Sub(batch.Started), "unsynced", s.rec.Unsynced())
}

func (s *Session) resync(done chan struct{}) {
	ctx, cancel := context.WithTimeout(s.runCtx, s.timeout)
	defer cancel()
	patch, err := s.backend.State(ctx)
	s.loop.Post(func(now time.Time) {
		defer s.finish(done)
		s.state = s.rec.CompleteResync(patch, err, s.state, now)
		if err != nil {
			s.log.Warn("state resync failed", "error", err)
			return
		}
		s.log.Debug("state resynced", "points", humanize.Comma(int64(s.state.Points)))
	})
}

// ── Helpers ─────────────────────────────────────────────────────────────

func (s *Session) snapshot(ctx context.Context) (economy.PlayerState, error) {
	var st economy.PlayerState
	err := s.loop.Do(ctx, func(time.Time) { st = s.state })
	return st, err
}

func (s *Session) replace(ctx context.Context, patch economy.Patch) error {
	return s.do(ctx, func(time.Time) { s.state = s.rec.Resync(s.state, patch) })
}

// do applies a server result. It ignores ctx cancellation once the result is
// in hand so the reconciler never stays mid-flush.
func (s *Session) do(ctx context.Context, job engine.Job) error {
	return s.loop.Do(context.WithoutCancel(ctx), job)
}

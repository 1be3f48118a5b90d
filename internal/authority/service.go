// Package authority implements the server-side game rules. It recomputes
// every currency change from its own stored state: clients report tap
// counts and purchase intents, never point values.
package authority

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/talgya/tap-league/internal/boost"
	"github.com/talgya/tap-league/internal/economy"
	"github.com/talgya/tap-league/internal/engine"
	"github.com/talgya/tap-league/internal/league"
	"github.com/talgya/tap-league/internal/persistence"
)

const (
	// MaxTapsPerSync bounds one tap batch.
	MaxTapsPerSync = 1000
	// MaxOfflineAccrual caps passive income credited for one absence.
	MaxOfflineAccrual = 3 * time.Hour
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrNotFound           = errors.New("player not found")
)

// Store is the player storage the service needs.
type Store interface {
	GetPlayer(ctx context.Context, id int64) (*persistence.Player, error)
	CreatePlayer(ctx context.Context, p *persistence.Player) (bool, error)
	SavePlayer(ctx context.Context, p *persistence.Player) error
}

// Profile is the Telegram identity presented at login.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	IsPremium bool
}

// Result is a player's state after an operation.
type Result struct {
	State         economy.PlayerState
	Tier          league.Tier
	ProcessedTaps int
}

// Settlement is the outcome of a passive-income sync.
type Settlement struct {
	Earned int64
	State  economy.PlayerState
}

// Service applies game rules to stored players. Operations on one player
// are serialized; different players proceed in parallel.
type Service struct {
	store Store
	rules economy.Rules
	clock engine.Clock
	locks keyedMutex
}

// New creates a service. A nil table uses the default ladder and a nil
// clock uses wall time.
func New(store Store, table league.Table, clock engine.Clock) *Service {
	if clock == nil {
		clock = engine.SystemClock{}
	}
	return &Service{
		store: store,
		rules: economy.NewRules(table),
		clock: clock,
		locks: keyedMutex{locks: make(map[int64]*keyedEntry)},
	}
}

// Login creates the player on first sight, refreshes the stored profile and
// regenerates energy. Passive income is left for SyncPassive so the client
// can show it as an offline lump sum.
func (s *Service) Login(ctx context.Context, prof Profile) (Result, error) {
	if prof.ID <= 0 {
		return Result{}, fmt.Errorf("%w: user id %d", ErrInvalidRequest, prof.ID)
	}
	unlock := s.locks.lock(prof.ID)
	defer unlock()

	now := s.clock.Now()
	created, err := s.store.CreatePlayer(ctx, persistence.NewPlayer(prof.ID, now))
	if err != nil {
		return Result{}, fmt.Errorf("create player: %w", err)
	}
	if created {
		slog.Info("player created", "user_id", prof.ID, "username", prof.Username)
	}

	p, err := s.load(ctx, prof.ID)
	if err != nil {
		return Result{}, err
	}
	p.Username, p.FirstName, p.LastName, p.IsPremium = prof.Username, prof.FirstName, prof.LastName, prof.IsPremium
	s.regenerate(p, now)
	return s.save(ctx, p, 0)
}

// State returns the refreshed state of a player.
func (s *Service) State(ctx context.Context, id int64) (Result, error) {
	return s.update(ctx, id, func(*economy.PlayerState) (int, error) {
		return 0, nil
	})
}

// ProcessTap applies up to taps tap events, each priced at the tap value in
// effect at that moment and stopping when energy runs out.
func (s *Service) ProcessTap(ctx context.Context, id int64, taps int) (Result, error) {
	if taps < 1 || taps > MaxTapsPerSync {
		return Result{}, fmt.Errorf("%w: taps must be 1..%d, got %d", ErrInvalidRequest, MaxTapsPerSync, taps)
	}
	return s.update(ctx, id, func(st *economy.PlayerState) (int, error) {
		processed := 0
		for processed < taps && s.rules.Tap(st) {
			processed++
		}
		if processed < taps {
			slog.Debug("tap batch truncated by energy", "user_id", id, "requested", taps, "processed", processed)
		}
		return processed, nil
	})
}

// BuyUpgrade buys the next level of a boost.
func (s *Service) BuyUpgrade(ctx context.Context, id int64, upgrade string) (Result, error) {
	t, err := boost.ParseType(upgrade)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return s.update(ctx, id, func(st *economy.PlayerState) (int, error) {
		level := st.Boosts.Level(t)
		cost, err := boost.Cost(t, level)
		if err != nil {
			return 0, err
		}
		if st.Points < float64(cost) {
			return 0, fmt.Errorf("%w: %s level %d costs %d", ErrInsufficientPoints, t, level, cost)
		}
		st.Points -= float64(cost)
		st.Boosts = st.Boosts.Raise(t)
		if t == boost.EnergyLimit {
			st.MaxEnergy = boost.MaxEnergy(st.Boosts.EnergyLimit)
		}
		slog.Info("upgrade bought", "user_id", id, "type", t, "level", st.Boosts.Level(t), "cost", cost)
		return 0, nil
	})
}

// BuyCard buys a passive-income asset. Pending passive income is settled at
// the old rate before the new rate applies.
func (s *Service) BuyCard(ctx context.Context, id, cost, profitIncrease int64) (Result, error) {
	if cost <= 0 || profitIncrease <= 0 {
		return Result{}, fmt.Errorf("%w: cost and profit increase must be positive", ErrInvalidRequest)
	}
	return s.update(ctx, id, func(st *economy.PlayerState) (int, error) {
		if st.Points < float64(cost) {
			return 0, fmt.Errorf("%w: card costs %d", ErrInsufficientPoints, cost)
		}
		st.Points -= float64(cost)
		st.ProfitPerHour += float64(profitIncrease)
		slog.Info("card bought", "user_id", id, "cost", cost, "profit_per_hour", st.ProfitPerHour)
		return 0, nil
	})
}

// SyncPassive credits passive income accrued since the last settlement,
// capped at MaxOfflineAccrual.
func (s *Service) SyncPassive(ctx context.Context, id int64) (Settlement, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		return Settlement{}, err
	}
	now := s.clock.Now()
	s.regenerate(p, now)
	earned := s.settlePassive(p, now)
	res, err := s.save(ctx, p, 0)
	if err != nil {
		return Settlement{}, err
	}
	return Settlement{Earned: int64(math.Floor(earned)), State: res.State}, nil
}

// update runs fn on a freshly refreshed player and saves the result.
func (s *Service) update(ctx context.Context, id int64, fn func(st *economy.PlayerState) (int, error)) (Result, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		return Result{}, err
	}
	now := s.clock.Now()
	s.regenerate(p, now)
	s.settlePassive(p, now)

	st := p.State()
	processed, err := fn(&st)
	if err != nil {
		return Result{}, err
	}
	p.SetState(st)
	return s.save(ctx, p, processed)
}

func (s *Service) load(ctx context.Context, id int64) (*persistence.Player, error) {
	p, err := s.store.GetPlayer(ctx, id)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load player: %w", err)
	}
	return p, nil
}

func (s *Service) save(ctx context.Context, p *persistence.Player, processed int) (Result, error) {
	if err := s.store.SavePlayer(ctx, p); err != nil {
		return Result{}, fmt.Errorf("save player: %w", err)
	}
	st := p.State()
	return Result{
		State:         st,
		Tier:          s.rules.View(st).Tier,
		ProcessedTaps: processed,
	}, nil
}

// regenerate adds energy for the time since the last sync at the player's
// current regen rate.
func (s *Service) regenerate(p *persistence.Player, now time.Time) {
	elapsed := sinceMillis(p.LastSyncTime, now)
	st := p.State()
	if elapsed > 0 && st.Energy < st.MaxEnergy {
		rate := s.rules.View(st).EnergyRegen
		st.Energy = min(st.MaxEnergy, st.Energy+elapsed.Seconds()*rate)
		p.SetState(st)
	}
	p.LastSyncTime = now.UnixMilli()
}

// settlePassive credits passive income since the last settlement and
// returns the amount credited.
func (s *Service) settlePassive(p *persistence.Player, now time.Time) float64 {
	elapsed := min(sinceMillis(p.LastPassiveSync, now), MaxOfflineAccrual)
	p.LastPassiveSync = now.UnixMilli()
	if elapsed <= 0 || p.ProfitPerHour <= 0 {
		return 0
	}
	earned := p.ProfitPerHour / economy.SecondsPerHour * elapsed.Seconds()
	p.Points += earned
	return earned
}

func sinceMillis(ms int64, now time.Time) time.Duration {
	return max(now.Sub(time.UnixMilli(ms)), 0)
}

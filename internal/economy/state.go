// Package economy holds the player's resource state and the local rules that
// mutate it: taps, energy regeneration and passive income.
package economy

import (
	"github.com/talgya/tap-league/internal/boost"
)

// PlayerState is the client-side mirror of one player's economy.
// Tier, tap value and regen are never stored; they are derived from Points
// and Boosts through a league.Table.
type PlayerState struct {
	Points        float64      `json:"points"` // fractional because of passive income
	Energy        float64      `json:"energy"`
	MaxEnergy     float64      `json:"max_energy"`
	Boosts        boost.Levels `json:"boosts"`
	ProfitPerHour float64      `json:"profit_per_hour"`
}

// NewPlayerState returns the defaults a client shows before login.
func NewPlayerState() PlayerState {
	return PlayerState{
		Energy:    boost.MaxEnergy(1),
		MaxEnergy: boost.MaxEnergy(1),
		Boosts:    boost.StartingLevels,
	}
}

// normalize restores the non-negativity and capacity invariants.
func (s PlayerState) normalize() PlayerState {
	s.Boosts = s.Boosts.Normalize()
	if s.MaxEnergy <= 0 {
		s.MaxEnergy = boost.MaxEnergy(s.Boosts.EnergyLimit)
	}
	s.Points = max(s.Points, 0)
	s.Energy = max(0, min(s.Energy, s.MaxEnergy))
	s.ProfitPerHour = max(s.ProfitPerHour, 0)
	return s
}

// Patch is a partial authoritative snapshot. A nil field was absent from the
// server response and must not overwrite local state.
type Patch struct {
	Points        *float64
	Energy        *float64
	MaxEnergy     *float64
	Multitap      *int
	EnergyLimit   *int
	RechargeSpeed *int
	ProfitPerHour *float64
}

// Apply overlays every present field of p onto s. When the energy_limit
// level changes but no max energy was sent, capacity is re-derived.
func (p Patch) Apply(s PlayerState) PlayerState {
	s.Points = valueOr(p.Points, s.Points)
	s.Energy = valueOr(p.Energy, s.Energy)
	s.Boosts.Multitap = valueOr(p.Multitap, s.Boosts.Multitap)
	s.Boosts.RechargeSpeed = valueOr(p.RechargeSpeed, s.Boosts.RechargeSpeed)
	s.ProfitPerHour = valueOr(p.ProfitPerHour, s.ProfitPerHour)

	if p.EnergyLimit != nil && *p.EnergyLimit != s.Boosts.EnergyLimit && p.MaxEnergy == nil {
		s.MaxEnergy = boost.MaxEnergy(*p.EnergyLimit)
	}
	s.Boosts.EnergyLimit = valueOr(p.EnergyLimit, s.Boosts.EnergyLimit)
	s.MaxEnergy = valueOr(p.MaxEnergy, s.MaxEnergy)

	return s.normalize()
}

// WithoutVolatile drops the fields the client simulates optimistically.
func (p Patch) WithoutVolatile() Patch {
	p.Points = nil
	p.Energy = nil
	return p
}

// Empty reports whether the patch carries no fields.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Full builds a patch carrying every field of s.
func Full(s PlayerState) Patch {
	return Patch{
		Points:        &s.Points,
		Energy:        &s.Energy,
		MaxEnergy:     &s.MaxEnergy,
		Multitap:      &s.Boosts.Multitap,
		EnergyLimit:   &s.Boosts.EnergyLimit,
		RechargeSpeed: &s.Boosts.RechargeSpeed,
		ProfitPerHour: &s.ProfitPerHour,
	}
}

func valueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}

// Package wire defines the JSON shapes exchanged between the game client and
// the authoritative backend. Responses in the wild mix camelCase and
// snake_case spellings, so every decoded snapshot accepts both and is turned
// into one canonical economy.Patch before the core sees it.
package wire

import (
	"github.com/talgya/tap-league/internal/boost"
	"github.com/talgya/tap-league/internal/economy"
)

// PlayerState is an authoritative snapshot as sent over the wire. Every field
// is optional.
type PlayerState struct {
	Points *float64 `json:"points,omitempty"`
	Energy *float64 `json:"energy,omitempty"`
	Level  *int     `json:"level,omitempty"`

	MaxEnergy          *float64 `json:"maxEnergy,omitempty"`
	MultitapLevel      *int     `json:"multitapLevel,omitempty"`
	EnergyLimitLevel   *int     `json:"energyLimitLevel,omitempty"`
	RechargeSpeedLevel *int     `json:"rechargeSpeedLevel,omitempty"`
	ProfitPerHour      *float64 `json:"profitPerHour,omitempty"`

	MaxEnergySnake          *float64 `json:"max_energy,omitempty"`
	MultitapLevelSnake      *int     `json:"multitap_level,omitempty"`
	EnergyLimitLevelSnake   *int     `json:"energy_limit_level,omitempty"`
	RechargeSpeedLevelSnake *int     `json:"recharge_speed_level,omitempty"`
	ProfitPerHourSnake      *float64 `json:"profit_per_hour,omitempty"`

	ProcessedTaps *int `json:"processed_taps,omitempty"`
}

// Patch converts the snapshot to the canonical partial state. When both
// spellings are present the camelCase one wins.
func (w PlayerState) Patch() economy.Patch {
	return economy.Patch{
		Points:        w.Points,
		Energy:        w.Energy,
		MaxEnergy:     first(w.MaxEnergy, w.MaxEnergySnake),
		Multitap:      first(w.MultitapLevel, w.MultitapLevelSnake),
		EnergyLimit:   first(w.EnergyLimitLevel, w.EnergyLimitLevelSnake),
		RechargeSpeed: first(w.RechargeSpeedLevel, w.RechargeSpeedLevelSnake),
		ProfitPerHour: first(w.ProfitPerHour, w.ProfitPerHourSnake),
	}
}

// FromState builds the camelCase snapshot the reference backend emits.
// level is the resolved league tier.
func FromState(s economy.PlayerState, level int) PlayerState {
	return PlayerState{
		Points:             &s.Points,
		Energy:             &s.Energy,
		Level:              &level,
		MaxEnergy:          &s.MaxEnergy,
		MultitapLevel:      &s.Boosts.Multitap,
		EnergyLimitLevel:   &s.Boosts.EnergyLimit,
		RechargeSpeedLevel: &s.Boosts.RechargeSpeed,
		ProfitPerHour:      &s.ProfitPerHour,
	}
}

func first[T any](vs ...*T) *T {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}

// User is the Telegram identity the client logs in with.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	IsPremium bool   `json:"is_premium,omitempty"`
}

// AuthResponse is returned by /auth.
type AuthResponse struct {
	Token     string      `json:"token"`
	User      User        `json:"user"`
	GameState PlayerState `json:"gameState"`
}

// TapRequest flushes a batch of taps.
type TapRequest struct {
	UserID int64 `json:"user_id"`
	Taps   int   `json:"taps"`
}

// UpgradeRequest buys one level of a boost.
type UpgradeRequest struct {
	UserID      int64      `json:"user_id"`
	UpgradeType boost.Type `json:"upgrade_type"`
}

// BuyCardRequest buys a passive-income asset.
type BuyCardRequest struct {
	UserID         int64 `json:"user_id"`
	Cost           int64 `json:"cost"`
	ProfitIncrease int64 `json:"profit_increase"`
}

// UserRequest carries only the player id.
type UserRequest struct {
	UserID int64 `json:"user_id"`
}

// PassiveResponse is the offline settlement result.
type PassiveResponse struct {
	Earned        int64    `json:"earned"`
	Points        *float64 `json:"points,omitempty"`
	ProfitPerHour *float64 `json:"profit_per_hour,omitempty"`
}

// Patch returns the settled points and rate.
func (r PassiveResponse) Patch() economy.Patch {
	return economy.Patch{Points: r.Points, ProfitPerHour: r.ProfitPerHour}
}

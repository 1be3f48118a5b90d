package economy

import "github.com/talgya/tap-league/internal/league"

// SecondsPerHour converts profit-per-hour into a per-second passive tick.
const SecondsPerHour = 3600

// Rules applies local mutations to a PlayerState. Every method runs to
// completion on the session loop, so no locking is needed.
type Rules struct {
	Table league.Table
}

// NewRules returns rules over table, falling back to the default ladder.
func NewRules(table league.Table) Rules {
	if len(table) == 0 {
		table = league.DefaultTable
	}
	return Rules{Table: table}
}

// View derives tier and effective stats for s.
func (r Rules) View(s PlayerState) league.View {
	return r.Table.Derive(s.Points, s.Boosts)
}

// Tap spends one tap worth of energy for the same amount of points.
// With too little energy the tap is a silent no-op and false is returned;
// the caller must only count applied taps as unsynced.
func (r Rules) Tap(s *PlayerState) bool {
	v := r.View(*s)
	if s.Energy < v.TapValue {
		return false
	}
	s.Points += v.TapValue
	s.Energy = max(s.Energy-v.TapValue, 0)
	return true
}

// RegenTick adds one second of energy regeneration, capped at MaxEnergy.
func (r Rules) RegenTick(s *PlayerState) bool {
	if s.Energy >= s.MaxEnergy {
		return false
	}
	v := r.View(*s)
	s.Energy = min(s.Energy+v.EnergyRegen, s.MaxEnergy)
	return true
}

// PassiveTick accrues one second of idle income. It does nothing while
// ProfitPerHour is zero, and starts again as soon as a purchase raises it.
func (r Rules) PassiveTick(s *PlayerState) bool {
	if s.ProfitPerHour <= 0 {
		return false
	}
	s.Points += s.ProfitPerHour / SecondsPerHour
	return true
}

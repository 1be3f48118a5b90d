package league

import "github.com/talgya/tap-league/internal/boost"

// View is the derived projection of a point total and owned boosts.
// Tier sets the floor; each boost level above 1 adds a flat increment.
type View struct {
	Standing
	TapValue    float64 `json:"tap_value"`
	EnergyRegen float64 `json:"energy_regen"`
	MaxEnergy   float64 `json:"max_energy"`
}

// Derive computes the effective stats for points and levels. It is pure and
// cheap enough to run on every tick.
func (t Table) Derive(points float64, levels boost.Levels) View {
	levels = levels.Normalize()
	st := t.Resolve(points)
	return View{
		Standing:    st,
		TapValue:    st.Tier.BaseTapValue + float64(levels.Multitap-1),
		EnergyRegen: st.Tier.BaseEnergyRegen + float64(levels.RechargeSpeed-1),
		MaxEnergy:   boost.MaxEnergy(levels.EnergyLimit),
	}
}

// LegacyTapValue is the tap value used by early clients, where the multitap
// level alone was the tap value and the tier was ignored.
//
// Deprecated: use Table.Derive.
func LegacyTapValue(multitapLevel int) float64 {
	return float64(max(multitapLevel, 1))
}

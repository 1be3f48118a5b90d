// Package league maps cumulative points onto league tiers and derives the
// effective per-tap value and energy regeneration from tier and boosts.
package league

import (
	"errors"
	"fmt"
)

// Tier is one league bracket. Tiers are immutable once a Table is built.
type Tier struct {
	Level           int     `json:"level"`
	Name            string  `json:"name"`
	MinPoints       float64 `json:"min_points"`
	BaseTapValue    float64 `json:"base_tap_value"`
	BaseEnergyRegen float64 `json:"base_energy_regen"`
}

// Table is an ordered list of tiers, ascending by MinPoints.
type Table []Tier

var ErrInvalidTable = errors.New("league: invalid table")

// DefaultTable is the production league ladder.
var DefaultTable = mustTable(Table{
	{Level: 1, Name: "Bronze", MinPoints: 0, BaseTapValue: 1, BaseEnergyRegen: 1},
	{Level: 2, Name: "Silver", MinPoints: 100, BaseTapValue: 2, BaseEnergyRegen: 1},
	{Level: 3, Name: "Gold", MinPoints: 500, BaseTapValue: 3, BaseEnergyRegen: 2},
	{Level: 4, Name: "Platinum", MinPoints: 1000, BaseTapValue: 5, BaseEnergyRegen: 2},
	{Level: 5, Name: "Diamond", MinPoints: 5000, BaseTapValue: 10, BaseEnergyRegen: 3},
	{Level: 6, Name: "Grandmaster", MinPoints: 10000, BaseTapValue: 20, BaseEnergyRegen: 4},
})

// NewTable validates tiers and returns a copy as a Table.
// Tier 1 must start at 0 points and thresholds must strictly increase.
func NewTable(tiers []Tier) (Table, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers", ErrInvalidTable)
	}
	if tiers[0].MinPoints != 0 {
		return nil, fmt.Errorf("%w: first tier starts at %v, want 0", ErrInvalidTable, tiers[0].MinPoints)
	}
	for i, t := range tiers {
		if t.Level != i+1 {
			return nil, fmt.Errorf("%w: tier at index %d has level %d", ErrInvalidTable, i, t.Level)
		}
		if t.BaseTapValue <= 0 || t.BaseEnergyRegen <= 0 {
			return nil, fmt.Errorf("%w: tier %d has non-positive base stats", ErrInvalidTable, t.Level)
		}
		if i > 0 && t.MinPoints <= tiers[i-1].MinPoints {
			return nil, fmt.Errorf("%w: tier %d threshold %v not above %v",
				ErrInvalidTable, t.Level, t.MinPoints, tiers[i-1].MinPoints)
		}
	}
	return append(Table(nil), tiers...), nil
}

func mustTable(tiers Table) Table {
	t, err := NewTable(tiers)
	if err != nil {
		panic(err)
	}
	return t
}

// Tier returns the tier with the given level.
func (t Table) Tier(level int) (Tier, bool) {
	if level < 1 || level > len(t) {
		return Tier{}, false
	}
	return t[level-1], true
}

// Standing is where a point total sits on the ladder.
type Standing struct {
	Tier     Tier
	Next     *Tier   // nil at the top tier
	Progress float64 // 0..100 towards Next
}

// NextThreshold returns the points needed for the next tier, if any.
func (s Standing) NextThreshold() (float64, bool) {
	if s.Next == nil {
		return 0, false
	}
	return s.Next.MinPoints, true
}

// Resolve finds the highest tier whose threshold is at or below points.
// Negative points fall back to the first tier.
func (t Table) Resolve(points float64) Standing {
	idx := 0
	for i := len(t) - 1; i >= 0; i-- {
		if points >= t[i].MinPoints {
			idx = i
			break
		}
	}

	st := Standing{Tier: t[idx]}
	if idx == len(t)-1 {
		st.Progress = 100
		return st
	}

	next := t[idx+1]
	st.Next = &next
	span := next.MinPoints - st.Tier.MinPoints
	st.Progress = clamp((points-st.Tier.MinPoints)/span*100, 0, 100)
	return st
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

package boost

// Levels holds the owned level of each boost. Every level is at least 1.
type Levels struct {
	Multitap      int `json:"multitap_level"`
	EnergyLimit   int `json:"energy_limit_level"`
	RechargeSpeed int `json:"recharge_speed_level"`
}

// StartingLevels is what a new player owns.
var StartingLevels = Levels{Multitap: 1, EnergyLimit: 1, RechargeSpeed: 1}

// Level returns the owned level of t, or 0 for an unknown type.
func (l Levels) Level(t Type) int {
	switch t {
	case Multitap:
		return l.Multitap
	case EnergyLimit:
		return l.EnergyLimit
	case RechargeSpeed:
		return l.RechargeSpeed
	}
	return 0
}

// Raise returns a copy with t one level higher.
func (l Levels) Raise(t Type) Levels {
	switch t {
	case Multitap:
		l.Multitap++
	case EnergyLimit:
		l.EnergyLimit++
	case RechargeSpeed:
		l.RechargeSpeed++
	}
	return l
}

// Normalize lifts any level below 1 to 1.
func (l Levels) Normalize() Levels {
	l.Multitap = max(l.Multitap, 1)
	l.EnergyLimit = max(l.EnergyLimit, 1)
	l.RechargeSpeed = max(l.RechargeSpeed, 1)
	return l
}

// Cheapest returns the boost with the lowest next-level cost.
func (l Levels) Cheapest() (Type, int64) {
	var (
		best     Type
		bestCost int64 = -1
	)
	for _, t := range Types {
		cost, err := Cost(t, l.Level(t))
		if err != nil {
			continue
		}
		if bestCost < 0 || cost < bestCost {
			best, bestCost = t, cost
		}
	}
	return best, bestCost
}

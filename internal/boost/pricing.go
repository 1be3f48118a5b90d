// Package boost defines the purchasable upgrades and their cost curves.
package boost

import (
	"errors"
	"fmt"
	"math"
)

// Type names an upgradeable stat. Values match the wire names.
type Type string

const (
	Multitap      Type = "multitap"
	EnergyLimit   Type = "energy_limit"
	RechargeSpeed Type = "recharge_speed"
)

// Types lists every purchasable boost in display order.
var Types = []Type{Multitap, EnergyLimit, RechargeSpeed}

var ErrUnknownType = errors.New("boost: unknown type")

// Energy capacity granted by the energy_limit boost.
const (
	BaseMaxEnergy     = 1000
	MaxEnergyPerLevel = 500
)

// curve is cost = base × level^exponent. Regen compounds forever, so its
// exponent is the steepest.
type curve struct {
	base     float64
	exponent float64
}

var curves = map[Type]curve{
	Multitap:      {base: 1000, exponent: 2},
	EnergyLimit:   {base: 500, exponent: 1.5},
	RechargeSpeed: {base: 2000, exponent: 2.5},
}

// ParseType validates a wire name.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if _, ok := curves[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// Cost returns the price of raising boost t from currentLevel to currentLevel+1.
// Levels below 1 are priced as level 1.
func Cost(t Type, currentLevel int) (int64, error) {
	c, ok := curves[t]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if currentLevel < 1 {
		currentLevel = 1
	}
	return int64(c.base * math.Pow(float64(currentLevel), c.exponent)), nil
}

// CanAfford reports whether points cover the next level of t. It is a UX
// hint only; the server re-validates every purchase.
func CanAfford(points float64, t Type, currentLevel int) bool {
	cost, err := Cost(t, currentLevel)
	if err != nil {
		return false
	}
	return points >= float64(cost)
}

// MaxEnergy is the energy capacity for an energy_limit level.
func MaxEnergy(energyLimitLevel int) float64 {
	if energyLimitLevel < 1 {
		energyLimitLevel = 1
	}
	return BaseMaxEnergy + float64(energyLimitLevel-1)*MaxEnergyPerLevel
}

package main

import (
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"
)

const (
	// noiseFrequency sets how fast the rhythm drifts; bursts last tens of
	// seconds.
	noiseFrequency = 0.04
	idleThreshold  = 0.45
)

// rhythm turns smooth noise into bursts of tapping and idle stretches.
type rhythm struct {
	noise   opensimplex.Noise
	maxRate float64 // taps per second at full intensity
	carry   float64
}

func newRhythm(seed int64, maxRate float64) *rhythm {
	return &rhythm{noise: opensimplex.NewNormalized(seed), maxRate: maxRate}
}

// intensity is 0 while idle and rises towards 1 mid-burst.
func (r *rhythm) intensity(elapsed time.Duration) float64 {
	v := r.noise.Eval2(elapsed.Seconds()*noiseFrequency, 0)
	if v < idleThreshold {
		return 0
	}
	return min((v-idleThreshold)/(1-idleThreshold), 1)
}

// taps returns how many taps to make in the step ending at elapsed. The
// fractional remainder carries into the next step.
func (r *rhythm) taps(elapsed, step time.Duration) int {
	r.carry += r.intensity(elapsed) * r.maxRate * step.Seconds()
	n := int(r.carry)
	r.carry -= float64(n)
	return n
}

package session

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/talgya/tap-league/internal/economy"
	"github.com/talgya/tap-league/internal/league"
	"github.com/talgya/tap-league/internal/reconcile"
)

// View is what a UI renders: raw state plus derived tier and stats.
type View struct {
	State economy.PlayerState
	league.View
	Unsynced int
	Phase    reconcile.Phase
}

// DisplayPoints floors points for presentation; the stored value keeps
// its fraction.
func (v View) DisplayPoints() int64 {
	return int64(math.Floor(v.State.Points))
}

// Display renders a one-line status.
func (v View) Display() string {
	line := fmt.Sprintf("%s %.0f%% | %s pts | energy %s/%s | +%s/tap | %s/h",
		v.Tier.Name,
		math.Floor(v.Progress),
		humanize.Comma(v.DisplayPoints()),
		humanize.Comma(int64(v.State.Energy)),
		humanize.Comma(int64(v.State.MaxEnergy)),
		humanize.Comma(int64(v.TapValue)),
		humanize.Comma(int64(v.State.ProfitPerHour)),
	)
	if next, ok := v.NextThreshold(); ok {
		line += fmt.Sprintf(" | next at %s", humanize.Comma(int64(next)))
	}
	return line
}

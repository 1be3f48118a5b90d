package wire

import (
	"encoding/json"
	"testing"

	"github.com/talgya/tap-league/internal/economy"
)

func decode(t *testing.T, body string) economy.Patch {
	t.Helper()
	var w PlayerState
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return w.Patch()
}

func TestPatchAcceptsBothSpellings(t *testing.T) {
	camel := decode(t, `{"points":10,"energy":900,"maxEnergy":1500,"multitapLevel":2,
		"energyLimitLevel":2,"rechargeSpeedLevel":3,"profitPerHour":120,"level":1}`)
	snake := decode(t, `{"points":10,"energy":900,"max_energy":1500,"multitap_level":2,
		"energy_limit_level":2,"recharge_speed_level":3,"profit_per_hour":120}`)

	base := economy.NewPlayerState()
	a, b := camel.Apply(base), snake.Apply(base)
	if a != b {
		t.Fatalf("spellings disagree:\ncamel %+v\nsnake %+v", a, b)
	}
	if a.Boosts.RechargeSpeed != 3 || a.MaxEnergy != 1500 || a.ProfitPerHour != 120 {
		t.Fatalf("unexpected state %+v", a)
	}
}

func TestPatchMixedUpgradeResponse(t *testing.T) {
	// Upgrade replies carry snake_case levels next to camelCase capacity.
	p := decode(t, `{"points":500,"energy":1000,"multitap_level":1,"energy_limit_level":2,
		"recharge_speed_level":1,"maxEnergy":1500,"profitPerHour":0}`)
	got := p.Apply(economy.NewPlayerState())
	if got.Boosts.EnergyLimit != 2 || got.MaxEnergy != 1500 || got.Points != 500 {
		t.Fatalf("unexpected state %+v", got)
	}
}

func TestPatchCamelWins(t *testing.T) {
	p := decode(t, `{"multitapLevel":4,"multitap_level":2}`)
	if p.Multitap == nil || *p.Multitap != 4 {
		t.Fatalf("multitap = %v, want 4", p.Multitap)
	}
}

func TestPatchAbsentFieldsStayNil(t *testing.T) {
	p := decode(t, `{"multitapLevel":3}`)
	if p.Points != nil || p.Energy != nil || p.ProfitPerHour != nil || p.MaxEnergy != nil {
		t.Fatalf("absent fields became present: %+v", p)
	}
}

func TestFromStateRoundTrip(t *testing.T) {
	s := economy.NewPlayerState()
	s.Points = 640
	s.Boosts.Multitap = 3
	s.ProfitPerHour = 40

	body, err := json.Marshal(FromState(s, 3))
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatal(err)
	}
	if m["level"] != float64(3) || m["multitapLevel"] != float64(3) {
		t.Fatalf("unexpected body %s", body)
	}
	if _, ok := m["multitap_level"]; ok {
		t.Fatalf("server should emit one spelling: %s", body)
	}
	if got := decode(t, string(body)).Apply(economy.NewPlayerState()); got != s {
		t.Fatalf("round trip = %+v, want %+v", got, s)
	}
}

func TestPassiveResponsePatch(t *testing.T) {
	var r PassiveResponse
	if err := json.Unmarshal([]byte(`{"earned":300,"points":1300,"profit_per_hour":100}`), &r); err != nil {
		t.Fatal(err)
	}
	p := r.Patch()
	if r.Earned != 300 || *p.Points != 1300 || *p.ProfitPerHour != 100 || p.Energy != nil {
		t.Fatalf("unexpected patch %+v", p)
	}
}

package session

//go:generate go tool mockgen -destination=./mocks/backend_mock.go -package=mocks . Backend

import (
	"context"

	"github.com/talgya/tap-league/internal/boost"
	"github.com/talgya/tap-league/internal/economy"
)

// Identity is the Telegram user a session plays as.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	IsPremium bool
}

// Settlement is the result of an offline passive-income settlement.
type Settlement struct {
	Earned int64 // whole points credited since the last settlement
	Patch  economy.Patch
}

// Backend is the authoritative game server as seen by a session. Every call
// returns a partial snapshot; absent fields keep their local values.
type Backend interface {
	Login(ctx context.Context, id Identity) (economy.Patch, error)
	State(ctx context.Context) (economy.Patch, error)
	SyncTaps(ctx context.Context, taps int) (economy.Patch, error)
	BuyBoost(ctx context.Context, t boost.Type) (economy.Patch, error)
	BuyAsset(ctx context.Context, cost, profitIncrease int64) (economy.Patch, error)
	SyncPassive(ctx context.Context) (Settlement, error)
}

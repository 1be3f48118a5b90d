// Package persistence stores player records for the reference backend.
// SQLite (modernc) is the default; Postgres is supported through lib/pq.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/talgya/tap-league/internal/boost"
	"github.com/talgya/tap-league/internal/economy"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const schemaVersion = "1"

// ErrNotFound is returned when a player or meta key has no record.
var ErrNotFound = errors.New("not found")

// Player is one stored player. Timestamps are unix milliseconds.
type Player struct {
	ID                 int64   `db:"id"`
	Username           string  `db:"username"`
	FirstName          string  `db:"first_name"`
	LastName           string  `db:"last_name"`
	IsPremium          bool    `db:"is_premium"`
	Points             float64 `db:"points"`
	Energy             float64 `db:"energy"`
	MaxEnergy          float64 `db:"max_energy"`
	MultitapLevel      int     `db:"multitap_level"`
	EnergyLimitLevel   int     `db:"energy_limit_level"`
	RechargeSpeedLevel int     `db:"recharge_speed_level"`
	ProfitPerHour      float64 `db:"profit_per_hour"`
	LastSyncTime       int64   `db:"last_sync_time"`
	LastPassiveSync    int64   `db:"last_passive_sync"`
	CreatedAt          int64   `db:"created_at"`
}

// NewPlayer returns the record a first login creates.
func NewPlayer(id int64, now time.Time) *Player {
	p := &Player{ID: id, CreatedAt: now.UnixMilli(), LastSyncTime: now.UnixMilli(), LastPassiveSync: now.UnixMilli()}
	p.SetState(economy.NewPlayerState())
	return p
}

// State returns the economy fields.
func (p *Player) State() economy.PlayerState {
	return economy.PlayerState{
		Points:    p.Points,
		Energy:    p.Energy,
		MaxEnergy: p.MaxEnergy,
		Boosts: boost.Levels{
			Multitap:      p.MultitapLevel,
			EnergyLimit:   p.EnergyLimitLevel,
			RechargeSpeed: p.RechargeSpeedLevel,
		},
		ProfitPerHour: p.ProfitPerHour,
	}
}

// SetState copies the economy fields back.
func (p *Player) SetState(s economy.PlayerState) {
	p.Points = s.Points
	p.Energy = s.Energy
	p.MaxEnergy = s.MaxEnergy
	p.MultitapLevel = s.Boosts.Multitap
	p.EnergyLimitLevel = s.Boosts.EnergyLimit
	p.RechargeSpeedLevel = s.Boosts.RechargeSpeed
	p.ProfitPerHour = s.ProfitPerHour
}

// DB wraps a SQL connection for player storage.
type DB struct {
	conn *sqlx.DB
}

// Open connects to driver at dsn and applies the schema. For SQLite, dsn is
// a file path or ":memory:".
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite:
		if dsn != ":memory:" && !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == DriverSQLite {
		// One writer; an in-memory database also lives on one connection.
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("database opened", "driver", driver)
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id BIGINT PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		is_premium BOOLEAN NOT NULL DEFAULT FALSE,
		points DOUBLE PRECISION NOT NULL,
		energy DOUBLE PRECISION NOT NULL,
		max_energy DOUBLE PRECISION NOT NULL,
		multitap_level INTEGER NOT NULL,
		energy_limit_level INTEGER NOT NULL,
		recharge_speed_level INTEGER NOT NULL,
		profit_per_hour DOUBLE PRECISION NOT NULL,
		last_sync_time BIGINT NOT NULL,
		last_passive_sync BIGINT NOT NULL,
		created_at BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS server_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_players_points ON players(points);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}
	return db.SaveMeta(context.Background(), "schema_version", schemaVersion)
}

const playerColumns = `id, username, first_name, last_name, is_premium,
	points, energy, max_energy, multitap_level, energy_limit_level, recharge_speed_level,
	profit_per_hour, last_sync_time, last_passive_sync, created_at`

// GetPlayer loads one player.
func (db *DB) GetPlayer(ctx context.Context, id int64) (*Player, error) {
	var p Player
	err := db.conn.GetContext(ctx, &p,
		db.conn.Rebind("SELECT "+playerColumns+" FROM players WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get player %d: %w", id, err)
	}
	return &p, nil
}

// CreatePlayer inserts p unless a record with its id exists. It reports
// whether a row was created.
func (db *DB) CreatePlayer(ctx context.Context, p *Player) (bool, error) {
	res, err := db.conn.NamedExecContext(ctx, `INSERT INTO players (`+playerColumns+`)
		VALUES (:id, :username, :first_name, :last_name, :is_premium,
			:points, :energy, :max_energy, :multitap_level, :energy_limit_level, :recharge_speed_level,
			:profit_per_hour, :last_sync_time, :last_passive_sync, :created_at)
		ON CONFLICT (id) DO NOTHING`, p)
	if err != nil {
		return false, fmt.Errorf("insert player %d: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert player %d: %w", p.ID, err)
	}
	return n == 1, nil
}

// SavePlayer writes every mutable column of p.
func (db *DB) SavePlayer(ctx context.Context, p *Player) error {
	res, err := db.conn.NamedExecContext(ctx, `UPDATE players SET
		username = :username, first_name = :first_name, last_name = :last_name, is_premium = :is_premium,
		points = :points, energy = :energy, max_energy = :max_energy,
		multitap_level = :multitap_level, energy_limit_level = :energy_limit_level,
		recharge_speed_level = :recharge_speed_level, profit_per_hour = :profit_per_hour,
		last_sync_time = :last_sync_time, last_passive_sync = :last_passive_sync
		WHERE id = :id`, p)
	if err != nil {
		return fmt.Errorf("update player %d: %w", p.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPlayers returns the number of stored players.
func (db *DB) CountPlayers(ctx context.Context) (int, error) {
	var n int
	err := db.conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM players")
	return n, err
}

// TopPlayers returns up to limit players ordered by points.
func (db *DB) TopPlayers(ctx context.Context, limit int) ([]Player, error) {
	var players []Player
	err := db.conn.SelectContext(ctx, &players,
		db.conn.Rebind("SELECT "+playerColumns+" FROM players ORDER BY points DESC, id LIMIT ?"), limit)
	return players, err
}

// SaveMeta stores a key-value pair in server metadata.
func (db *DB) SaveMeta(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(
		`INSERT INTO server_meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`),
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, db.conn.Rebind("SELECT value FROM server_meta WHERE key = ?"), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

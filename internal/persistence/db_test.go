package persistence

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateGetSavePlayer(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	p := NewPlayer(42, now)
	p.Username = "tapper"
	p.IsPremium = true
	created, err := db.CreatePlayer(ctx, p)
	if err != nil || !created {
		t.Fatalf("CreatePlayer = %v, %v", created, err)
	}
	created, err = db.CreatePlayer(ctx, NewPlayer(42, now))
	if err != nil || created {
		t.Fatalf("second CreatePlayer = %v, %v; want no-op", created, err)
	}

	got, err := db.GetPlayer(ctx, 42)
	if err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if *got != *p {
		t.Fatalf("stored %+v\nloaded %+v", *p, *got)
	}
	if st := got.State(); st.Energy != 1000 || st.Boosts.Multitap != 1 {
		t.Fatalf("default state = %+v", st)
	}

	st := got.State()
	st.Points = 12.5
	st.Boosts.EnergyLimit = 3
	st.MaxEnergy = 2000
	got.SetState(st)
	got.LastSyncTime = now.Add(time.Minute).UnixMilli()
	if err := db.SavePlayer(ctx, got); err != nil {
		t.Fatalf("SavePlayer: %v", err)
	}

	again, _ := db.GetPlayer(ctx, 42)
	if again.Points != 12.5 || again.EnergyLimitLevel != 3 || again.LastSyncTime != got.LastSyncTime {
		t.Fatalf("update not persisted: %+v", again)
	}
}

func TestMissingPlayer(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetPlayer(context.Background(), 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetPlayer err = %v, want ErrNotFound", err)
	}
	if err := db.SavePlayer(context.Background(), NewPlayer(7, time.Now())); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SavePlayer err = %v, want ErrNotFound", err)
	}
}

func TestTopPlayersAndCount(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for i, pts := range []float64{50, 900, 300} {
		p := NewPlayer(int64(i+1), time.Now())
		p.Points = pts
		if _, err := db.CreatePlayer(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	n, err := db.CountPlayers(ctx)
	if err != nil || n != 3 {
		t.Fatalf("CountPlayers = %d, %v", n, err)
	}
	top, err := db.TopPlayers(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].ID != 2 || top[1].ID != 3 {
		t.Fatalf("TopPlayers = %+v", top)
	}
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	v, err := db.GetMeta(ctx, "schema_version")
	if err != nil || v != schemaVersion {
		t.Fatalf("schema_version = %q, %v", v, err)
	}
	if _, err := db.GetMeta(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMeta(missing) err = %v", err)
	}
	if err := db.SaveMeta(ctx, "last_started", "a"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta(ctx, "last_started", "b"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetMeta(ctx, "last_started"); v != "b" {
		t.Fatalf("last_started = %q, want b", v)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

// Command tapserver runs the authoritative tap-league backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/talgya/tap-league/internal/api"
	"github.com/talgya/tap-league/internal/authority"
	"github.com/talgya/tap-league/internal/config"
	"github.com/talgya/tap-league/internal/persistence"
)

func main() {
	if err := run(); err != nil {
		slog.Error("tapserver failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(config.NewLogger(os.Stdout, cfg.LogLevel))

	if cfg.JWTSecret == "" {
		return fmt.Errorf("TAPLEAGUE_JWT_SECRET is required")
	}

	// ── Database ──────────────────────────────────────────────────────
	if cfg.DBDriver == persistence.DriverSQLite && cfg.DBDSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.SaveMeta(ctx, "last_started", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if n, err := db.CountPlayers(ctx); err == nil {
		slog.Info("player store ready", "driver", cfg.DBDriver, "players", n)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	srv := &api.Server{
		Svc:       authority.New(db, nil, nil),
		DB:        db,
		Port:      cfg.Port,
		Secret:    []byte(cfg.JWTSecret),
		RateLimit: rate.Limit(cfg.RateLimit),
		Origins:   cfg.Origins,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			slog.Info("received signal, shutting down")
		}
		return nil
	})

	fmt.Printf("API: http://localhost:%d/api/health\n", cfg.Port)
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Println("tapserver stopped.")
	return nil
}

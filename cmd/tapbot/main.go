// Command tapbot plays tap-league headlessly against a running tapserver.
// It taps in noise-driven bursts, goes quiet between them, spends points on
// the cheapest boost it can afford, and logs its standing.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/tap-league/internal/client"
	"github.com/talgya/tap-league/internal/config"
	"github.com/talgya/tap-league/internal/session"
)

const (
	tapStep        = 100 * time.Millisecond
	shopInterval   = time.Minute
	statusInterval = 10 * time.Second
	// suspendAfter is how long the rhythm must stay idle before the bot
	// backgrounds its session.
	suspendAfter = 30 * time.Second

	cardCost   = 2500
	cardProfit = 250
)

func main() {
	if err := run(); err != nil {
		slog.Error("tapbot failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(config.NewLogger(os.Stdout, cfg.LogLevel))

	slog.Info("tapbot starting",
		"api_url", cfg.APIURL,
		"user_id", cfg.BotUserID,
		"tap_rate", cfg.BotTapRate,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := waitForAPI(ctx, cfg.APIURL); err != nil {
		return err
	}

	c := client.New(cfg.APIURL)
	s := session.New(c, session.Config{
		SyncInterval:     cfg.SyncInterval,
		EngagementWindow: cfg.EngagementWindow,
	})

	// The session outlives ctx so the final flush can still reach the loop.
	runCtx, stopRun := context.WithCancel(context.WithoutCancel(ctx))
	var g errgroup.Group
	g.Go(func() error { return s.Run(runCtx) })
	g.Go(func() error {
		defer stopRun()
		id := session.Identity{
			ID:        cfg.BotUserID,
			Username:  fmt.Sprintf("tapbot_%d", cfg.BotUserID),
			FirstName: "Tap",
			LastName:  "Bot",
		}
		settled, err := s.Open(ctx, id)
		if err != nil {
			return err
		}
		if settled.Earned > 0 {
			slog.Info("offline earnings collected", "earned", settled.Earned)
		}
		play(ctx, s, newRhythm(cfg.BotUserID, cfg.BotTapRate))
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("tapbot stopped.")
	return nil
}

// play drives the session until ctx ends.
func play(ctx context.Context, s *session.Session, r *rhythm) {
	start := time.Now()
	tapTicker := time.NewTicker(tapStep)
	shopTicker := time.NewTicker(shopInterval)
	statusTicker := time.NewTicker(statusInterval)
	defer tapTicker.Stop()
	defer shopTicker.Stop()
	defer statusTicker.Stop()

	var (
		idleSince time.Time
		suspended bool
	)

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := s.SyncNow(flushCtx); err != nil {
				slog.Warn("final flush failed", "error", err)
			}
			cancel()
			return

		case now := <-tapTicker.C:
			n := r.taps(now.Sub(start), tapStep)
			if n == 0 {
				if idleSince.IsZero() {
					idleSince = now
				}
				if !suspended && now.Sub(idleSince) >= suspendAfter {
					s.Suspend()
					suspended = true
					slog.Info("idle, session suspended")
				}
				continue
			}
			idleSince = time.Time{}
			if suspended {
				settled, err := s.Resume(ctx)
				if err != nil {
					slog.Warn("resume settlement failed", "error", err)
				}
				suspended = false
				slog.Info("session resumed", "earned", settled.Earned)
			}
			for range n {
				if _, err := s.Tap(ctx); err != nil {
					break
				}
			}

		case <-shopTicker.C:
			if !suspended {
				shop(ctx, s)
			}

		case <-statusTicker.C:
			if v, err := s.View(ctx); err == nil {
				slog.Info(v.Display(), "unsynced", v.Unsynced, "phase", v.Phase)
			}
		}
	}
}

// shop buys the cheapest boost when affordable, otherwise a card.
func shop(ctx context.Context, s *session.Session) {
	v, err := s.View(ctx)
	if err != nil {
		return
	}
	t, cost := v.State.Boosts.Cheapest()
	switch {
	case cost >= 0 && v.State.Points >= float64(cost):
		err = s.BuyBoost(ctx, t)
		if err == nil {
			slog.Info("boost bought", "type", t, "cost", cost)
		}
	case v.State.Points >= cardCost:
		err = s.BuyAsset(ctx, cardCost, cardProfit)
		if err == nil {
			slog.Info("card bought", "cost", cardCost, "profit_increase", cardProfit)
		}
	default:
		return
	}
	switch {
	case errors.Is(err, session.ErrInsufficientPoints), errors.Is(err, client.ErrRejected):
		slog.Debug("purchase declined", "error", err)
	case err != nil:
		slog.Warn("purchase failed", "error", err)
	}
}

// waitForAPI polls the health endpoint with exponential backoff until it
// responds. It gives up after 5 minutes.
func waitForAPI(ctx context.Context, apiURL string) error {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/health", nil)
		if err != nil {
			return fmt.Errorf("health request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("tapserver API is ready")
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("tapserver API did not become ready within 5 minutes")
		}
		slog.Info("tapserver not ready, retrying...", "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

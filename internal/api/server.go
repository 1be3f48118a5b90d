// Package api serves the authoritative game backend over HTTP.
// /api/auth, /api/health and /api/leaderboard are public; every other
// endpoint requires the bearer token issued by /api/auth.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/talgya/tap-league/internal/authority"
	"github.com/talgya/tap-league/internal/league"
	"github.com/talgya/tap-league/internal/persistence"
	"github.com/talgya/tap-league/internal/wire"
)

const (
	maxBodyBytes     = 64 << 10
	defaultBoardSize = 10
	maxBoardSize     = 100
)

// Store is the read-only storage the health and leaderboard endpoints use.
type Store interface {
	Ping(ctx context.Context) error
	CountPlayers(ctx context.Context) (int, error)
	TopPlayers(ctx context.Context, limit int) ([]persistence.Player, error)
}

// Server serves player state over HTTP.
type Server struct {
	Svc      *authority.Service
	DB       Store
	Table    league.Table // nil means league.DefaultTable
	Port     int
	Secret   []byte // HS256 signing key for login tokens
	TokenTTL time.Duration

	// RateLimit is requests per second per client IP; zero disables it.
	RateLimit rate.Limit
	Burst     int

	// Origins are the browser origins allowed to call the API.
	Origins []string
}

// Handler builds the routed, rate-limited and CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public.
	mux.HandleFunc("POST /api/auth", s.handleAuth)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)

	// Player endpoints (bearer token).
	mux.HandleFunc("GET /api/state", s.authed(s.handleState))
	mux.HandleFunc("POST /api/tap", s.authed(s.handleTap))
	mux.HandleFunc("POST /api/upgrade", s.authed(s.handleUpgrade))
	mux.HandleFunc("POST /api/buy-card", s.authed(s.handleBuyCard))
	mux.HandleFunc("POST /api/sync-passive", s.authed(s.handleSyncPassive))

	limiter := NewRateLimiter(s.RateLimit, s.Burst)
	return allowOrigins(s.Origins, limiter.Middleware(mux))
}

// Serve listens on Port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr, "rate_limit", float64(s.RateLimit))

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	slog.Info("HTTP API stopped")
	return nil
}

// allowOrigins lets browser clients on the listed origins call the API.
// Requests from other origins still reach the handlers but get no CORS
// headers, so browsers refuse to expose the response. Preflights end here.
func allowOrigins(origins []string, next http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		if _, ok := allowed[r.Header.Get("Origin")]; ok {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Max-Age", "600")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ── Handlers ─────────────────────────────────────────────────────────

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var u wire.User
	if !decode(w, r, &u) {
		return
	}
	res, err := s.Svc.Login(r.Context(), authority.Profile{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsPremium: u.IsPremium,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, err := s.issueToken(u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("player logged in", "user_id", u.ID, "request_id", r.Header.Get("X-Request-ID"))
	writeJSON(w, wire.AuthResponse{
		Token:     token,
		User:      u,
		GameState: snapshot(res),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	res, err := s.Svc.State(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, snapshot(res))
}

func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	var req wire.TapRequest
	if !decode(w, r, &req) || !checkUser(w, r, req.UserID) {
		return
	}
	res, err := s.Svc.ProcessTap(r.Context(), userFrom(r), req.Taps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := snapshot(res)
	out.ProcessedTaps = &res.ProcessedTaps
	writeJSON(w, out)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	var req wire.UpgradeRequest
	if !decode(w, r, &req) || !checkUser(w, r, req.UserID) {
		return
	}
	res, err := s.Svc.BuyUpgrade(r.Context(), userFrom(r), string(req.UpgradeType))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, snapshot(res))
}

func (s *Server) handleBuyCard(w http.ResponseWriter, r *http.Request) {
	var req wire.BuyCardRequest
	if !decode(w, r, &req) || !checkUser(w, r, req.UserID) {
		return
	}
	res, err := s.Svc.BuyCard(r.Context(), userFrom(r), req.Cost, req.ProfitIncrease)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, snapshot(res))
}

func (s *Server) handleSyncPassive(w http.ResponseWriter, r *http.Request) {
	var req wire.UserRequest
	if !decode(w, r, &req) || !checkUser(w, r, req.UserID) {
		return
	}
	set, err := s.Svc.SyncPassive(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, wire.PassiveResponse{
		Earned:        set.Earned,
		Points:        &set.State.Points,
		ProfitPerHour: &set.State.ProfitPerHour,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	n, err := s.DB.CountPlayers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"status":  "ok",
		"players": n,
	})
}

type boardEntry struct {
	Rank     int    `json:"rank"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	Points   int64  `json:"points"`
	Level    int    `json:"level"`
	League   string `json:"league"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultBoardSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxBoardSize)
	}

	players, err := s.DB.TopPlayers(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	table := s.Table
	if table == nil {
		table = league.DefaultTable
	}
	board := make([]boardEntry, 0, len(players))
	for i, p := range players {
		tier := table.Resolve(p.Points).Tier
		board = append(board, boardEntry{
			Rank:     i + 1,
			UserID:   p.ID,
			Username: p.Username,
			Points:   int64(math.Floor(p.Points)),
			Level:    tier.Level,
			League:   tier.Name,
		})
	}
	writeJSON(w, board)
}

// ── Helpers ──────────────────────────────────────────────────────────

func snapshot(res authority.Result) wire.PlayerState {
	return wire.FromState(res.State, res.Tier.Level)
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps service errors to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authority.ErrInvalidRequest), errors.Is(err, authority.ErrInsufficientPoints):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, authority.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, errUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	default:
		slog.Error("request failed", "path", r.URL.Path, "request_id", r.Header.Get("X-Request-ID"), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

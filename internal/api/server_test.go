package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/talgya/tap-league/internal/api"
	"github.com/talgya/tap-league/internal/authority"
	"github.com/talgya/tap-league/internal/boost"
	"github.com/talgya/tap-league/internal/client"
	"github.com/talgya/tap-league/internal/persistence"
	"github.com/talgya/tap-league/internal/session"
	"github.com/talgya/tap-league/internal/wire"
)

var secret = []byte("test-secret")

func newServer(t *testing.T, mutate func(*api.Server)) *httptest.Server {
	t.Helper()
	db, err := persistence.Open(persistence.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv := &api.Server{
		Svc:    authority.New(db, nil, nil),
		DB:     db,
		Secret: secret,
	}
	if mutate != nil {
		mutate(srv)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// login authenticates id over raw HTTP and returns the token.
func login(t *testing.T, ts *httptest.Server, id int64) string {
	t.Helper()
	body, _ := json.Marshal(wire.User{ID: id, FirstName: "P"})
	resp, err := http.Post(ts.URL+"/api/auth", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("auth status = %d", resp.StatusCode)
	}
	var out wire.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out.Token
}

func do(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var b []byte
	if body != nil {
		b, _ = json.Marshal(body)
	}
	req, _ := http.NewRequest(method, url, bytes.NewReader(b))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestClientRoundTrip(t *testing.T) {
	ts := newServer(t, nil)
	c := client.New(ts.URL + "/api/")
	ctx := context.Background()

	p, err := c.Login(ctx, session.Identity{ID: 11, Username: "eleven", FirstName: "E"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if *p.Points != 0 || *p.MaxEnergy != 1000 || *p.Multitap != 1 {
		t.Fatalf("login patch = %+v", p)
	}

	p, err = c.SyncTaps(ctx, 5)
	if err != nil {
		t.Fatalf("SyncTaps: %v", err)
	}
	if *p.Points != 5 {
		t.Fatalf("points after 5 taps = %v", *p.Points)
	}

	_, err = c.BuyBoost(ctx, boost.Multitap)
	var se *client.StatusError
	if !errors.Is(err, client.ErrRejected) || !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("unaffordable BuyBoost err = %v", err)
	}

	if _, err := c.SyncTaps(ctx, 0); !errors.Is(err, client.ErrRejected) {
		t.Fatalf("empty batch err = %v", err)
	}

	set, err := c.SyncPassive(ctx)
	if err != nil {
		t.Fatalf("SyncPassive: %v", err)
	}
	if set.Earned != 0 || *set.Patch.Points != 5 {
		t.Fatalf("settlement = %+v", set)
	}
}

func TestSessionAgainstServer(t *testing.T) {
	ts := newServer(t, nil)
	c := client.New(ts.URL + "/api")

	s := session.New(c, session.Config{
		SyncInterval:    time.Hour,
		RegenInterval:   time.Hour,
		PassiveInterval: time.Hour,
		Logger:          slog.New(slog.DiscardHandler),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	if _, err := s.Open(ctx, session.Identity{ID: 21, FirstName: "S"}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	for range 3 {
		if ok, err := s.Tap(ctx); err != nil || !ok {
			t.Fatalf("Tap = %v, %v", ok, err)
		}
	}
	if err := s.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow: %v", err)
	}

	v, err := s.View(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v.State.Points != 3 || v.Unsynced != 0 {
		t.Fatalf("view = %+v", v)
	}
	remote, err := c.State(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if *remote.Points != 3 {
		t.Fatalf("server points = %v", *remote.Points)
	}

	if err := s.BuyBoost(ctx, boost.Multitap); !errors.Is(err, session.ErrInsufficientPoints) {
		t.Fatalf("BuyBoost err = %v", err)
	}
}

func TestRequiresToken(t *testing.T) {
	ts := newServer(t, nil)
	login(t, ts, 1)

	if resp := do(t, http.MethodGet, ts.URL+"/api/state", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token status = %d", resp.StatusCode)
	}

	forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "1",
		Issuer:  "tap-league",
	}).SignedString([]byte("other-secret"))
	if resp := do(t, http.MethodGet, ts.URL+"/api/state", forged, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("forged token status = %d", resp.StatusCode)
	}
}

func TestBodyUserMustMatchToken(t *testing.T) {
	ts := newServer(t, nil)
	token := login(t, ts, 1)
	login(t, ts, 2)

	resp := do(t, http.MethodPost, ts.URL+"/api/tap", token, wire.TapRequest{UserID: 2, Taps: 1})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, ts.URL+"/api/tap", token, wire.TapRequest{UserID: 1, Taps: 2})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out wire.PlayerState
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.ProcessedTaps == nil || *out.ProcessedTaps != 2 || *out.Level != 1 {
		t.Fatalf("tap response = %+v", out)
	}
}

func TestBadRequests(t *testing.T) {
	ts := newServer(t, nil)
	token := login(t, ts, 1)

	resp := do(t, http.MethodPost, ts.URL+"/api/upgrade", token, wire.UpgradeRequest{UpgradeType: "tap_bot"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown upgrade status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/auth", bytes.NewReader([]byte("{")))
	r, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	r.Body.Close()
	if r.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed auth status = %d", r.StatusCode)
	}

	if resp := do(t, http.MethodPost, ts.URL+"/api/auth", "", wire.User{ID: 0}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("zero id status = %d", resp.StatusCode)
	}
}

func TestHealthAndLeaderboard(t *testing.T) {
	ts := newServer(t, nil)
	for id, taps := range map[int64]int{1: 3, 2: 9} {
		tok := login(t, ts, id)
		do(t, http.MethodPost, ts.URL+"/api/tap", tok, wire.TapRequest{Taps: taps})
	}

	resp := do(t, http.MethodGet, ts.URL+"/api/health", "", nil)
	var health struct {
		Status  string `json:"status"`
		Players int    `json:"players"`
	}
	json.NewDecoder(resp.Body).Decode(&health)
	if health.Status != "ok" || health.Players != 2 {
		t.Fatalf("health = %+v", health)
	}

	resp = do(t, http.MethodGet, ts.URL+"/api/leaderboard?limit=1", "", nil)
	var board []struct {
		Rank   int    `json:"rank"`
		UserID int64  `json:"user_id"`
		Points int64  `json:"points"`
		League string `json:"league"`
	}
	json.NewDecoder(resp.Body).Decode(&board)
	if len(board) != 1 || board[0].UserID != 2 || board[0].Points != 9 || board[0].League != "Bronze" {
		t.Fatalf("leaderboard = %+v", board)
	}

	if resp := do(t, http.MethodGet, ts.URL+"/api/leaderboard?limit=x", "", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	ts := newServer(t, func(s *api.Server) {
		s.RateLimit = 1
		s.Burst = 2
	})

	for i := 0; i < 2; i++ {
		if resp := do(t, http.MethodGet, ts.URL+"/api/health", "", nil); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d", i, resp.StatusCode)
		}
	}
	resp := do(t, http.MethodGet, ts.URL+"/api/health", "", nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "1" {
		t.Fatalf("Retry-After = %q", resp.Header.Get("Retry-After"))
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newServer(t, func(s *api.Server) {
		s.Origins = []string{"https://play.example.com/"}
	})

	preflight := func(origin string) *http.Response {
		t.Helper()
		req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/tap", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp
	}

	resp := preflight("https://play.example.com")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://play.example.com" {
		t.Fatalf("allow origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Fatalf("allow headers = %q", got)
	}

	for _, origin := range []string{"http://localhost:5173", "https://evil.example.com"} {
		if got := preflight(origin).Header.Get("Access-Control-Allow-Origin"); got != "" {
			t.Fatalf("origin %s allowed: %q", origin, got)
		}
	}
}

// Package client talks to the tap-league backend over HTTP+JSON and
// implements session.Backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/tap-league/internal/boost"
	"github.com/talgya/tap-league/internal/economy"
	"github.com/talgya/tap-league/internal/session"
	"github.com/talgya/tap-league/internal/wire"
)

var (
	// ErrRejected marks a 4xx reply: the server refused the request and
	// retrying it unchanged will not help.
	ErrRejected = errors.New("rejected by server")
	// ErrUnavailable marks a 5xx reply.
	ErrUnavailable = errors.New("server unavailable")
	// ErrNotLoggedIn is returned by calls that need a session token.
	ErrNotLoggedIn = errors.New("not logged in")
)

// StatusError is a non-2xx reply.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.Code >= 500 {
		return ErrUnavailable
	}
	return ErrRejected
}

// Client is safe for concurrent use; the session flushes taps from a
// background goroutine while purchases run on the caller's.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	mu     sync.RWMutex
	token  string
	userID int64
}

var _ session.Backend = (*Client)(nil)

// New creates a client for the API rooted at baseURL (e.g.
// http://localhost:8000/api).
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Login authenticates the Telegram identity and keeps the returned token.
func (c *Client) Login(ctx context.Context, id session.Identity) (economy.Patch, error) {
	req := wire.User{
		ID:        id.ID,
		Username:  id.Username,
		FirstName: id.FirstName,
		LastName:  id.LastName,
		IsPremium: id.IsPremium,
	}
	var resp wire.AuthResponse
	if err := c.call(ctx, http.MethodPost, "/auth", req, &resp, false); err != nil {
		return economy.Patch{}, err
	}
	if resp.Token == "" {
		return economy.Patch{}, fmt.Errorf("login: empty token")
	}

	c.mu.Lock()
	c.token = resp.Token
	c.userID = id.ID
	c.mu.Unlock()
	return resp.GameState.Patch(), nil
}

// State fetches the current authoritative snapshot.
func (c *Client) State(ctx context.Context) (economy.Patch, error) {
	var resp wire.PlayerState
	if err := c.call(ctx, http.MethodGet, "/state", nil, &resp, true); err != nil {
		return economy.Patch{}, err
	}
	return resp.Patch(), nil
}

// SyncTaps reports a batch of tap events.
func (c *Client) SyncTaps(ctx context.Context, taps int) (economy.Patch, error) {
	var resp wire.PlayerState
	req := wire.TapRequest{UserID: c.user(), Taps: taps}
	if err := c.call(ctx, http.MethodPost, "/tap", req, &resp, true); err != nil {
		return economy.Patch{}, err
	}
	return resp.Patch(), nil
}

// BuyBoost buys the next level of t.
func (c *Client) BuyBoost(ctx context.Context, t boost.Type) (economy.Patch, error) {
	var resp wire.PlayerState
	req := wire.UpgradeRequest{UserID: c.user(), UpgradeType: t}
	if err := c.call(ctx, http.MethodPost, "/upgrade", req, &resp, true); err != nil {
		return economy.Patch{}, err
	}
	return resp.Patch(), nil
}

// BuyAsset buys a passive-income asset.
func (c *Client) BuyAsset(ctx context.Context, cost, profitIncrease int64) (economy.Patch, error) {
	var resp wire.PlayerState
	req := wire.BuyCardRequest{UserID: c.user(), Cost: cost, ProfitIncrease: profitIncrease}
	if err := c.call(ctx, http.MethodPost, "/buy-card", req, &resp, true); err != nil {
		return economy.Patch{}, err
	}
	return resp.Patch(), nil
}

// SyncPassive settles passive income accrued since the last settlement.
func (c *Client) SyncPassive(ctx context.Context) (session.Settlement, error) {
	var resp wire.PassiveResponse
	req := wire.UserRequest{UserID: c.user()}
	if err := c.call(ctx, http.MethodPost, "/sync-passive", req, &resp, true); err != nil {
		return session.Settlement{}, err
	}
	return session.Settlement{Earned: resp.Earned, Patch: resp.Patch()}, nil
}

func (c *Client) user() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// call sends in as JSON (when non-nil) and decodes the reply into out.
func (c *Client) call(ctx context.Context, method, path string, in, out any, auth bool) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if auth {
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()
		if token == "" {
			return fmt.Errorf("%s %s: %w", method, path, ErrNotLoggedIn)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method:  method,
			Path:    path,
			Code:    resp.StatusCode,
			Message: strings.TrimSpace(string(respBody)),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

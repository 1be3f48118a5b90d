package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "tap-league"

// DefaultTokenTTL is how long a login token stays valid.
const DefaultTokenTTL = 24 * time.Hour

var errUnauthorized = errors.New("unauthorized")

// issueToken signs an HS256 token whose subject is the player id.
func (s *Server) issueToken(userID int64) (string, error) {
	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// parseToken validates tok and returns the player id it was issued for.
func (s *Server) parseToken(tok string) (int64, error) {
	if tok == "" {
		return 0, fmt.Errorf("%w: missing token", errUnauthorized)
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errUnauthorized, err)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad subject %q", errUnauthorized, claims.Subject)
	}
	return id, nil
}

type userKey struct{}

// authed requires a valid bearer token and stores its player id in the
// request context.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		id, err := s.parseToken(strings.TrimSpace(tok))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	}
}

func userFrom(r *http.Request) int64 {
	id, _ := r.Context().Value(userKey{}).(int64)
	return id
}

// checkUser rejects a body user id that names someone other than the token
// holder. A zero id means the token holder.
func checkUser(w http.ResponseWriter, r *http.Request, bodyID int64) bool {
	if bodyID != 0 && bodyID != userFrom(r) {
		http.Error(w, "user_id does not match token", http.StatusForbidden)
		return false
	}
	return true
}

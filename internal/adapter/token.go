package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// staticTokenSource returns the same token forever. An empty token disables
// the Authorization header.
type staticTokenSource struct {
	token string
}

// NewStaticTokenSource wraps a fixed bearer token in a [TokenSource].
func NewStaticTokenSource(token string) TokenSource {
	return &staticTokenSource{token: strings.TrimSpace(token)}
}

func (s *staticTokenSource) Token(_ context.Context) (string, error) {
	return s.token, nil
}

// refreshingTokenSource caches a bearer token and calls refresh when the
// cached token is absent or about to expire. Expiry is read from the JWT
// "exp" claim without signature verification; the client only needs the
// timestamp, validation is the server's job.
type refreshingTokenSource struct {
	refresh func(ctx context.Context) (string, error)
	leeway  time.Duration

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewRefreshingTokenSource builds a [TokenSource] that obtains tokens from
// refresh and reuses them until expiry minus leeway.
func NewRefreshingTokenSource(refresh func(ctx context.Context) (string, error), leeway time.Duration) TokenSource {
	if leeway <= 0 {
		leeway = 30 * time.Second
	}
	return &refreshingTokenSource{refresh: refresh, leeway: leeway}
}

func (s *refreshingTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && (s.expiresAt.IsZero() || time.Now().Before(s.expiresAt.Add(-s.leeway))) {
		return s.token, nil
	}

	token, err := s.refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}

	s.token = strings.TrimSpace(token)
	s.expiresAt = tokenExpiry(s.token)
	return s.token, nil
}

// tokenExpiry extracts the exp claim from a JWT. Returns the zero time for
// opaque tokens, which are then cached indefinitely.
func tokenExpiry(tokenString string) time.Time {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

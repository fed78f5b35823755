package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultTTL is how long an issued upload URL stays valid.
const DefaultTTL = 15 * time.Minute

// ErrServletNotAllowed is returned when an upload URL is requested for a
// path that does not accept uploads.
var ErrServletNotAllowed = errors.New("servlet does not accept uploads")

// Issuer hands out one-time upload URLs that forward to a servlet path.
type Issuer struct {
	tokens  TokenStore
	baseURL string
	ttl     time.Duration
	allowed map[string]bool
}

// NewIssuer creates an issuer whose URLs point at baseURL/upload/{token}.
// Only the listed servlet paths may be targeted.
func NewIssuer(tokens TokenStore, baseURL string, ttl time.Duration, servlets ...string) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	allowed := make(map[string]bool, len(servlets))
	for _, s := range servlets {
		allowed[s] = true
	}
	return &Issuer{
		tokens:  tokens,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		ttl:     ttl,
		allowed: allowed,
	}
}

// URL returns a fresh upload URL bound to servletPath.
func (i *Issuer) URL(ctx context.Context, servletPath string) (string, error) {
	if !i.allowed[servletPath] {
		return "", fmt.Errorf("%w: %q", ErrServletNotAllowed, servletPath)
	}
	token, err := i.tokens.Create(ctx, servletPath, i.ttl)
	if err != nil {
		return "", err
	}
	slog.Debug("issued upload url", "servlet", servletPath, "ttl", i.ttl.String())
	return i.baseURL + "/upload/" + token, nil
}

// Redeem consumes token and returns the servlet path it was issued for.
func (i *Issuer) Redeem(ctx context.Context, token string) (string, error) {
	servletPath, err := i.tokens.Redeem(ctx, token)
	if err != nil {
		return "", err
	}
	if !i.allowed[servletPath] {
		return "", fmt.Errorf("%w: %q", ErrServletNotAllowed, servletPath)
	}
	return servletPath, nil
}

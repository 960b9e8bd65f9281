package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrEmptyCode        = errors.New("empty authorization code")
)

// ProviderSource hands out the sign-in provider once it is ready.
type ProviderSource interface {
	Provider(ctx context.Context) (Provider, error)
}

// Gate holds the bearer credential of one browser session.
type Gate struct {
	source ProviderSource

	mu    sync.RWMutex
	token *oauth2.Token
}

func NewGate(source ProviderSource) *Gate {
	return &Gate{source: source}
}

// LoginURL returns the consent URL for state.
func (g *Gate) LoginURL(ctx context.Context, state string) (string, error) {
	p, err := g.source.Provider(ctx)
	if err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

// Acquire exchanges an authorization code for a credential. On failure the
// gate stays released; the error is logged here and returned for the caller
// to decide what to render.
func (g *Gate) Acquire(ctx context.Context, code string) error {
	err := g.acquire(ctx, code)
	if err != nil {
		metrics.SignIns.WithLabelValues("failed").Inc()
		slog.WarnContext(ctx, "Sign-in failed",
			log.NewFields().WithComponent(log.ComponentAuth).WithOperation(log.OpSignIn).WithError(err).ToSlice()...)
		return err
	}
	metrics.SignIns.WithLabelValues("succeeded").Inc()
	return nil
}

func (g *Gate) acquire(ctx context.Context, code string) error {
	if code == "" {
		return ErrEmptyCode
	}
	p, err := g.source.Provider(ctx)
	if err != nil {
		return err
	}
	tok, err := p.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("acquire credential: %w", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return errors.New("acquire credential: provider returned no access token")
	}
	g.mu.Lock()
	g.token = tok
	g.mu.Unlock()
	return nil
}

// Release drops the credential.
func (g *Gate) Release() {
	g.mu.Lock()
	g.token = nil
	g.mu.Unlock()
}

// Token returns the credential, or ErrNotAuthenticated.
func (g *Gate) Token() (*oauth2.Token, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.token == nil {
		return nil, ErrNotAuthenticated
	}
	return g.token, nil
}

func (g *Gate) Authenticated() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token != nil
}

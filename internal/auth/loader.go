package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"kakeibo/internal/config"
	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
)

// Loader builds the Provider in the background and hands it out once ready.
type Loader struct {
	ready   *Ready
	timeout time.Duration

	mu       sync.RWMutex
	provider Provider
}

// LoadProvider starts building the provider for cfg and resolves ready when done.
func LoadProvider(ctx context.Context, cfg *config.Config, ready *Ready) *Loader {
	l := &Loader{ready: ready, timeout: cfg.AuthReadyTimeout}
	go func() {
		p, err := buildProvider(cfg)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to initialise sign-in provider",
				log.FieldComponent, log.ComponentAuth, log.FieldError, err)
			ready.Resolve(err)
			return
		}
		l.set(p)
		ready.Resolve(nil)
		slog.InfoContext(ctx, "Sign-in provider ready", log.FieldComponent, log.ComponentAuth, "backend", cfg.DataBackend)
	}()
	return l
}

// NewStaticLoader returns a Loader that is already resolved with p.
func NewStaticLoader(p Provider, timeout time.Duration) *Loader {
	l := &Loader{ready: NewReady(), timeout: timeout, provider: p}
	l.ready.Resolve(nil)
	return l
}

// NewPendingLoader returns a Loader whose provider is installed later with Install.
func NewPendingLoader(ready *Ready, timeout time.Duration) *Loader {
	return &Loader{ready: ready, timeout: timeout}
}

// Install sets the provider and resolves the readiness signal.
func (l *Loader) Install(p Provider) {
	l.set(p)
	l.ready.Resolve(nil)
}

func (l *Loader) set(p Provider) {
	l.mu.Lock()
	l.provider = p
	l.mu.Unlock()
}

// Ready exposes the readiness signal for health checks.
func (l *Loader) Ready() *Ready {
	return l.ready
}

// Provider waits at most the configured timeout for the provider.
func (l *Loader) Provider(ctx context.Context) (Provider, error) {
	if err := l.ready.WaitTimeout(ctx, l.timeout); err != nil {
		metrics.SignIns.WithLabelValues("not_ready").Inc()
		if errors.Is(err, ErrNotReady) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.provider == nil {
		return nil, ErrNotReady
	}
	return l.provider, nil
}

func buildProvider(cfg *config.Config) (Provider, error) {
	if cfg.DataBackend != config.BackendGoogle {
		return NewDevProvider(cfg.RedirectURL()), nil
	}
	clientJSON, err := ReadClientJSON(cfg)
	if err != nil {
		return nil, err
	}
	return NewGoogleProvider(clientJSON, cfg.RedirectURL(), cfg.GoogleOAuthScopes)
}

// ReadClientJSON returns the OAuth client from GOOGLE_OAUTH_CLIENT_JSON or the file it names.
func ReadClientJSON(cfg *config.Config) ([]byte, error) {
	switch {
	case cfg.GoogleOAuthClientJSON != "":
		return []byte(cfg.GoogleOAuthClientJSON), nil
	case cfg.GoogleOAuthClientFile != "":
		b, err := os.ReadFile(cfg.GoogleOAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
}

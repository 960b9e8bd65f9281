package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotReady is returned when the sign-in dependency did not become available in time.
var ErrNotReady = errors.New("sign-in is not ready")

// Ready is a one-shot readiness signal. It is resolved exactly once, either
// successfully (nil) or with the error that prevented initialisation.
type Ready struct {
	once sync.Once
	done chan struct{}
	err  error
}

func NewReady() *Ready {
	return &Ready{done: make(chan struct{})}
}

// Resolve settles the signal. Later calls are ignored and report false.
func (r *Ready) Resolve(err error) bool {
	resolved := false
	r.once.Do(func() {
		r.err = err
		close(r.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the signal is resolved.
func (r *Ready) Done() <-chan struct{} {
	return r.done
}

// Err returns the resolution error, or ErrNotReady while unresolved.
func (r *Ready) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return ErrNotReady
	}
}

// Wait blocks until the signal resolves or ctx ends.
func (r *Ready) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
	}
}

// WaitTimeout is Wait bounded by timeout.
func (r *Ready) WaitTimeout(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.Wait(ctx)
}

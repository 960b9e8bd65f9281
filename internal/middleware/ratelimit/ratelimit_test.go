package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakeibo/internal/metrics"
)

func newTestLimiter(perMinute int) (*Limiter, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Minute, Clock: clock}), clock
}

func TestAllowBurstThenRefill(t *testing.T) {
	rl, clock := newTestLimiter(3)

	for i := range 3 {
		assert.True(t, rl.Allow("a"), "request %d", i)
	}
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "clients have separate buckets")

	clock.Advance(20 * time.Second)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
}

func TestCleanupRemovesIdleClients(t *testing.T) {
	rl, clock := newTestLimiter(10)
	rl.Allow("a")
	clock.Advance(5 * time.Minute)
	rl.Allow("b")
	clock.Advance(6 * time.Minute)

	assert.Equal(t, 1, rl.cleanupStaleEntries())
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestRunSweepsOnTicker(t *testing.T) {
	rl, clock := newTestLimiter(10)
	rl.Allow("a")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.Run(ctx)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(11 * time.Minute)
	assert.Eventually(t, func() bool { return rl.ActiveClients() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(1)
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	before := testutil.ToFloat64(metrics.RateLimited)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "61", rec.Header().Get("Retry-After"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimited))
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		SubmissionsTotal,
		AllocationFallbacks,
		RemoteCallDuration,
		DirectoryErrors,
		WriteQueueDepth,
		ActiveSessions,
		SessionsExpired,
		SignIns,
		DocumentCacheHits,
		DocumentCacheMisses,
		EventsPublished,
		JournalRecords,
		DuplicateIDs,
		CircuitBreakerState,
		HTTPRequests,
		RateLimited,
	}
	for _, c := range collectors {
		desc := make(chan *prometheus.Desc, 8)
		c.Describe(desc)
		close(desc)
		require.NotNil(t, <-desc)
	}
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(AllocationFallbacks)
	AllocationFallbacks.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AllocationFallbacks))

	before = testutil.ToFloat64(SubmissionsTotal.WithLabelValues("failed"))
	SubmissionsTotal.WithLabelValues("failed").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SubmissionsTotal.WithLabelValues("failed")))
}

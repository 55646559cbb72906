package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveFindings("publish", map[string]int{"EMAIL": 2, "IP": 1})
	m.ObservePublish(OutcomeRejected)
	m.ObservePublish(OutcomePublished)
	m.ObserveDraft("professional", 1500*time.Millisecond)
	m.ObserveRequest("/api/publish", "POST", 400, 5*time.Millisecond)
	m.ObserveRateLimited()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.findingsTotal.WithLabelValues("EMAIL", "publish")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishTotal.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/publish", "POST", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ratelimitHits))

	_, err := reg.Gather()
	require.NoError(t, err)
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObservePublish(OutcomePublished)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `sentinel_publish_total{outcome="published"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.ObserveFindings("draft", map[string]int{"EMAIL": 1})
	m.ObservePublish(OutcomePublished)
	m.ObserveDraft("casual", time.Second)
	m.ObserveRequest("/", "GET", 200, time.Millisecond)
	m.ObserveRateLimited()
}

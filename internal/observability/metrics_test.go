package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, float64(1),
		testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("unknown", "418")))
}

func TestQueuePendingGauge(t *testing.T) {
	metrics := NewMetrics()
	metrics.SetQueuePending("default", 4)
	require.Equal(t, float64(4),
		testutil.ToFloat64(metrics.queuePending.WithLabelValues("default")))

	metrics.SetQueuePending("default", 0)
	require.Equal(t, float64(0),
		testutil.ToFloat64(metrics.queuePending.WithLabelValues("default")))
}

func TestNilMetricsAreInert(t *testing.T) {
	var metrics *Metrics

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	metrics.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	metrics.SetQueuePending("default", 1)

	rec = httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"resumesense/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetObservabilityConfig(t *testing.T) {
	t.Run("nil config falls back", func(t *testing.T) {
		cfg := GetObservabilityConfig(nil, "1.2.3")
		assert.Equal(t, "resumesense", cfg.ServiceName)
		assert.Equal(t, "1.2.3", cfg.ServiceVersion)
		assert.False(t, cfg.Enabled)
		assert.Equal(t, "/metrics", cfg.Prometheus.Endpoint)
	})

	t.Run("service version defaults to app version", func(t *testing.T) {
		full := &config.Config{}
		full.Observability.ServiceName = "svc"
		full.Observability.Enabled = true
		full.Observability.Prometheus.Port = "9191"

		cfg := GetObservabilityConfig(full, "dev")
		assert.Equal(t, "svc", cfg.ServiceName)
		assert.Equal(t, "dev", cfg.ServiceVersion)
		assert.True(t, cfg.Enabled)
		assert.Equal(t, "9191", cfg.Prometheus.Port)
	})
}

func TestDisabledManager(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{ServiceName: "test"}, nil)
	require.NoError(t, err)

	metrics := om.GetMetrics()
	require.NotNil(t, metrics)

	called := false
	err = metrics.TrackUpstreamCall(context.Background(), "analyze", func(ctx context.Context) error {
		called = true
		return nil
	}, om)
	assert.NoError(t, err)
	assert.True(t, called)

	// Middleware is a pass-through.
	handler := om.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestNilManagerIsSafe(t *testing.T) {
	var om *ObservabilityManager

	metrics := om.GetMetrics()
	metrics.RecordBusinessMetric(context.Background(), MetricResultRendered, true, om)
	assert.NotNil(t, om.Tracer("x"))
	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestEnabledManagerRecordsMetrics(t *testing.T) {
	full := &config.Config{}
	full.Observability.CustomMetrics.Upstream.Enabled = true
	full.Observability.CustomMetrics.Upstream.TrackDuration = true
	full.Observability.CustomMetrics.BusinessMetrics.Enabled = true
	full.Observability.Metrics.CollectionInterval = time.Second

	om, err := NewObservabilityManager(ObservabilityConfig{
		ServiceName:    "resumesense-test",
		ServiceVersion: "test",
		Enabled:        true,
		SampleRate:     1.0,
	}, full)
	require.NoError(t, err)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })

	metrics := om.GetMetrics()
	require.NotNil(t, metrics.UpstreamRequests)
	require.NotNil(t, metrics.ResultsRendered)

	upstreamErr := errors.New("boom")
	err = metrics.TrackUpstreamCall(context.Background(), "analyze", func(ctx context.Context) error {
		return upstreamErr
	}, om)
	assert.ErrorIs(t, err, upstreamErr)

	for _, kind := range []string{MetricResultRendered, MetricSubmissionRejected, MetricSubmissionSuperseded, MetricRateLimitHit, MetricCertReload, "unknown"} {
		metrics.RecordBusinessMetric(context.Background(), kind, true, om)
	}
	metrics.RecordCertExpiry(context.Background(), time.Now().Add(time.Hour))
}

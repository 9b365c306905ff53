package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"resumematch/internal/ai"
	"resumematch/internal/config"
	"resumematch/internal/errors"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func testMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func TestMetrics_RecordCheck(t *testing.T) {
	m, reader := testMetrics(t)
	ctx := context.Background()

	m.RecordCheck(ctx, 2*time.Second, &ai.TokenUsage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120}, nil)
	m.RecordCheck(ctx, time.Second, nil, errors.NewAPIError(errors.ErrCodeRetriesExhausted, errors.MsgRetriesExhausted, 503, nil))

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["resumematch_ai_requests_total"]))
	assert.Equal(t, int64(2), sumOf(t, got["resumematch_checks_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["resumematch_ai_errors_total"]))
	assert.Equal(t, int64(240), sumOf(t, got["resumematch_ai_token_usage_total"]))

	hist, ok := got["resumematch_ai_processing_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}

func TestMetrics_Counters(t *testing.T) {
	m, reader := testMetrics(t)
	ctx := context.Background()

	m.RecordExtraction(ctx, "pdf", nil)
	m.RecordExtraction(ctx, "", errors.NewUnsupportedFormatError(errors.ErrCodeUnsupportedFile, errors.MsgUnsupportedFile, nil))
	m.RecordRetry(ctx, 1)
	m.RecordRetry(ctx, 2)
	m.RecordRateLimitHit(ctx, "ip")
	m.RecordCertReload(ctx, true)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["resumematch_documents_extracted_total"]))
	assert.Equal(t, int64(2), sumOf(t, got["resumematch_ai_retries_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["resumematch_rate_limit_hits_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["resumematch_cert_reloads_total"]))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordCheck(ctx, time.Second, nil, nil)
		m.RecordExtraction(ctx, "pdf", nil)
		m.RecordRetry(ctx, 1)
		m.RecordRateLimitHit(ctx, "ip")
		m.RecordCertReload(ctx, false)
	})
}

func TestErrorTypeOf(t *testing.T) {
	assert.Equal(t, "", errorTypeOf(nil))
	assert.Equal(t, "parse", errorTypeOf(errors.NewParseError(errors.ErrCodeInvalidAnalysis, "", nil)))
	assert.Equal(t, "canceled", errorTypeOf(fmt.Errorf("wrapped: %w", context.Canceled)))
	assert.Equal(t, "unknown", errorTypeOf(fmt.Errorf("boom")))
}

func TestNewObservabilityManager_Disabled(t *testing.T) {
	om, err := NewObservabilityManager(GetObservabilityConfig(&config.Config{}, "1.0.0"), nil)
	require.NoError(t, err)

	require.NotNil(t, om.GetMetrics())
	assert.NotPanics(t, func() {
		om.GetMetrics().RecordCheck(context.Background(), time.Second, nil, nil)
	})
	_, span := om.Tracer("test").Start(context.Background(), "x")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestGetObservabilityConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.ServiceName = "resumematch"
	cfg.Observability.Tracing.SampleRate = 0.5
	cfg.Observability.Prometheus.Port = "9191"

	obs := GetObservabilityConfig(cfg, "2.0.0")
	assert.Equal(t, "2.0.0", obs.ServiceVersion)
	assert.Equal(t, 0.5, obs.SampleRate)
	assert.Equal(t, "9191", obs.Prometheus.Port)

	fallback := GetObservabilityConfig(nil, "dev")
	assert.Equal(t, "resumematch", fallback.ServiceName)
	assert.Equal(t, "9090", fallback.Prometheus.Port)
}

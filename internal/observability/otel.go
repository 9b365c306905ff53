package observability

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"resumematch/internal/ai"
	"resumematch/internal/errors"
)

// ObservabilityManager manages OpenTelemetry setup
type ObservabilityManager struct {
	config           ObservabilityConfig
	logger           *errors.Logger
	resource         *resource.Resource
	tracerProvider   *trace.TracerProvider
	meterProvider    *sdkmetric.MeterProvider
	metrics          *Metrics
	shutdownFuncs    []func(context.Context) error
	prometheusServer *http.Server
}

// NewObservabilityManager creates a new observability manager. When
// observability is disabled every instrument is a no-op.
func NewObservabilityManager(obsConfig ObservabilityConfig, logger *errors.Logger) (*ObservabilityManager, error) {
	om := &ObservabilityManager{
		config: obsConfig,
		logger: logger,
	}

	if !obsConfig.Enabled {
		metrics, err := NewMetrics(metricnoop.NewMeterProvider().Meter(obsConfig.ServiceName))
		if err != nil {
			return nil, err
		}
		om.metrics = metrics
		return om, nil
	}

	if err := om.initResource(); err != nil {
		return nil, fmt.Errorf("failed to initialize resource: %w", err)
	}

	if obsConfig.TracingEnabled {
		if err := om.initTracing(); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if err := om.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return om, nil
}

// initResource creates the OpenTelemetry resource
func (om *ObservabilityManager) initResource() error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(om.config.ServiceName),
			semconv.ServiceVersion(om.config.ServiceVersion),
			semconv.ServiceInstanceID(om.getServiceInstanceID()),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	om.resource = res
	return nil
}

// initTracing sets up OpenTelemetry tracing
func (om *ObservabilityManager) initTracing() error {
	var exporter trace.SpanExporter
	var err error

	switch {
	case om.config.ConsoleOutput:
		// stdout carries command output
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
	case om.config.OTLP.Enabled:
		exporter, err = om.createOTLPExporter()
	default:
		exporter = &noOpSpanExporter{}
	}

	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(om.resource),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(om.config.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	om.tracerProvider = tp
	om.shutdownFuncs = append(om.shutdownFuncs, tp.Shutdown)

	return nil
}

// initMetrics sets up OpenTelemetry metrics
func (om *ObservabilityManager) initMetrics() error {
	if !om.config.MetricsEnabled {
		metrics, err := NewMetrics(metricnoop.NewMeterProvider().Meter(om.config.ServiceName))
		om.metrics = metrics
		return err
	}

	readers, err := om.setupMetricReaders()
	if err != nil {
		return err
	}

	meterProviderOptions := []sdkmetric.Option{
		sdkmetric.WithResource(om.resource),
	}
	for _, reader := range readers {
		meterProviderOptions = append(meterProviderOptions, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(meterProviderOptions...)

	otel.SetMeterProvider(mp)
	om.meterProvider = mp
	om.shutdownFuncs = append(om.shutdownFuncs, mp.Shutdown)

	om.metrics, err = NewMetrics(mp.Meter(om.config.ServiceName))
	return err
}

// setupMetricReaders sets up all metric readers based on configuration
func (om *ObservabilityManager) setupMetricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	if om.config.ConsoleOutput {
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
		if err != nil {
			return nil, fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(om.getMetricsCollectionInterval())))
	}

	if om.config.OTLP.Enabled {
		otlpReader, err := om.createOTLPMetricsReader()
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics reader: %w", err)
		}
		readers = append(readers, otlpReader)
	}

	if om.config.Prometheus.Enabled {
		prometheusReader, prometheusMux, err := SetupPrometheusExporter(om.config.Prometheus)
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		readers = append(readers, prometheusReader)

		server, err := StartPrometheusServer(prometheusMux, om.config.Prometheus.Port, om.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to start Prometheus server: %w", err)
		}
		om.prometheusServer = server
		om.shutdownFuncs = append(om.shutdownFuncs, server.Shutdown)
	}

	// If no readers configured, use manual reader as fallback
	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}

	return readers, nil
}

// GetMetrics returns the metrics instance
func (om *ObservabilityManager) GetMetrics() *Metrics {
	return om.metrics
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (om *ObservabilityManager) HTTPMiddleware() func(http.Handler) http.Handler {
	if !om.config.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}

	opts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	}
	if om.tracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(om.tracerProvider))
	}
	if om.meterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(om.meterProvider))
	}
	return otelhttp.NewMiddleware(om.config.ServiceName, opts...)
}

// Tracer returns a tracer for the service
func (om *ObservabilityManager) Tracer(name string) oteltrace.Tracer {
	if om.tracerProvider == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return om.tracerProvider.Tracer(name)
}

// Shutdown flushes exporters and stops the metrics server.
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(om.shutdownFuncs) - 1; i >= 0; i-- {
		if err := om.shutdownFuncs[i](ctx); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Metrics holds all custom metrics. Every method is safe on a nil receiver.
type Metrics struct {
	// AI operation metrics
	AIProcessingTime metric.Float64Histogram
	AIRequestCount   metric.Int64Counter
	AIErrorCount     metric.Int64Counter
	AIRetryCount     metric.Int64Counter
	AITokenUsage     metric.Int64Counter

	// Business metrics
	DocumentsExtracted metric.Int64Counter
	ChecksTotal        metric.Int64Counter

	// Infrastructure metrics
	CertReloadCount metric.Int64Counter
	RateLimitHits   metric.Int64Counter
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.AIProcessingTime, err = meter.Float64Histogram(
		"resumematch_ai_processing_duration_seconds",
		metric.WithDescription("Time spent on analysis requests, retries included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI processing time metric: %w", err)
	}

	m.AIRequestCount, err = meter.Int64Counter(
		"resumematch_ai_requests_total",
		metric.WithDescription("Total number of analysis requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI request count metric: %w", err)
	}

	m.AIErrorCount, err = meter.Int64Counter(
		"resumematch_ai_errors_total",
		metric.WithDescription("Total number of failed analysis requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI error count metric: %w", err)
	}

	m.AIRetryCount, err = meter.Int64Counter(
		"resumematch_ai_retries_total",
		metric.WithDescription("Total number of retried analysis attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI retry count metric: %w", err)
	}

	m.AITokenUsage, err = meter.Int64Counter(
		"resumematch_ai_token_usage_total",
		metric.WithDescription("Tokens consumed by analysis requests"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI token usage metric: %w", err)
	}

	m.DocumentsExtracted, err = meter.Int64Counter(
		"resumematch_documents_extracted_total",
		metric.WithDescription("Total number of uploaded documents processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create documents extracted metric: %w", err)
	}

	m.ChecksTotal, err = meter.Int64Counter(
		"resumematch_checks_total",
		metric.WithDescription("Total number of completed match checks"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create checks metric: %w", err)
	}

	m.CertReloadCount, err = meter.Int64Counter(
		"resumematch_cert_reloads_total",
		metric.WithDescription("Total number of certificate reloads"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate reload count metric: %w", err)
	}

	m.RateLimitHits, err = meter.Int64Counter(
		"resumematch_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	return m, nil
}

// errorTypeOf labels err by its AppError type.
func errorTypeOf(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return string(appErr.Type)
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "unknown"
}

// RecordExtraction counts one processed upload.
func (m *Metrics) RecordExtraction(ctx context.Context, format string, err error) {
	if m == nil || m.DocumentsExtracted == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.Bool("success", err == nil),
	}
	if format != "" {
		attrs = append(attrs, attribute.String("format", format))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error_type", errorTypeOf(err)))
	}
	m.DocumentsExtracted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCheck records one analysis: duration, outcome and token usage.
func (m *Metrics) RecordCheck(ctx context.Context, duration time.Duration, usage *ai.TokenUsage, err error) {
	if m == nil || m.AIRequestCount == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.Bool("success", err == nil),
	}

	m.AIProcessingTime.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.AIRequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.ChecksTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil {
		m.AIErrorCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("error_type", errorTypeOf(err)),
		))
	}

	if usage != nil {
		m.recordTokenMetrics(ctx, usage)
	}
}

func (m *Metrics) recordTokenMetrics(ctx context.Context, usage *ai.TokenUsage) {
	tokenTypes := []struct {
		tokenType string
		value     int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	}

	for _, tt := range tokenTypes {
		m.AITokenUsage.Add(ctx, tt.value, metric.WithAttributes(
			attribute.String("token_type", tt.tokenType),
		))
	}
}

// RecordRetry has the shape of ai.RetryObserver.
func (m *Metrics) RecordRetry(ctx context.Context, attempt int) {
	if m == nil || m.AIRetryCount == nil {
		return
	}
	m.AIRetryCount.Add(ctx, 1, metric.WithAttributes(attribute.Int("attempt", attempt+1)))
}

// RecordRateLimitHit counts a rejected request. clientType is "ip" or
// "api_key".
func (m *Metrics) RecordRateLimitHit(ctx context.Context, clientType string) {
	if m == nil || m.RateLimitHits == nil {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("client_type", clientType)))
}

// RecordCertReload counts a certificate reload attempt.
func (m *Metrics) RecordCertReload(ctx context.Context, success bool) {
	if m == nil || m.CertReloadCount == nil {
		return
	}
	m.CertReloadCount.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// No-op exporters for when console output is disabled
type noOpSpanExporter struct{}

func (n *noOpSpanExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *noOpSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

// createOTLPExporter creates an OTLP HTTP trace exporter
func (om *ObservabilityManager) createOTLPExporter() (trace.SpanExporter, error) {
	otlpConfig := om.config.OTLP

	var opts []otlptracehttp.Option
	if strings.Contains(otlpConfig.Endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(otlpConfig.Endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(otlpConfig.Endpoint))
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	return exporter, nil
}

// createOTLPMetricsReader creates an OTLP HTTP metrics reader
func (om *ObservabilityManager) createOTLPMetricsReader() (sdkmetric.Reader, error) {
	otlpConfig := om.config.OTLP

	var opts []otlpmetrichttp.Option
	if strings.Contains(otlpConfig.Endpoint, "://") {
		opts = append(opts, otlpmetrichttp.WithEndpointURL(otlpConfig.Endpoint))
	} else {
		opts = append(opts, otlpmetrichttp.WithEndpoint(otlpConfig.Endpoint))
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(om.getMetricsCollectionInterval())), nil
}

// getServiceInstanceID returns the service instance ID from config or a default
func (om *ObservabilityManager) getServiceInstanceID() string {
	if om.config.ServiceInstance != "" {
		return om.config.ServiceInstance
	}
	return om.config.ServiceName + "-1"
}

// getMetricsCollectionInterval returns the configured metrics collection interval
func (om *ObservabilityManager) getMetricsCollectionInterval() time.Duration {
	if om.config.CollectionInterval > 0 {
		return om.config.CollectionInterval
	}
	return 15 * time.Second
}

package observability

import (
	"time"

	"resumematch/internal/config"
)

// ObservabilityConfig holds configuration for observability
type ObservabilityConfig struct {
	ServiceName        string
	ServiceVersion     string
	ServiceInstance    string
	Enabled            bool
	ConsoleOutput      bool // spans and metrics to stderr
	TracingEnabled     bool
	SampleRate         float64
	MetricsEnabled     bool
	CollectionInterval time.Duration
	Prometheus         PrometheusConfig
	OTLP               config.OTLPConfig
}

// GetObservabilityConfig creates observability config from provided config
func GetObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	if cfg == nil {
		// Fallback to defaults if config not available
		return ObservabilityConfig{
			ServiceName:        "resumematch",
			ServiceVersion:     version,
			ServiceInstance:    "resumematch-1",
			TracingEnabled:     true,
			SampleRate:         1.0,
			MetricsEnabled:     true,
			CollectionInterval: 15 * time.Second,
			Prometheus:         GetPrometheusConfig(nil),
		}
	}

	obsConfig := cfg.Observability

	// Use app version if service version not specified
	serviceVersion := obsConfig.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}

	return ObservabilityConfig{
		ServiceName:        obsConfig.ServiceName,
		ServiceVersion:     serviceVersion,
		ServiceInstance:    obsConfig.ServiceInstance,
		Enabled:            obsConfig.Enabled,
		ConsoleOutput:      obsConfig.ConsoleOutput,
		TracingEnabled:     obsConfig.Tracing.Enabled,
		SampleRate:         obsConfig.Tracing.SampleRate,
		MetricsEnabled:     obsConfig.Metrics.Enabled,
		CollectionInterval: obsConfig.Metrics.CollectionInterval,
		Prometheus:         GetPrometheusConfig(cfg),
		OTLP:               obsConfig.OTLP,
	}
}

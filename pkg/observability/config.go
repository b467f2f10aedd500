// Package observability initializes OpenTelemetry tracing and Prometheus
// metrics for the travel-agent services. Both are opt-in; when disabled,
// no-op implementations keep call sites unconditional.
package observability

import "fmt"

// Config groups tracing and metrics configuration.
type Config struct {
	Tracing TracingConfig `yaml:"tracing,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig configures the tracer provider.
type TracingConfig struct {
	// Enabled turns on distributed tracing.
	Enabled bool `yaml:"enabled,omitempty"`

	// Exporter is "otlp" (gRPC collector) or "stdout" (pretty-printed,
	// for development).
	Exporter string `yaml:"exporter,omitempty"`

	// Endpoint of the OTLP collector, host:port.
	Endpoint string `yaml:"endpoint,omitempty"`

	// SamplingRate between 0.0 and 1.0.
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`

	// ServiceName identifies this process in traces.
	ServiceName string `yaml:"service_name,omitempty"`

	// Insecure disables TLS towards the collector.
	Insecure *bool `yaml:"insecure,omitempty"`
}

// MetricsConfig configures the Prometheus bridge.
type MetricsConfig struct {
	// Enabled turns on metrics collection.
	Enabled bool `yaml:"enabled,omitempty"`

	// Endpoint is the scrape path. Default "/metrics".
	Endpoint string `yaml:"endpoint,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "otlp"
	}
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4317"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "travel-agent"
	}
	if c.Tracing.Insecure == nil {
		insecure := true
		c.Tracing.Insecure = &insecure
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = "/metrics"
	}
}

// Validate checks the observability configuration.
func (c *Config) Validate() error {
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "otlp", "stdout":
		default:
			return fmt.Errorf("invalid tracing exporter %q (valid: otlp, stdout)", c.Tracing.Exporter)
		}
		if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
			return fmt.Errorf("sampling_rate must be between 0 and 1")
		}
	}
	return nil
}

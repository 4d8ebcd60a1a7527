// Package telemetry provides optional OpenTelemetry tracing for the responder.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the telemetry configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string // OTLP/HTTP host:port or base URL; empty disables tracing
	Insecure       bool
}

// Enabled reports whether an exporter endpoint is configured.
func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

// FromEnv reads the configuration from OTEL_* environment variables.
func FromEnv(getenv func(string) string) Config {
	return Config{
		ServiceName:    envOr(getenv, "OTEL_SERVICE_NAME", "hello"),
		ServiceVersion: envOr(getenv, "OTEL_SERVICE_VERSION", "unknown"),
		Environment:    envOr(getenv, "OTEL_ENVIRONMENT", "development"),
		Endpoint:       getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:       getenv("OTEL_EXPORTER_OTLP_INSECURE") != "false",
	}
}

// Provider is the tracing setup handed to Wrap. A zero Provider traces
// nothing.
type Provider struct {
	tp trace.TracerProvider
	sd func(context.Context) error
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.sd == nil {
		return nil
	}
	return p.sd(ctx)
}

// Initialize sets up an OTLP/HTTP exporter and installs it as the global
// tracer provider. When cfg is not enabled it returns an inert Provider.
func Initialize(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled() {
		return &Provider{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithProcess(),
		resource.WithContainer(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts, err := exporterOptions(cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tp: tp, sd: tp.Shutdown}, nil
}

// exporterOptions maps cfg.Endpoint onto otlptracehttp options. A bare
// host:port honours cfg.Insecure. A URL such as http://collector:4318 is
// treated as the OTLP base URL: traces go to <path>/v1/traces and the
// scheme decides TLS.
func exporterOptions(cfg Config) ([]otlptracehttp.Option, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithTimeout(10 * time.Second)}

	if !strings.Contains(cfg.Endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return opts, nil
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid OTLP endpoint %q: %w", cfg.Endpoint, err)
	}
	switch u.Scheme {
	case "http":
		opts = append(opts, otlptracehttp.WithInsecure())
	case "https":
	default:
		return nil, fmt.Errorf("invalid OTLP endpoint %q: unsupported scheme %q", cfg.Endpoint, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid OTLP endpoint %q: missing host", cfg.Endpoint)
	}
	opts = append(opts,
		otlptracehttp.WithEndpoint(u.Host),
		otlptracehttp.WithURLPath(strings.TrimSuffix(u.Path, "/")+"/v1/traces"),
	)
	return opts, nil
}

// NewProvider wraps an existing tracer provider, e.g. one backed by a span
// recorder in tests.
func NewProvider(tp trace.TracerProvider) *Provider {
	return &Provider{tp: tp}
}

// Wrap instruments h with a server span per request. The response is
// untouched. With an inert Provider, h is returned as is.
func Wrap(h http.Handler, p *Provider, operation string) http.Handler {
	if p == nil || p.tp == nil {
		return h
	}
	return otelhttp.NewHandler(h, operation, otelhttp.WithTracerProvider(p.tp))
}

func envOr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

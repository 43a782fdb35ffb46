// Package tracing exports request spans over OTLP gRPC when enabled.
package tracing

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/logsieve/logsieve/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Config selects the collector endpoint and transport security.
type Config struct {
	Enabled     bool
	Endpoint    string // OTLP gRPC endpoint, e.g. "otel-collector:4317"
	TLSCAPath   string // CA certificate for server verification, optional
	TLSInsecure bool   // accept any server certificate
}

// TracingProvider owns the OpenTelemetry tracer provider.
// Implements lifecycle.Component; a disabled provider is inert but still
// satisfies the interface so wiring stays unconditional.
type TracingProvider struct {
	provider *sdktrace.TracerProvider
	logger   *logging.Logger
	enabled  bool
}

// NewTracingProvider builds the provider and, when enabled, installs it as
// the global tracer provider with always-on sampling.
func NewTracingProvider(cfg Config) (*TracingProvider, error) {
	logger := logging.GetLogger("tracing")

	if !cfg.Enabled {
		logger.Info("Tracing disabled")
		return &TracingProvider{logger: logger}, nil
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("tracing enabled but endpoint not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exporter, err := newExporter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName("logsieve"),
		semconv.ServiceVersion("1.0.0"),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	logger.Info("Tracing initialized with endpoint: %s", cfg.Endpoint)

	return &TracingProvider{provider: provider, logger: logger, enabled: true}, nil
}

// newExporter builds the OTLP gRPC exporter with the configured transport
// credentials: CA-verified TLS, unverified TLS, or plaintext.
func newExporter(ctx context.Context, cfg Config, logger *logging.Logger) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}

	switch {
	case cfg.TLSInsecure:
		creds := credentials.NewTLS(&tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS12,
		})
		opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(creds)))
		logger.Info("TLS enabled for tracing with certificate verification disabled (insecure mode)")
	case cfg.TLSCAPath != "":
		pem, err := os.ReadFile(cfg.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to append CA certificate to pool")
		}
		creds := credentials.NewTLS(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12})
		opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(creds)))
		logger.Info("TLS enabled for tracing with CA from: %s", cfg.TLSCAPath)
	default:
		opts = append(opts,
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			otlptracegrpc.WithInsecure(),
		)
		logger.Info("TLS disabled for tracing (insecure mode)")
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// Start implements lifecycle.Component. The provider is already exporting by
// the time it is constructed; Start only logs.
func (tp *TracingProvider) Start(ctx context.Context) error {
	if tp.enabled {
		tp.logger.Info("Tracing provider started")
	}
	return nil
}

// Stop flushes remaining spans and shuts the provider down.
func (tp *TracingProvider) Stop(ctx context.Context) error {
	if !tp.enabled {
		return nil
	}
	if err := tp.provider.Shutdown(ctx); err != nil {
		tp.logger.Error("Error shutting down tracer provider: %v", err)
		return err
	}
	tp.logger.Info("Tracing provider stopped")
	return nil
}

// Name implements lifecycle.Component.
func (tp *TracingProvider) Name() string {
	return "Tracing Provider"
}

// GetTracer returns a tracer from the global provider.
func (tp *TracingProvider) GetTracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}

// IsEnabled reports whether spans are exported.
func (tp *TracingProvider) IsEnabled() bool {
	return tp.enabled
}

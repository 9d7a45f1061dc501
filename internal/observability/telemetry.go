package observability

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/membit-bot/botctl"

// Span attribute keys shared by the packages that trace their work.
const (
	AttrServer        = attribute.Key("botctl.server")
	AttrBotCommand    = attribute.Key("bot.command")
	AttrSettingsGroup = attribute.Key("settings.group")
	AttrSessionRoute  = attribute.Key("session.route")
)

// TelemetryConfig selects whether botctl exports traces and how the process
// describes itself. The collector address comes from Endpoint or the
// standard OTEL_EXPORTER_OTLP_* variables.
type TelemetryConfig struct {
	Enabled   bool
	Endpoint  string
	ServerURL string
	Version   string
	Commit    string
}

// TelemetryShutdown flushes pending spans and restores the previous globals.
type TelemetryShutdown func(ctx context.Context) error

// SetupTelemetry installs an OTLP/HTTP tracer provider. Disabled or nil
// config leaves the global noop provider in place.
func SetupTelemetry(ctx context.Context, cfg *TelemetryConfig) (TelemetryShutdown, error) {
	if cfg == nil || !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := telemetryResource(cfg)
	if err != nil {
		return noopShutdown, err
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithCompression(otlptracehttp.GzipCompression)}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return noopShutdown, fmt.Errorf("create otel exporter: %w", err)
	}

	prevProvider := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()
	prevHandler := otel.GetErrorHandler()

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	// Export failures must not leak onto the operator's terminal.
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(error) {}))

	return func(shutdownCtx context.Context) error {
		err := provider.Shutdown(shutdownCtx)

		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
		otel.SetErrorHandler(prevHandler)

		if err != nil {
			return fmt.Errorf("shutdown otel provider: %w", err)
		}

		return nil
	}, nil
}

func telemetryResource(cfg *TelemetryConfig) (*resource.Resource, error) {
	name := os.Getenv("OTEL_SERVICE_NAME")
	if name == "" {
		name = "botctl"
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", name),
		attribute.String("service.version", cfg.Version),
	}

	if cfg.Commit != "" {
		attrs = append(attrs, attribute.String("service.commit", cfg.Commit))
	}

	if cfg.ServerURL != "" {
		attrs = append(attrs, AttrServer.String(cfg.ServerURL))
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("merge otel resource: %w", err)
	}

	return res, nil
}

// StartSpan starts a span on the global provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

// IsTelemetryEnabled reports whether OTEL_ENABLED is set to a true value.
func IsTelemetryEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_ENABLED"))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func noopShutdown(context.Context) error { return nil }

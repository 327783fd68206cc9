package common

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"
)

const instrumentationName string = "github.com/erpc/tck"

var (
	// Overridden at build time via -ldflags.
	TckVersion   = "dev"
	TckCommitSha = "none"
)

var (
	IsTracingEnabled bool

	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	initOnce       sync.Once
)

func InitializeTracing(ctx context.Context, logger *zerolog.Logger, cfg *TracingConfig) error {
	var err error

	initOnce.Do(func() {
		if cfg == nil || !cfg.Enabled {
			logger.Debug().Msg("OpenTelemetry tracing is disabled")
			IsTracingEnabled = false
			return
		}

		logger.Info().
			Str("endpoint", cfg.Endpoint).
			Str("protocol", string(cfg.Protocol)).
			Str("serviceName", cfg.ServiceName).
			Float64("sampleRate", cfg.SampleRate).
			Msg("initializing OpenTelemetry tracing")

		var exporter sdktrace.SpanExporter
		switch cfg.Protocol {
		case TracingProtocolGrpc:
			exporter, err = createTracingGRPCExporter(ctx, cfg)
		case TracingProtocolHttp:
			exporter, err = createTracingHTTPExporter(ctx, cfg)
		default:
			err = fmt.Errorf("unsupported tracing protocol: %s", cfg.Protocol)
		}
		if err != nil {
			logger.Error().Err(err).Msg("failed to create span exporter")
			return
		}

		var res *resource.Resource
		res, err = resource.New(ctx,
			resource.WithAttributes(
				semconv.ServiceNameKey.String(cfg.ServiceName),
				semconv.ServiceVersionKey.String(TckVersion),
				attribute.String("commit.sha", TckCommitSha),
			),
		)
		if err != nil {
			logger.Error().Err(err).Msg("failed to create resource")
			return
		}

		tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithSampler(createTracingSampler(cfg)),
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tracerProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
			logger.Trace().Err(err).Msg("open telemetry export error")
		}))

		tracer = otel.Tracer(instrumentationName)
		IsTracingEnabled = true

		logger.Info().Msg("OpenTelemetry tracing initialized successfully")
	})

	return err
}

func ShutdownTracing(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	return tracerProvider.Shutdown(ctx)
}

func SetTraceSpanError(span trace.Span, err any) {
	if span == nil || !span.IsRecording() {
		return
	}
	e, ok := err.(error)
	if !ok {
		return
	}
	if ce, ok := ClassifyError(e); ok {
		span.SetAttributes(attribute.String("error.channel", string(ce.Channel())))
	}
	if stdErr, ok := e.(StandardError); ok {
		span.SetAttributes(attribute.String("error.code", stdErr.CodeChain()))
		span.RecordError(e)
		span.SetStatus(codes.Error, string(stdErr.Base().Code))
		return
	}
	span.RecordError(e)
	span.SetStatus(codes.Error, ErrorSummary(e))
}

func createTracingGRPCExporter(ctx context.Context, cfg *TracingConfig) (*otlptrace.Exporter, error) {
	secureOption := otlptracegrpc.WithInsecure()
	if !cfg.Insecure {
		secureOption = otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, ""))
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		secureOption,
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	return otlptracegrpc.New(ctx, opts...)
}

func createTracingHTTPExporter(ctx context.Context, cfg *TracingConfig) (*otlptrace.Exporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}

	return otlptracehttp.New(ctx, opts...)
}

func createTracingSampler(cfg *TracingConfig) sdktrace.Sampler {
	if cfg.SampleRate <= 0 {
		return sdktrace.NeverSample()
	}
	if cfg.SampleRate >= 1.0 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
}

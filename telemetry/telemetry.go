// Package telemetry installs the OpenTelemetry trace, metric and log providers
// and their OTLP gRPC exporters.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultOTLPPort is used when an endpoint URL carries no port.
const DefaultOTLPPort = "4317"

type Config struct {
	ServiceName string
	// Endpoint is the OTLP gRPC collector, either "host:port" or a URL such as
	// "http://127.0.0.1:4317". Empty installs only the propagator and leaves
	// the no-op providers in place.
	Endpoint string
	// Insecure disables TLS for a "host:port" endpoint. A URL endpoint decides
	// by its scheme instead.
	Insecure bool
}

// Setup installs the global providers and returns a function flushing and
// stopping all of them. Call it once at startup.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error

	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	handleErr := func(inErr error) {
		err = errors.Join(inErr, shutdown(ctx))
	}

	otel.SetTextMapPropagator(NewPropagator())

	if cfg.Endpoint == "" {
		return shutdown, nil
	}

	endpoint, insecure, err := ParseEndpoint(cfg.Endpoint, cfg.Insecure)
	if err != nil {
		return shutdown, err
	}

	res, err := NewResource(ctx, cfg.ServiceName)
	if err != nil {
		return shutdown, err
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint)}
	logOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(endpoint)}
	if insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		handleErr(err)
		return shutdown, err
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		handleErr(err)
		return shutdown, err
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	logExporter, err := otlploggrpc.New(ctx, logOpts...)
	if err != nil {
		handleErr(err)
		return shutdown, err
	}
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	shutdownFuncs = append(shutdownFuncs, loggerProvider.Shutdown)
	global.SetLoggerProvider(loggerProvider)

	return shutdown, nil
}

// ParseEndpoint turns an OTLP endpoint setting into the "host:port" the gRPC
// exporters dial. A bare "host:port" is returned unchanged with insecure as
// given. A URL must use http (no TLS) or https (TLS); a missing port becomes
// DefaultOTLPPort.
func ParseEndpoint(endpoint string, insecure bool) (hostport string, isInsecure bool, err error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, insecure, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("telemetry: endpoint %q: %w", endpoint, err)
	}
	if u.Hostname() == "" {
		return "", false, fmt.Errorf("telemetry: endpoint %q has no host", endpoint)
	}

	switch u.Scheme {
	case "http":
		isInsecure = true
	case "https":
		isInsecure = false
	default:
		return "", false, fmt.Errorf("telemetry: endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}

	port := u.Port()
	if port == "" {
		port = DefaultOTLPPort
	}

	return net.JoinHostPort(u.Hostname(), port), isInsecure, nil
}

func NewPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// NewResource describes this process. OTEL_RESOURCE_ATTRIBUTES and
// OTEL_SERVICE_NAME override serviceName.
func NewResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
	)
}

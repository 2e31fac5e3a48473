package trace

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/polyglotlab/sosr/pkg/middleware/logger"
)

type InitConfig struct {
	ServiceName    string
	Version        string
	TraceEndpoint  string
	MetricEndpoint string
}

var (
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
)

func InitTrace(ctx context.Context, conf *InitConfig) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(conf.ServiceName),
			semconv.ServiceVersion(conf.Version),
		))
	if err != nil {
		logger.Errorf(ctx, "trace resource init err: %+v", err)
		return
	}

	initTracer(ctx, conf, res)
	initMeter(ctx, conf, res)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	if err := runtime.Start(); err != nil {
		logger.Warnf(ctx, "runtime instrumentation err: %+v", err)
	}
	if err := host.Start(); err != nil {
		logger.Warnf(ctx, "host instrumentation err: %+v", err)
	}
}

func initTracer(ctx context.Context, conf *InitConfig, res *resource.Resource) {
	var exporter sdktrace.SpanExporter
	var err error
	if conf.TraceEndpoint != "" {
		exporter, err = otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(conf.TraceEndpoint),
			otlptracegrpc.WithInsecure()))
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		logger.Errorf(ctx, "trace exporter init err: %+v", err)
		return
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res))
	otel.SetTracerProvider(tracerProvider)
}

func initMeter(ctx context.Context, conf *InitConfig, res *resource.Resource) {
	var exporter sdkmetric.Exporter
	var err error
	if conf.MetricEndpoint != "" {
		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(conf.MetricEndpoint),
			otlpmetricgrpc.WithInsecure())
	} else {
		exporter, err = stdoutmetric.New()
	}
	if err != nil {
		logger.Errorf(ctx, "metric exporter init err: %+v", err)
		return
	}

	meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(time.Minute))),
		sdkmetric.WithResource(res))
	otel.SetMeterProvider(meterProvider)
}

func CloseTrace() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if tracerProvider != nil {
		_ = tracerProvider.Shutdown(ctx)
	}
	if meterProvider != nil {
		_ = meterProvider.Shutdown(ctx)
	}
}

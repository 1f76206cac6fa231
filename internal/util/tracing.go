package util

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Span attribute keys shared by the catalog, order and image spans
const (
	ProductIDKey   = attribute.Key("shop.product.id")
	OrderIDKey     = attribute.Key("shop.order.id")
	OrderItemsKey  = attribute.Key("shop.order.items")
	ImageSourceKey = attribute.Key("shop.image.source")
)

// TracerOptions describes where spans go and how the shop is labelled
type TracerOptions struct {
	Endpoint    string
	Environment string
	Version     string
}

var tracer trace.Tracer

// InitTracer exports shop spans to a Jaeger collector
func InitTracer(opts TracerOptions) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.Endpoint)),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(opts.Version),
			semconv.DeploymentEnvironment(opts.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(ServiceName)

	ComponentLogger("tracing").Info("Tracer initialized",
		zap.String("endpoint", opts.Endpoint),
		zap.String("version", opts.Version),
	)
	return tp, nil
}

// GetTracer returns the shop tracer. Without InitTracer this is the
// otel no-op tracer.
func GetTracer() trace.Tracer {
	if tracer == nil {
		return otel.Tracer(ServiceName)
	}
	return tracer
}

// StartSpan starts a shop span named after the operation, e.g.
// "CatalogService.GetProduct", carrying attrs.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, spanName, trace.WithAttributes(attrs...))
}

package queryall

import (
	"context"
	"fmt"

	"github.com/goccy/go-reflect"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName    = "github.com/jzx17/ctsdk/pkg/queryall"
	instrumentationVersion = "0.1.0"
	metricKeyPrefix        = "queryall."
)

// instrumentation holds the tracer and instruments of one traversal engine.
type instrumentation struct {
	tracer        trace.Tracer
	pageCounter   metric.Int64Counter
	pageDuration  metric.Float64Histogram
	elementsTotal metric.Int64Counter
	elementType   attribute.KeyValue
}

func newInstrumentation(tp trace.TracerProvider, mp metric.MeterProvider, elementType string) (*instrumentation, error) {
	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))

	pageCounter, err := meter.Int64Counter(
		metricKeyPrefix+"page.count",
		metric.WithDescription("Number of page fetches"),
		metric.WithUnit("{pages}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create page.count counter: %w", err)
	}

	pageDuration, err := meter.Float64Histogram(
		metricKeyPrefix+"page.duration",
		metric.WithDescription("Duration of a single page fetch"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create page.duration histogram: %w", err)
	}

	elementsTotal, err := meter.Int64Counter(
		metricKeyPrefix+"element.count",
		metric.WithDescription("Number of elements delivered by traversals"),
		metric.WithUnit("{elements}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create element.count counter: %w", err)
	}

	return &instrumentation{
		tracer: tp.Tracer(
			instrumentationName,
			trace.WithInstrumentationVersion(instrumentationVersion),
		),
		pageCounter:   pageCounter,
		pageDuration:  pageDuration,
		elementsTotal: elementsTotal,
		elementType:   attribute.String("queryall.element_type", elementType),
	}, nil
}

func (i *instrumentation) startTraversal(ctx context.Context, pageSize int64) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, "queryall traverse",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			i.elementType,
			attribute.Int64("queryall.page_size", pageSize),
		))
}

func (i *instrumentation) startPage(ctx context.Context, page, offset int64) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, "queryall page",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			i.elementType,
			attribute.Int64("queryall.page", page),
			attribute.Int64("queryall.offset", offset),
		))
}

func (i *instrumentation) recordPage(ctx context.Context, durationMs float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(i.elementType, attribute.String("status", status))
	i.pageCounter.Add(ctx, 1, attrs)
	i.pageDuration.Record(ctx, durationMs, attrs)
}

func (i *instrumentation) recordElements(ctx context.Context, n int) {
	i.elementsTotal.Add(ctx, int64(n), metric.WithAttributes(i.elementType))
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// elementTypeName names T for telemetry attributes.
func elementTypeName[T any]() string {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if name := typ.Name(); name != "" {
		return name
	}
	return typ.String()
}

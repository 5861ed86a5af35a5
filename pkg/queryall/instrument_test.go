package queryall

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jzx17/ctsdk/internal/testutils"
	"github.com/jzx17/ctsdk/pkg/query"
)

type product struct {
	ID   int
	Name string
}

func newTelemetry(t *testing.T) (*tracetest.SpanRecorder, *sdkmetric.ManualReader, []Option) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	return recorder, reader, []Option{WithTracerProvider(tp), WithMeterProvider(mp)}
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestInstrumentation_SpansAndMetrics(t *testing.T) {
	recorder, reader, opts := newTelemetry(t)

	items := make([]product, 25)
	for i := range items {
		items[i] = product{ID: i + 1, Name: "p"}
	}
	exec := testutils.NewDatasetExecutor(items)

	qa, err := New[product](query.New(), 10, opts...)
	require.NoError(t, err)

	_, err = qa.Run(context.Background(), exec)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 4, "one traversal span and one span per page")

	var traversal, pages int
	for _, span := range spans {
		switch span.Name() {
		case "queryall traverse":
			traversal++
			assert.Contains(t, span.Attributes(), attribute.String("queryall.element_type", "product"))
		case "queryall page":
			pages++
		}
	}
	assert.Equal(t, 1, traversal)
	assert.Equal(t, 3, pages)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.Equal(t, int64(3), sumOf(t, rm, "queryall.page.count"))
	assert.Equal(t, int64(25), sumOf(t, rm, "queryall.element.count"))
}

func TestInstrumentation_RecordsErrors(t *testing.T) {
	recorder, _, opts := newTelemetry(t)

	exec := testutils.NewDatasetExecutor(testutils.Sequence(5))
	exec.FailAt(0, testutils.ErrInjected)

	qa, err := New[int](query.New(), 10, opts...)
	require.NoError(t, err)

	_, err = qa.Run(context.Background(), exec)
	require.Error(t, err)

	for _, span := range recorder.Ended() {
		assert.Equal(t, codes.Error, span.Status().Code, "span %s", span.Name())
	}
}

func TestElementTypeName(t *testing.T) {
	assert.Equal(t, "product", elementTypeName[product]())
	assert.Equal(t, "int", elementTypeName[int]())
	assert.Equal(t, "*queryall.product", elementTypeName[*product]())
}

package llm

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/flowpaste/flowpaste/internal/llm"

var (
	requestDuration   metric.Float64Histogram
	metricsOnce       sync.Once
	metricsRegistered bool
)

func initMetrics() {
	meter := otel.Meter(meterName)
	var err error
	requestDuration, err = meter.Float64Histogram(
		"flowpaste.request.duration",
		metric.WithDescription("Wall time of a streamed completion request, start to terminal event"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return
	}
	metricsRegistered = true
}

// RecordRequestMetrics records the duration of one completion request.
// outcome is one of completed, cancelled, failed or superseded.
func RecordRequestMetrics(ctx context.Context, d time.Duration, outcome string, kind Kind, model string) {
	metricsOnce.Do(initMetrics)
	if !metricsRegistered {
		return
	}
	requestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("provider", string(kind)),
		attribute.String("model", model),
	))
}

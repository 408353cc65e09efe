package privacy

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/flowpaste/flowpaste/internal/privacy"

var (
	maskedCounter     metric.Int64Counter
	metricsOnce       sync.Once
	metricsRegistered bool
)

func initMetrics() {
	meter := otel.Meter(meterName)
	var err error
	maskedCounter, err = meter.Int64Counter(
		"flowpaste.privacy.masked",
		metric.WithDescription("PII values replaced with placeholders"),
		metric.WithUnit("{value}"),
	)
	if err != nil {
		return
	}
	metricsRegistered = true
}

func recordMasked(ctx context.Context, counts map[Category]int) {
	metricsOnce.Do(initMetrics)
	if !metricsRegistered {
		return
	}
	for c, n := range counts {
		maskedCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("category", string(c))))
	}
}

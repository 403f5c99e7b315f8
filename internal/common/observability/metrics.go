package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records panel usage through an OpenTelemetry meter exported
// to the Prometheus default registry. The zero value is a no-op.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	panelTokens   otelmetric.Int64Counter
	panelCost     otelmetric.Float64Counter
	panelDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	panelTokens, _ := meter.Int64Counter(
		"panel.tokens",
		otelmetric.WithDescription("Tokens consumed by panel evaluations"),
	)

	panelCost, _ := meter.Float64Counter(
		"panel.cost",
		otelmetric.WithDescription("Provider cost of panel evaluations"),
		otelmetric.WithUnit("USD"),
	)

	panelDuration, _ := meter.Float64Histogram(
		"panel.duration",
		otelmetric.WithDescription("Panel evaluation duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		panelTokens:   panelTokens,
		panelCost:     panelCost,
		panelDuration: panelDuration,
	}
}

// RecordPanelUsage adds one panel's token and cost totals.
func (o *Observability) RecordPanelUsage(ctx context.Context, tier string, promptTokens, completionTokens int, cost float64) {
	if o == nil {
		return
	}
	if o.panelTokens != nil {
		o.panelTokens.Add(ctx, int64(promptTokens), otelmetric.WithAttributes(
			attribute.String("tier", tier),
			attribute.String("kind", "prompt"),
		))
		o.panelTokens.Add(ctx, int64(completionTokens), otelmetric.WithAttributes(
			attribute.String("tier", tier),
			attribute.String("kind", "completion"),
		))
	}
	if o.panelCost != nil {
		o.panelCost.Add(ctx, cost, otelmetric.WithAttributes(
			attribute.String("tier", tier),
		))
	}
}

// RecordPanelDuration records how long one panel evaluation took.
func (o *Observability) RecordPanelDuration(ctx context.Context, tier string, duration time.Duration, status string) {
	if o == nil || o.panelDuration == nil {
		return
	}
	o.panelDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("status", status),
	))
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}

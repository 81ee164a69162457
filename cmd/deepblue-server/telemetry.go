package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	deepblue "github.com/Grara/deepblue-backend"
	otelexport "github.com/Grara/deepblue-backend/metrics/export/otel"
)

const telemetryInterval = time.Minute

// startTelemetry installs a global MeterProvider that periodically writes
// the engine counters to logger, and binds the engine to it.
func startTelemetry(engine *deepblue.Engine, logger *slog.Logger) (func(), error) {
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
			&logExporter{logger: logger},
			sdkmetric.WithInterval(telemetryInterval),
		)),
	)
	otel.SetMeterProvider(provider)

	exp, err := otelexport.NewExporter(provider.Meter("github.com/Grara/deepblue-backend"), engine)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("otel exporter: %w", err)
	}

	return func() {
		_ = exp.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("deepblue: meter provider shutdown", "error", err)
		}
	}, nil
}

// logExporter is an sdkmetric.Exporter writing one log line per collection.
type logExporter struct {
	logger *slog.Logger
}

func (e *logExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (e *logExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (e *logExporter) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	attrs := make([]any, 0, 32)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					attrs = append(attrs, m.Name, data.DataPoints[0].Value)
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					attrs = append(attrs, m.Name, data.DataPoints[0].Value)
				}
			}
		}
	}
	e.logger.Info("deepblue: metrics", attrs...)
	return nil
}

func (e *logExporter) ForceFlush(context.Context) error { return nil }

func (e *logExporter) Shutdown(context.Context) error { return nil }

package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	deepblue "github.com/Grara/deepblue-backend"
	"github.com/Grara/deepblue-backend/metrics/export/series"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source supplies counter snapshots. *deepblue.Engine satisfies it.
type Source interface {
	MetricsSnapshot() deepblue.MetricsSnapshot
}

// Exporter mirrors engine counters onto a Meter. Every collection reads a
// single snapshot, so all series observed together agree.
type Exporter struct {
	source       Source
	counters     map[deepblue.MetricID]metric.Int64ObservableCounter
	buckets      metric.Int64ObservableGauge
	count        metric.Int64ObservableGauge
	le           []metric.ObserveOption
	registration metric.Registration
}

// NewExporter creates one observable counter per engine counter. Latency is
// published as deepblue_validate_latency_seconds_bucket, a cumulative gauge
// with one le attribute per bucket edge, next to a _count gauge.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[deepblue.MetricID]metric.Int64ObservableCounter, len(series.Counters)),
		le:       make([]metric.ObserveOption, len(series.LatencyBounds)+1),
	}
	observables := make([]metric.Observable, 0, len(series.Counters)+2)

	for _, c := range series.Counters {
		ins, err := meter.Int64ObservableCounter(c.Name(), metric.WithDescription(c.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", c.Name(), err)
		}
		e.counters[c.ID] = ins
		observables = append(observables, ins)
	}

	var err error
	name := series.Latency.Name
	if e.buckets, err = meter.Int64ObservableGauge(name+"_bucket",
		metric.WithDescription(series.Latency.Help+" Cumulative count per upper edge."),
		metric.WithUnit("{validation}")); err != nil {
		return nil, fmt.Errorf("gauge %s_bucket: %w", name, err)
	}
	if e.count, err = meter.Int64ObservableGauge(name+"_count",
		metric.WithDescription(series.Latency.Help+" Total validations timed."),
		metric.WithUnit("{validation}")); err != nil {
		return nil, fmt.Errorf("gauge %s_count: %w", name, err)
	}
	observables = append(observables, e.buckets, e.count)

	for i := range e.le {
		e.le[i] = metric.WithAttributes(attribute.String("le", series.Le(i)))
	}

	if e.registration, err = meter.RegisterCallback(e.observe, observables...); err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for id, ins := range e.counters {
		o.ObserveInt64(ins, int64(snap.Counters[id]))
	}

	raw, ok := snap.Histograms[series.Latency.ID]
	if !ok {
		return nil
	}
	buckets := series.Cumulative(raw)
	for i, n := range buckets {
		o.ObserveInt64(e.buckets, int64(n), e.le[i])
	}
	o.ObserveInt64(e.count, int64(buckets[len(buckets)-1]))
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

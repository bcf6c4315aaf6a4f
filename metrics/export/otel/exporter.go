package otel

import (
	"context"
	"errors"
	"fmt"

	goSala "github.com/MrEthical07/goSala"
	"github.com/MrEthical07/goSala/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("otel: nil meter")
	// ErrNilSource is returned when no client or source is supplied.
	ErrNilSource = errors.New("otel: nil metrics source")
)

// metricsSource is the read side of a client used by the exporter.
type metricsSource interface {
	MetricsSnapshot() goSala.MetricsSnapshot
	AuditDropped() uint64
	RefreshState() (state string, queued int, cycles uint64)
}

// OTelExporter publishes the client counters, the latency buckets and the
// live refresh coordinator state through observable instruments. Every
// instrument is read by one callback per collection, so a single snapshot
// backs all values of a cycle.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	counters map[goSala.MetricID]metric.Int64ObservableCounter
	// buckets holds one gauge per histogram; each bucket is a data point
	// tagged with its "le" bound.
	buckets   map[goSala.MetricID]metric.Int64ObservableGauge
	bucketsLE []metric.ObserveOption

	auditDropped   metric.Int64ObservableCounter
	refreshWaiters metric.Int64ObservableGauge
	refreshActive  metric.Int64ObservableGauge
}

// NewOTelExporter registers instruments reading from client.
func NewOTelExporter(meter metric.Meter, client *goSala.Client) (*OTelExporter, error) {
	if client == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, client)
}

// NewOTelExporterFromSource registers instruments reading from source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:   source,
		counters: make(map[goSala.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
		buckets:  make(map[goSala.MetricID]metric.Int64ObservableGauge, len(internaldefs.HistogramDefs)),
	}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("otel: counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = c
		observables = append(observables, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		name := def.Name + "_bucket"
		g, err := meter.Int64ObservableGauge(name,
			metric.WithDescription(def.Help+" Cumulative count per le bound."),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			return nil, fmt.Errorf("otel: histogram %s: %w", name, err)
		}
		e.buckets[def.ID] = g
		observables = append(observables, g)
	}
	for _, le := range internaldefs.HistogramBoundLabels {
		e.bucketsLE = append(e.bucketsLE, metric.WithAttributes(attribute.String("le", le)))
	}

	var err error
	if e.auditDropped, err = meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp),
	); err != nil {
		return nil, fmt.Errorf("otel: audit dropped: %w", err)
	}
	if e.refreshWaiters, err = meter.Int64ObservableGauge(
		internaldefs.RefreshWaitersName, metric.WithDescription(internaldefs.RefreshWaitersHelp),
	); err != nil {
		return nil, fmt.Errorf("otel: refresh waiters: %w", err)
	}
	if e.refreshActive, err = meter.Int64ObservableGauge(
		internaldefs.RefreshActiveName, metric.WithDescription(internaldefs.RefreshActiveHelp),
	); err != nil {
		return nil, fmt.Errorf("otel: refresh active: %w", err)
	}
	observables = append(observables, e.auditDropped, e.refreshWaiters, e.refreshActive)

	if e.registration, err = meter.RegisterCallback(e.observe, observables...); err != nil {
		return nil, fmt.Errorf("otel: register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for id, c := range e.counters {
		o.ObserveInt64(c, int64(snapshot.Counters[id]))
	}
	for id, g := range e.buckets {
		raw, ok := snapshot.Histograms[id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, le := range e.bucketsLE {
			o.ObserveInt64(g, int64(cumulative[i]), le)
		}
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	state, queued, _ := e.source.RefreshState()
	o.ObserveInt64(e.refreshWaiters, int64(queued))
	var active int64
	if state == goSala.RefreshStateRefreshing {
		active = 1
	}
	o.ObserveInt64(e.refreshActive, active)
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

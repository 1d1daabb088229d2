package otel

import (
	"context"
	"errors"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
}

// observeFunc reports one instrument's value from a snapshot.
type observeFunc func(o metric.Observer, snap goSession.MetricsSnapshot, dropped uint64)

// OTelExporter publishes engine counters and histogram buckets as observable instruments.
type OTelExporter struct {
	source       metricsSource
	observers    []observeFunc
	registration metric.Registration
}

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *goSession.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource is [NewOTelExporter] for any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var instruments []metric.Observable

	counter := func(name, help string, value func(goSession.MetricsSnapshot, uint64) uint64) error {
		ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(help))
		if err != nil {
			return fmt.Errorf("counter %s: %w", name, err)
		}
		instruments = append(instruments, ins)
		e.observers = append(e.observers, func(o metric.Observer, snap goSession.MetricsSnapshot, dropped uint64) {
			o.ObserveInt64(ins, int64(value(snap, dropped)))
		})
		return nil
	}

	for _, def := range internaldefs.CounterDefs {
		id := def.ID
		if err := counter(def.Name, def.Help, func(s goSession.MetricsSnapshot, _ uint64) uint64 { return s.Counters[id] }); err != nil {
			return nil, err
		}
	}
	if err := counter("gosession_audit_dropped_total", "Audit events dropped because the dispatcher buffer was full.",
		func(_ goSession.MetricsSnapshot, dropped uint64) uint64 { return dropped }); err != nil {
		return nil, err
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := e.histogram(meter, def, &instruments)
		if err != nil {
			return nil, err
		}
		e.observers = append(e.observers, buckets)
	}

	reg, err := meter.RegisterCallback(e.collect, instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

// histogram exposes a latency histogram as one cumulative gauge per bucket plus a count,
// since observable instruments cannot carry explicit bucket boundaries.
func (e *OTelExporter) histogram(meter metric.Meter, def internaldefs.HistogramDef, instruments *[]metric.Observable) (observeFunc, error) {
	var gauges [8]metric.Int64ObservableGauge
	for i, suffix := range internaldefs.HistogramBoundSuffix {
		name := def.Name + "_bucket_le_" + suffix
		g, err := meter.Int64ObservableGauge(name, metric.WithDescription(def.Help+" Cumulative count at le="+internaldefs.HistogramBounds[i]+"."))
		if err != nil {
			return nil, fmt.Errorf("bucket gauge %s: %w", name, err)
		}
		gauges[i] = g
		*instruments = append(*instruments, g)
	}
	count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help+" Sample count."))
	if err != nil {
		return nil, fmt.Errorf("count gauge %s: %w", def.Name, err)
	}
	*instruments = append(*instruments, count)

	id := def.ID
	return func(o metric.Observer, snap goSession.MetricsSnapshot, _ uint64) {
		cum := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[id]))
		for i, g := range gauges {
			o.ObserveInt64(g, int64(cum[i]))
		}
		o.ObserveInt64(count, int64(cum[len(cum)-1]))
	}, nil
}

func (e *OTelExporter) collect(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	for _, observe := range e.observers {
		observe(o, snap, dropped)
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

package prometheus

import (
	"net/http"

	goSala "github.com/MrEthical07/goSala"
	"github.com/MrEthical07/goSala/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() goSala.MetricsSnapshot
	AuditDropped() uint64
	RefreshState() (state string, queued int, cycles uint64)
}

type counterDesc struct {
	id   goSala.MetricID
	desc *prometheus.Desc
}

type histogramDesc struct {
	id   goSala.MetricID
	desc *prometheus.Desc
}

// PrometheusExporter is a prometheus.Collector over the client metrics
// snapshot. Values are read on every scrape; nothing is cached.
type PrometheusExporter struct {
	source       metricsSource
	counters     []counterDesc
	histograms   []histogramDesc
	auditDropped   *prometheus.Desc
	refreshWaiters *prometheus.Desc
	refreshActive  *prometheus.Desc
}

var _ prometheus.Collector = (*PrometheusExporter)(nil)

// NewPrometheusExporter creates a collector that reads from the given [goSala.Client].
func NewPrometheusExporter(client *goSala.Client) *PrometheusExporter {
	return NewPrometheusExporterFromSource(client)
}

// NewPrometheusExporterFromSource creates a collector from any value exposing
// a metrics snapshot and the audit drop count.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	p := &PrometheusExporter{
		source:     source,
		counters:   make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		auditDropped: prometheus.NewDesc(
			internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil,
		),
		refreshWaiters: prometheus.NewDesc(
			internaldefs.RefreshWaitersName, internaldefs.RefreshWaitersHelp, nil, nil,
		),
		refreshActive: prometheus.NewDesc(
			internaldefs.RefreshActiveName, internaldefs.RefreshActiveHelp, nil, nil,
		),
	}
	for _, def := range internaldefs.CounterDefs {
		p.counters = append(p.counters, counterDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	for _, def := range internaldefs.HistogramDefs {
		p.histograms = append(p.histograms, histogramDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	return p
}

// Describe implements prometheus.Collector.
func (p *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range p.counters {
		ch <- c.desc
	}
	for _, h := range p.histograms {
		ch <- h.desc
	}
	ch <- p.auditDropped
	ch <- p.refreshWaiters
	ch <- p.refreshActive
}

// Collect implements prometheus.Collector. A disabled metrics set yields no
// samples.
func (p *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	if p == nil || p.source == nil {
		return
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, c := range p.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(snapshot.Counters[c.id]))
	}

	for _, h := range p.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for i, le := range internaldefs.HistogramUpperBounds {
			buckets[le] = cumulative[i]
		}
		// The snapshot keeps no sum of observations.
		ch <- prometheus.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(p.auditDropped, prometheus.CounterValue, float64(dropped))

	state, queued, _ := p.source.RefreshState()
	active := 0.0
	if state == goSala.RefreshStateRefreshing {
		active = 1
	}
	ch <- prometheus.MustNewConstMetric(p.refreshWaiters, prometheus.GaugeValue, float64(queued))
	ch <- prometheus.MustNewConstMetric(p.refreshActive, prometheus.GaugeValue, active)
}

// Handler serves the collector from a private registry, so nothing leaks into
// prometheus.DefaultRegisterer.
func (p *PrometheusExporter) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(p)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

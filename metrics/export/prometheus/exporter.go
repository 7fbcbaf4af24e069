package prometheus

import (
	"net/http"

	goRelay "github.com/MrEthical07/goRelay"
	"github.com/MrEthical07/goRelay/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSource is what the collector reads on every scrape. *goRelay.Bridge
// implements it.
type MetricsSource interface {
	MetricsSnapshot() goRelay.MetricsSnapshot
	EventsDropped() uint64
	ActiveSessions() int
}

type counterDesc struct {
	id   goRelay.MetricID
	desc *prometheus.Desc
}

type histogramDesc struct {
	id   goRelay.MetricID
	desc *prometheus.Desc
}

// Collector is a prometheus.Collector over a [MetricsSource].
type Collector struct {
	source     MetricsSource
	counters   []counterDesc
	histograms []histogramDesc
	active     *prometheus.Desc
	dropped    *prometheus.Desc
	bounds     []float64
}

// NewCollector returns a Collector reading from source.
func NewCollector(source MetricsSource) *Collector {
	c := &Collector{
		source:     source,
		counters:   make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		active:     prometheus.NewDesc(internaldefs.ActiveSessionsName, internaldefs.ActiveSessionsHelp, nil, nil),
		dropped:    prometheus.NewDesc(internaldefs.EventsDroppedName, internaldefs.EventsDroppedHelp, nil, nil),
		bounds:     internaldefs.HistogramBounds(),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, counterDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, histogramDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
	for _, hd := range c.histograms {
		ch <- hd.desc
	}
	ch <- c.active
	ch <- c.dropped
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	snapshot := c.source.MetricsSnapshot()

	for _, cd := range c.counters {
		ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(snapshot.Counters[cd.id]))
	}

	for _, hd := range c.histograms {
		raw, ok := snapshot.Histograms[hd.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(c.bounds))
		for i, le := range c.bounds {
			buckets[le] = cumulative[i]
		}
		count := cumulative[len(cumulative)-1]
		sum := snapshot.HistogramSums[hd.id].Seconds()
		ch <- prometheus.MustNewConstHistogram(hd.desc, count, sum, buckets)
	}

	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(c.source.ActiveSessions()))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.source.EventsDropped()))
}

// Handler serves source on a private registry that also carries the Go
// runtime and process collectors.
func Handler(source MetricsSource) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(source)); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

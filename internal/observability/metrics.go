package observability

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/efebarandurmaz/importgraph/internal/ir"
)

// latencyBuckets are histogram bounds in seconds, from a single small file
// scan up to a large tree.
var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}

// MetricsRegistry holds unlabelled series and renders them in the
// Prometheus text format.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram
}

// Counter only goes up.
type Counter struct {
	help  string
	mu    sync.Mutex
	value float64
}

type Gauge struct {
	help  string
	mu    sync.Mutex
	value float64
}

// Histogram keeps cumulative bucket counts.
type Histogram struct {
	help    string
	buckets []float64
	mu      sync.Mutex
	counts  []uint64
	sum     float64
	count   uint64
}

func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		histos:   make(map[string]*Histogram),
	}
}

func (r *MetricsRegistry) NewCounter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Counter{help: help}
	r.counters[name] = c
	return c
}

func (r *MetricsRegistry) NewGauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := &Gauge{help: help}
	r.gauges[name] = g
	return g
}

// NewHistogram registers a latency histogram over latencyBuckets.
func (r *MetricsRegistry) NewHistogram(name, help string) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := &Histogram{
		help:    help,
		buckets: latencyBuckets,
		counts:  make([]uint64, len(latencyBuckets)),
	}
	r.histos[name] = h
	return h
}

func (c *Counter) Inc() { c.Add(1) }

func (c *Counter) Add(v float64) {
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

func (g *Gauge) Inc() { g.Add(1) }

func (g *Gauge) Dec() { g.Add(-1) }

func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Observe records v in every bucket whose bound it does not exceed.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
		}
	}
}

func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Handler serves the registry for a Prometheus scrape.
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

// WritePrometheus writes counters, then gauges, then histograms, each group
// sorted by name.
func (r *MetricsRegistry) WritePrometheus(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		writeHeader(w, name, "counter", c.help)
		io.WriteString(w, name+" "+formatFloat(c.Value())+"\n")
	}
	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		writeHeader(w, name, "gauge", g.help)
		io.WriteString(w, name+" "+formatFloat(g.Value())+"\n")
	}
	for _, name := range sortedKeys(r.histos) {
		writeHistogram(w, name, r.histos[name])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeHeader(w io.Writer, name, metricType, help string) {
	io.WriteString(w, "# HELP "+name+" "+help+"\n")
	io.WriteString(w, "# TYPE "+name+" "+metricType+"\n")
}

func writeHistogram(w io.Writer, name string, h *Histogram) {
	h.mu.Lock()
	defer h.mu.Unlock()

	writeHeader(w, name, "histogram", h.help)
	for i, bound := range h.buckets {
		io.WriteString(w, name+`_bucket{le="`+formatFloat(bound)+`"} `+formatUint(h.counts[i])+"\n")
	}
	io.WriteString(w, name+`_bucket{le="+Inf"} `+formatUint(h.count)+"\n")
	io.WriteString(w, name+"_sum "+formatFloat(h.sum)+"\n")
	io.WriteString(w, name+"_count "+formatUint(h.count)+"\n")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// AnalysisMetrics contains the metrics exported by the analysis worker.
type AnalysisMetrics struct {
	Registry *MetricsRegistry

	// Runs
	AnalysesTotal       *Counter
	AnalysisErrorsTotal *Counter
	AnalysisDuration    *Histogram
	ActiveAnalyses      *Gauge

	// Scan
	FilesScannedTotal *Counter
	ScanFailuresTotal *Counter
	ScanDuration      *Histogram

	// Graph
	CyclesRejectedTotal *Counter
	GraphNodes          *Gauge
	GraphEdges          *Gauge

	// Store
	StoreWritesTotal *Counter
	StoreErrorsTotal *Counter
	StoreDuration    *Histogram
}

// NewAnalysisMetrics creates the worker metrics on a fresh registry.
func NewAnalysisMetrics() *AnalysisMetrics {
	r := NewMetricsRegistry()

	return &AnalysisMetrics{
		Registry: r,

		AnalysesTotal:       r.NewCounter("importgraph_analyses_total", "Total analysis runs"),
		AnalysisErrorsTotal: r.NewCounter("importgraph_analysis_errors_total", "Total failed analysis runs"),
		AnalysisDuration:    r.NewHistogram("importgraph_analysis_duration_seconds", "End-to-end analysis duration"),
		ActiveAnalyses:      r.NewGauge("importgraph_active_analyses", "Analyses currently running"),

		FilesScannedTotal: r.NewCounter("importgraph_files_scanned_total", "Total source files scanned"),
		ScanFailuresTotal: r.NewCounter("importgraph_scan_failures_total", "Total files that failed to scan"),
		ScanDuration:      r.NewHistogram("importgraph_scan_duration_seconds", "Tree build duration"),

		CyclesRejectedTotal: r.NewCounter("importgraph_cycles_rejected_total", "Total graphs rejected for containing cycles"),
		GraphNodes:          r.NewGauge("importgraph_graph_nodes", "Node count of the latest graph"),
		GraphEdges:          r.NewGauge("importgraph_graph_edges", "Edge count of the latest graph"),

		StoreWritesTotal: r.NewCounter("importgraph_store_writes_total", "Total graph store writes"),
		StoreErrorsTotal: r.NewCounter("importgraph_store_errors_total", "Total graph store errors"),
		StoreDuration:    r.NewHistogram("importgraph_store_duration_seconds", "Graph store write duration"),
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *AnalysisMetrics) Handler() http.Handler {
	return m.Registry.Handler()
}

// Begin marks an analysis as started. The returned func records its end.
func (m *AnalysisMetrics) Begin() func(err error) {
	start := time.Now()
	m.ActiveAnalyses.Inc()
	return func(err error) {
		m.ActiveAnalyses.Dec()
		m.AnalysesTotal.Inc()
		m.AnalysisDuration.ObserveDuration(start)
		if err != nil {
			m.AnalysisErrorsTotal.Inc()
		}
	}
}

// RecordScan records a tree build.
func (m *AnalysisMetrics) RecordScan(duration time.Duration, files, failures int) {
	m.ScanDuration.Observe(duration.Seconds())
	m.FilesScannedTotal.Add(float64(files))
	m.ScanFailuresTotal.Add(float64(failures))
}

// RecordAssemble records a graph assembly. A structural error counts as a
// rejected graph.
func (m *AnalysisMetrics) RecordAssemble(nodes, edges int, err error) {
	var se *ir.StructuralError
	if errors.As(err, &se) {
		m.CyclesRejectedTotal.Inc()
		return
	}
	if err != nil {
		return
	}
	m.GraphNodes.Set(float64(nodes))
	m.GraphEdges.Set(float64(edges))
}

// RecordStore records a graph store write.
func (m *AnalysisMetrics) RecordStore(duration time.Duration, err error) {
	m.StoreWritesTotal.Inc()
	m.StoreDuration.Observe(duration.Seconds())
	if err != nil {
		m.StoreErrorsTotal.Inc()
	}
}

var (
	globalMetrics *AnalysisMetrics
	metricsOnce   sync.Once
)

// Metrics returns the process-wide metrics instance.
func Metrics() *AnalysisMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewAnalysisMetrics()
	})
	return globalMetrics
}

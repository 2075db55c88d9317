package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/efebarandurmaz/importgraph/internal/ir"
)

var errTest = errors.New("test error")

func scrape(t *testing.T, m *AnalysisMetrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
	return w.Body.String()
}

func TestAnalysisMetrics_Scrape(t *testing.T) {
	tests := []struct {
		name   string
		record func(m *AnalysisMetrics)
		want   []string
	}{
		{
			name:   "fresh worker",
			record: func(*AnalysisMetrics) {},
			want: []string{
				"# TYPE importgraph_analyses_total counter",
				"importgraph_analyses_total 0",
				"# TYPE importgraph_active_analyses gauge",
				"# TYPE importgraph_store_duration_seconds histogram",
				`importgraph_store_duration_seconds_bucket{le="+Inf"} 0`,
			},
		},
		{
			name: "successful run",
			record: func(m *AnalysisMetrics) {
				done := m.Begin()
				m.RecordScan(20*time.Millisecond, 12, 1)
				m.RecordAssemble(9, 11, nil)
				m.RecordStore(3*time.Millisecond, nil)
				done(nil)
			},
			want: []string{
				"importgraph_analyses_total 1",
				"importgraph_analysis_errors_total 0",
				"importgraph_active_analyses 0",
				"importgraph_files_scanned_total 12",
				"importgraph_scan_failures_total 1",
				"importgraph_graph_nodes 9",
				"importgraph_graph_edges 11",
				"importgraph_store_writes_total 1",
				`importgraph_scan_duration_seconds_bucket{le="0.01"} 0`,
				`importgraph_scan_duration_seconds_bucket{le="0.05"} 1`,
				"importgraph_scan_duration_seconds_count 1",
				`importgraph_store_duration_seconds_bucket{le="0.005"} 1`,
			},
		},
		{
			name: "cyclic graph rejected",
			record: func(m *AnalysisMetrics) {
				done := m.Begin()
				err := &ir.StructuralError{Cycles: [][]string{{"a", "b"}}}
				m.RecordAssemble(0, 0, err)
				done(err)
			},
			want: []string{
				"importgraph_analyses_total 1",
				"importgraph_analysis_errors_total 1",
				"importgraph_cycles_rejected_total 1",
				"importgraph_graph_nodes 0",
			},
		},
		{
			name: "store failure",
			record: func(m *AnalysisMetrics) {
				m.RecordStore(time.Second, nil)
				m.RecordStore(time.Second, errTest)
			},
			want: []string{
				"importgraph_store_writes_total 2",
				"importgraph_store_errors_total 1",
				"importgraph_store_duration_seconds_sum 2",
				`importgraph_store_duration_seconds_bucket{le="1"} 2`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAnalysisMetrics()
			tt.record(m)
			body := scrape(t, m)
			for _, want := range tt.want {
				if !strings.Contains(body, want+"\n") {
					t.Errorf("missing %q in:\n%s", want, body)
				}
			}
		})
	}
}

func TestAnalysisMetrics_ActiveWhileRunning(t *testing.T) {
	m := NewAnalysisMetrics()
	first := m.Begin()
	second := m.Begin()

	if !strings.Contains(scrape(t, m), "importgraph_active_analyses 2\n") {
		t.Fatal("expected two active analyses")
	}
	first(nil)
	second(errTest)

	if got := m.ActiveAnalyses.Value(); got != 0 {
		t.Fatalf("active = %v", got)
	}
	if got := m.AnalysisDuration.Count(); got != 2 {
		t.Fatalf("duration observations = %d", got)
	}
}

func TestAnalysisMetrics_RejectedGraphKeepsGauges(t *testing.T) {
	m := NewAnalysisMetrics()
	m.RecordAssemble(4, 3, nil)
	m.RecordAssemble(0, 0, &ir.StructuralError{Cycles: [][]string{{"x", "x"}}})
	m.RecordAssemble(0, 0, errTest)

	if m.GraphNodes.Value() != 4 || m.GraphEdges.Value() != 3 {
		t.Fatalf("gauges = %v/%v", m.GraphNodes.Value(), m.GraphEdges.Value())
	}
	if m.CyclesRejectedTotal.Value() != 1 {
		t.Fatalf("rejected = %v", m.CyclesRejectedTotal.Value())
	}
}

func TestWritePrometheus_Order(t *testing.T) {
	body := scrape(t, NewAnalysisMetrics())

	// Counters, then gauges, then histograms; sorted within each group.
	order := []string{
		"# HELP importgraph_analyses_total",
		"# HELP importgraph_analysis_errors_total",
		"# HELP importgraph_store_writes_total",
		"# HELP importgraph_active_analyses",
		"# HELP importgraph_graph_nodes",
		"# HELP importgraph_analysis_duration_seconds",
		"# HELP importgraph_store_duration_seconds",
	}
	last := -1
	for _, s := range order {
		i := strings.Index(body, s)
		if i < 0 {
			t.Fatalf("missing %q", s)
		}
		if i < last {
			t.Errorf("%q out of order", s)
		}
		last = i
	}
}

func TestGlobalMetrics(t *testing.T) {
	if Metrics() == nil || Metrics() != Metrics() {
		t.Fatal("expected one process-wide instance")
	}
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// scrape serves m through its HTTP handler and parses the text exposition.
func scrape(t *testing.T, m *Metrics) map[string]*dto.MetricFamily {
	t.Helper()
	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type: got %q", ct)
	}
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rr.Body)
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}
	return mfs
}

// seriesValue finds the counter or gauge value with the given labels.
func seriesValue(mf *dto.MetricFamily, labels map[string]string) (float64, bool) {
	if mf == nil {
		return 0, false
	}
outer:
	for _, m := range mf.GetMetric() {
		if len(m.GetLabel()) != len(labels) {
			continue
		}
		for _, lp := range m.GetLabel() {
			if labels[lp.GetName()] != lp.GetValue() {
				continue outer
			}
		}
		if m.Counter != nil {
			return m.Counter.GetValue(), true
		}
		return m.Gauge.GetValue(), true
	}
	return 0, false
}

func TestCounters_Exposition(t *testing.T) {
	m := New()
	m.CacheRequest("data", ResultMiss)
	m.CacheRequest("data", ResultHit)
	m.CacheRequest("data", ResultHit)
	m.UpstreamRequest("json", OutcomeOK)
	m.Scrape(OutcomeRowNotFound)

	mfs := scrape(t, m)

	tests := []struct {
		family string
		labels map[string]string
		want   float64
	}{
		{"ownerwatch_cache_requests_total", map[string]string{"route": "data", "result": "hit"}, 2},
		{"ownerwatch_cache_requests_total", map[string]string{"route": "data", "result": "miss"}, 1},
		{"ownerwatch_upstream_requests_total", map[string]string{"kind": "json", "outcome": "ok"}, 1},
		{"ownerwatch_scrapes_total", map[string]string{"outcome": "row_not_found"}, 1},
	}
	for _, tc := range tests {
		got, ok := seriesValue(mfs[tc.family], tc.labels)
		if !ok {
			t.Errorf("%s%v: series missing", tc.family, tc.labels)
			continue
		}
		if got != tc.want {
			t.Errorf("%s%v: got %v, want %v", tc.family, tc.labels, got, tc.want)
		}
	}
	if mfs["ownerwatch_cache_requests_total"].GetType() != dto.MetricType_COUNTER {
		t.Errorf("cache_requests type: got %v", mfs["ownerwatch_cache_requests_total"].GetType())
	}
}

func TestCacheEntriesGauge(t *testing.T) {
	m := New()
	n := 3
	m.CacheEntries(func() int { return n })

	got, ok := seriesValue(scrape(t, m)["ownerwatch_cache_entries"], map[string]string{})
	if !ok || got != 3 {
		t.Fatalf("ownerwatch_cache_entries: got %v (found=%v), want 3", got, ok)
	}
}

func TestRecorders(t *testing.T) {
	m := New()
	m.CacheRequest("market-guide", ResultMiss)
	m.UpstreamRequest("html", OutcomeError)
	m.Scrape(OutcomeMalformed)
	m.Scrape(OutcomeMalformed)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"cache", m.CacheRequests.WithLabelValues("market-guide", ResultMiss), 1},
		{"upstream", m.UpstreamRequests.WithLabelValues("html", OutcomeError), 1},
		{"scrapes", m.Scrapes.WithLabelValues(OutcomeMalformed), 2},
		{"untouched", m.Scrapes.WithLabelValues(OutcomeOK), 0},
	}
	for _, tc := range tests {
		if got := testutil.ToFloat64(tc.c); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.CacheRequest("data", ResultHit)
	m.UpstreamRequest("json", OutcomeOK)
	m.Scrape(OutcomeOK)
}

func TestPrivateRegistry(t *testing.T) {
	m := New()
	m.CacheRequest("data", ResultHit)
	for name := range scrape(t, m) {
		if !strings.HasPrefix(name, "ownerwatch_") {
			t.Errorf("unexpected family %q exposed", name)
		}
	}
}

func TestServeHTTP_MethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	New().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

func TestConcurrentInc(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.CacheRequest("owner-change", ResultMiss)
		}()
		go func() {
			defer wg.Done()
			_, _ = m.Registry.Gather()
		}()
	}
	wg.Wait()
	if v := testutil.ToFloat64(m.CacheRequests.WithLabelValues("owner-change", ResultMiss)); v != 100 {
		t.Errorf("after concurrent Inc: got %v, want 100", v)
	}
}

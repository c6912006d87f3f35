package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounterAndGauge(t *testing.T) {
	r := NewRegistry("test", "")

	c := r.RegisterCounter("hits_total", "hits", nil)
	c.Inc()
	c.Add(4)
	if got := c.Value(); got != 5 {
		t.Errorf("counter = %d, want 5", got)
	}
	if c.Name() != "test_hits_total" {
		t.Errorf("name = %q", c.Name())
	}
	if again := r.RegisterCounter("hits_total", "hits", nil); again != c {
		t.Error("re-registering should return the existing counter")
	}

	g := r.RegisterGauge("level", "level", nil)
	g.Set(3)
	g.Inc()
	g.Dec()
	g.Dec()
	if got := g.Value(); got != 2 {
		t.Errorf("gauge = %d, want 2", got)
	}
	g.SetBool(true)
	if g.Value() != 1 {
		t.Error("SetBool(true) should store 1")
	}
	g.SetBool(false)
	if g.Value() != 0 {
		t.Error("SetBool(false) should store 0")
	}
}

func TestHistogramBuckets(t *testing.T) {
	r := NewRegistry("", "")
	h := r.RegisterHistogram("lat", "latency", nil, []float64{0.01, 0.1})

	h.Observe(0.005)
	h.Observe(0.01)
	h.Observe(0.05)
	h.ObserveDuration(time.Second)
	h.ObserveDuration(-time.Millisecond)

	if h.Count() != 5 {
		t.Fatalf("count = %d, want 5", h.Count())
	}

	var b strings.Builder
	if err := r.WritePrometheus(&b); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	for _, want := range []string{
		`lat_bucket{le="0.01"} 3`,
		`lat_bucket{le="0.1"} 4`,
		`lat_bucket{le="+Inf"} 5`,
		"lat_count 5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q:\n%s", want, out)
		}
	}
}

func TestWritePrometheusSorted(t *testing.T) {
	r := NewRegistry("kw", "")
	r.RegisterCounter("zeta_total", "z", nil).Inc()
	r.RegisterCounter("alpha_total", "a", Labels{"source": "evdev"}).Add(2)

	var b strings.Builder
	if err := r.WritePrometheus(&b); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	a := strings.Index(out, "kw_alpha_total")
	z := strings.Index(out, "kw_zeta_total")
	if a < 0 || z < 0 || a > z {
		t.Errorf("counters not sorted:\n%s", out)
	}
	if !strings.Contains(out, `kw_alpha_total{source="evdev"} 2`) {
		t.Errorf("labels not rendered:\n%s", out)
	}
}

func TestDiagnosticsHTTPHandler(t *testing.T) {
	r := NewRegistry("keyway", "")
	d := NewDiagnostics(r)
	d.ChordsTotal.Add(7)
	d.VisibleItems.Set(3)

	rec := httptest.NewRecorder()
	r.HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "keyway_chords_total 7") {
		t.Errorf("missing chords_total:\n%s", body)
	}
	if !strings.Contains(body, "keyway_overlay_visible_items 3") {
		t.Errorf("missing visible items:\n%s", body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}

	snap := r.Snapshot()
	if snap["keyway_chords_total"] != 7 {
		t.Errorf("snapshot chords = %d", snap["keyway_chords_total"])
	}
}

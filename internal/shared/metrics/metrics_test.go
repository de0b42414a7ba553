package metrics

import (
	"strings"
	"testing"
)

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	snap := h.Snapshot()
	if snap.count != 3 || snap.sum != 555 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	var cumulative uint64
	want := []uint64{1, 2}
	for i := range snap.buckets {
		cumulative += snap.counts[i]
		if cumulative != want[i] {
			t.Fatalf("bucket %v cumulative = %d, want %d", snap.buckets[i], cumulative, want[i])
		}
	}
}

func TestRenderIncludesFailureKinds(t *testing.T) {
	IncAnalysisFailed("gemini", "RateLimited")
	IncExtraction("application/pdf", "ok")

	out := Render()
	for _, want := range []string{
		`analysis_failures_total{provider="gemini",kind="RateLimited"}`,
		`extraction_total{mime="application/pdf",outcome="ok"}`,
		"# TYPE analysis_duration_ms histogram",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

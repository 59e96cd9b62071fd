package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandler_Counters(t *testing.T) {
	h := New()
	h.IncLines("parsed")
	h.IncLines("parsed")
	h.IncLines("skipped")
	h.IncLinesSkipped("field_count")
	h.AddLines("blank", 3)
	h.AddLines("blank", 0)
	h.AddLookupRows("loaded", 11)
	h.IncRecordsTagged("web")

	if got := testutil.ToFloat64(h.LinesTotal.WithLabelValues("parsed")); got != 2 {
		t.Errorf("Expected 2 parsed lines, got %v", got)
	}
	if got := testutil.ToFloat64(h.LinesTotal.WithLabelValues("blank")); got != 3 {
		t.Errorf("Expected 3 blank lines, got %v", got)
	}
	if got := testutil.ToFloat64(h.LookupRowsTotal.WithLabelValues("loaded")); got != 11 {
		t.Errorf("Expected 11 loaded rows, got %v", got)
	}
	if got := testutil.ToFloat64(h.LinesSkippedTotal.WithLabelValues("field_count")); got != 1 {
		t.Errorf("Expected 1 skipped line, got %v", got)
	}
}

func TestHandler_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.IncLines("parsed")
	if got := testutil.ToFloat64(b.LinesTotal.WithLabelValues("parsed")); got != 0 {
		t.Errorf("Handlers must not share counters, got %v", got)
	}
}

func TestHandler_WriteTextfile(t *testing.T) {
	h := New()
	h.IncRecordsTagged("sv_P1")
	start := time.Unix(1700000000, 0)
	h.ObserveRun(start, start.Add(1500*time.Millisecond), false)

	path := filepath.Join(t.TempDir(), "flowtagger.prom")
	if err := h.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read textfile: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`flowtagger_records_tagged_total{tag="sv_P1"} 1`,
		"flowtagger_run_duration_seconds 1.5",
		"flowtagger_last_run_timestamp_seconds 1.7e+09",
		"flowtagger_last_run_success 0",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected textfile to contain %q, got:\n%s", want, text)
		}
	}
}

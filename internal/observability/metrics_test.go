package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.TicketCreated("gamepass")
	m.TicketCreated("gamepass")
	m.TicketClosed("fail")
	m.RecordSweep("inactivity", 20*time.Millisecond, 2)

	if got := testutil.ToFloat64(m.ticketsCreated.WithLabelValues("gamepass")); got != 2 {
		t.Fatalf("expected 2 created, got %v", got)
	}
	if got := testutil.ToFloat64(m.sweepErrors.WithLabelValues("inactivity")); got != 2 {
		t.Fatalf("expected 2 sweep errors, got %v", got)
	}
	if got := testutil.ToFloat64(m.sweepRuns.WithLabelValues("inactivity")); got != 1 {
		t.Fatalf("expected 1 sweep run, got %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.TicketCreated("other")
	m.RecordRequest("/health/live", "GET", 200, time.Millisecond)
	m.RecordError("/health/live", "GET", "INTERNAL_ERROR")
}

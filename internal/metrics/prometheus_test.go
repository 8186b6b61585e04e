package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCounters(t *testing.T) {
	p := NewPrometheus("test")

	p.HostStart(OutcomeOK)
	p.HostStart(OutcomeOK)
	p.HostStart(OutcomeError)
	p.HostExit(1)
	p.RuntimeInstall(OutcomeOK)
	p.SnapshotRefresh(OutcomeError)
	p.CommandDispatch("diff.open", OutcomeOK, 5*time.Millisecond)

	if got := testutil.ToFloat64(p.hostStarts.WithLabelValues(OutcomeOK)); got != 2 {
		t.Errorf("host starts ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.hostStarts.WithLabelValues(OutcomeError)); got != 1 {
		t.Errorf("host starts error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.hostExits.WithLabelValues("1")); got != 1 {
		t.Errorf("host exits code 1 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.dispatches.WithLabelValues("diff.open", OutcomeOK)); got != 1 {
		t.Errorf("dispatches = %v, want 1", got)
	}
}

func TestPrometheusRegistryGathers(t *testing.T) {
	p := NewPrometheus("")
	p.HostStart(OutcomeOK)

	families, err := p.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one metric family")
	}
}

func TestNopCollectorIsSafe(t *testing.T) {
	c := Nop()
	c.HostStart(OutcomeOK)
	c.HostExit(0)
	c.HostStopDuration(time.Second)
	c.RuntimeInstall(OutcomeError)
	c.SnapshotRefresh(OutcomeOK)
	c.CommandDispatch("x", OutcomeOK, 0)
}

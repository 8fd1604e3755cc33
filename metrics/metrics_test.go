package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/enverbisevac/dmutex/lock"
	"github.com/enverbisevac/dmutex/lock/inmem"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fixedStats lock.Stats

func (s fixedStats) Stats() lock.Stats { return lock.Stats(s) }

func TestCollector(t *testing.T) {
	src := fixedStats{
		Acquired:          3,
		Timeouts:          1,
		Released:          2,
		Held:              1,
		TotalHoldDuration: 1500 * time.Millisecond,
	}

	expected := `
# HELP test_lock_acquired_total Total number of successful lock acquisitions
# TYPE test_lock_acquired_total counter
test_lock_acquired_total 3
# HELP test_lock_held Current number of locks held
# TYPE test_lock_held gauge
test_lock_held 1
# HELP test_lock_hold_seconds_total Cumulative hold time of released locks
# TYPE test_lock_hold_seconds_total counter
test_lock_hold_seconds_total 1.5
# HELP test_lock_timeouts_total Total number of acquisitions that timed out
# TYPE test_lock_timeouts_total counter
test_lock_timeouts_total 1
`
	err := testutil.CollectAndCompare(NewCollector(src, "test"), strings.NewReader(expected),
		"test_lock_acquired_total", "test_lock_held", "test_lock_hold_seconds_total", "test_lock_timeouts_total")
	if err != nil {
		t.Fatal(err)
	}
}

func TestRegisterService(t *testing.T) {
	store := inmem.New()
	defer store.Close()
	svc := lock.New(store)

	reg := prometheus.NewRegistry()
	if err := Register(reg, svc, ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.Run(context.Background(), "R", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("run: %v", err)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 9 {
		t.Fatalf("expected 9 metric families, got %d", len(mfs))
	}
	for _, mf := range mfs {
		if mf.GetName() == "dmutex_lock_acquired_total" {
			if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 1 {
				t.Fatalf("acquired = %v, want 1", v)
			}
		}
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	src := fixedStats{}
	if err := Register(reg, src, ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(reg, src, ""); err == nil {
		t.Fatal("expected error on duplicate registration")
	}
}

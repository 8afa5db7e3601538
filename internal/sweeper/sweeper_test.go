package sweeper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunsRepeatedly(t *testing.T) {
	var runs atomic.Int64
	s := Start(10*time.Millisecond, func(context.Context) {
		runs.Add(1)
	})
	time.Sleep(100 * time.Millisecond)
	s.Stop()
	if n := runs.Load(); n < 2 {
		t.Errorf("expected repeated runs, got %d", n)
	}
}

func TestRunsNeverOverlap(t *testing.T) {
	var inFlight atomic.Int64
	var overlapped atomic.Bool
	s := Start(5*time.Millisecond, func(context.Context) {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		// slower than the interval: a fixed-rate timer would pile up here
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
	})
	time.Sleep(150 * time.Millisecond)
	s.Stop()
	if overlapped.Load() {
		t.Error("sweep ticks overlapped")
	}
}

func TestStopWaitsForInFlightRun(t *testing.T) {
	var done atomic.Bool
	s := Start(5*time.Millisecond, func(context.Context) {
		time.Sleep(30 * time.Millisecond)
		done.Store(true)
	})
	time.Sleep(10 * time.Millisecond) // let the first run start
	s.Stop()
	if !done.Load() {
		t.Error("Stop returned while a run was still in flight")
	}
}

func TestStopIdempotentAndNilSafe(t *testing.T) {
	s := Start(time.Hour, func(context.Context) {})
	s.Stop()
	s.Stop()

	var nilSweeper *Sweeper
	nilSweeper.Stop() // must not panic
}

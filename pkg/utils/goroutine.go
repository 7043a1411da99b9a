package utils

import (
	"runtime"
	"testing"
	"time"
)

// LeakCheck compares goroutine counts around a block of test code. It is
// used by the transport and session tests, whose reader loops and SSE
// writers must exit when their owner closes.
type LeakCheck struct {
	tb        testing.TB
	baseline  int
	tolerance int
	settle    time.Duration
}

// StartLeakCheck records the current goroutine count after letting
// in-flight goroutines settle
func StartLeakCheck(tb testing.TB) *LeakCheck {
	lc := &LeakCheck{tb: tb, settle: 100 * time.Millisecond}
	time.Sleep(lc.settle)
	lc.baseline = runtime.NumGoroutine()
	return lc
}

// Tolerate allows n extra goroutines at Verify time
func (lc *LeakCheck) Tolerate(n int) *LeakCheck {
	lc.tolerance = n
	return lc
}

// Verify polls until the count is back within tolerance or the deadline
// passes, then reports the stacks of whatever is left
func (lc *LeakCheck) Verify() {
	lc.tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		current := runtime.NumGoroutine()
		if current-lc.baseline <= lc.tolerance {
			return
		}
		if time.Now().After(deadline) {
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			lc.tb.Errorf("goroutine leak: %d before, %d after (tolerance %d)\n%s",
				lc.baseline, current, lc.tolerance, buf[:n])
			return
		}
		time.Sleep(lc.settle)
	}
}

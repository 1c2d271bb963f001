package vm

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// PerfTracer appends timestamped event lines to a trace file for offline
// diagnostics. Each line is "sec.nanosec id" against the monotonic clock.
// A nil tracer is valid and every method on it is a no-op, so callers
// never guard trace points.
type PerfTracer struct {
	mu sync.Mutex
	f  *os.File
}

// NewPerfTracer opens (truncating) the trace file and records the init
// event.
func NewPerfTracer(path string) (*PerfTracer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	t := &PerfTracer{f: f}
	t.Trace("<init>")
	return t, nil
}

// Trace records one event.
func (t *PerfTracer) Trace(id string) {
	if t == nil {
		return
	}
	sec, nsec := monotonicNow()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f != nil {
		fmt.Fprintf(t.f, "%d.%09d %s\n", sec, nsec, id)
	}
}

// TraceOp records one bytecode-level event by opcode number.
func (t *PerfTracer) TraceOp(op int) {
	t.Trace(fmt.Sprintf("<op %d>", op))
}

// Close records the fini event and closes the file. Safe on nil and safe
// to call twice.
func (t *PerfTracer) Close() {
	if t == nil {
		return
	}
	t.Trace("<fini>")
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f != nil {
		t.f.Close()
		t.f = nil
	}
}

// monotonicNow reads CLOCK_MONOTONIC directly so trace timestamps match
// other monotonic tooling on the host.
func monotonicNow() (sec int64, nsec int64) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, 0
	}
	return ts.Sec, ts.Nsec
}

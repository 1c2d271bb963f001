package vm

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("ripley.vm")

// ---------------------------------------------------------------------------
// Interp: per-interpreter allocator state
// ---------------------------------------------------------------------------

// Interp holds the allocator-facing state of one interpreter: the backing
// heap, the interpreter-owned freelist container (single-lock builds),
// object statistics, and the diagnostic tracer.
type Interp struct {
	// ID identifies this interpreter instance in diagnostics.
	ID uuid.UUID

	cfg    *HeapConfig
	heap   *Heap
	stats  ObjectStats
	tracer *PerfTracer

	// freelists is the interpreter-owned container. Used only by
	// single-lock builds; concurrentheap builds keep containers on
	// thread states.
	freelists Freelists

	// types pins registered TypeInfo values: heap blocks hold type
	// pointers that Go's GC cannot see.
	types []*TypeInfo

	finalized bool
}

// NewInterp creates an interpreter allocator with the given configuration.
// A nil cfg selects DefaultHeapConfig.
func NewInterp(cfg *HeapConfig) (*Interp, error) {
	if cfg == nil {
		cfg = DefaultHeapConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ip := &Interp{
		ID:   uuid.New(),
		cfg:  cfg,
		heap: NewHeap("object", cfg.ChunkSize),
	}
	if cfg.HeapLimit > 0 {
		ip.heap.SetLimit(uintptr(cfg.HeapLimit))
	}
	initFreelists(&ip.freelists, cfg.Freelists)

	if cfg.TraceFile != "" {
		t, err := NewPerfTracer(cfg.TraceFile)
		if err != nil {
			return nil, fmt.Errorf("vm: open trace file: %w", err)
		}
		ip.tracer = t
	}

	log.Infof("interpreter %s: heap ready (chunk size %d)", ip.ID, cfg.ChunkSize)
	return ip, nil
}

// Config returns the interpreter's heap configuration.
func (ip *Interp) Config() *HeapConfig { return ip.cfg }

// Heap returns the interpreter's backing heap.
func (ip *Interp) Heap() *Heap { return ip.heap }

// Stats returns the interpreter's object statistics block.
func (ip *Interp) Stats() *ObjectStats { return &ip.stats }

// Tracer returns the diagnostic tracer, or nil when tracing is off.
func (ip *Interp) Tracer() *PerfTracer { return ip.tracer }

// RegisterType pins tp for the interpreter's lifetime and returns it.
// Every TypeInfo whose instances are heap-allocated must be registered
// (or reachable from package state).
func (ip *Interp) RegisterType(tp *TypeInfo) *TypeInfo {
	ip.types = append(ip.types, tp)
	return tp
}

// Finalize drains interpreter-owned freelists and closes the tracer.
// Safe to call once; further allocation through this interpreter is a
// caller bug.
func (ip *Interp) Finalize() {
	if ip.finalized {
		return
	}
	ip.finalized = true

	drained := finalizeFreelists(ip)
	snap := ip.stats.Snapshot(ip.ID.String())
	log.Infof("interpreter %s finalized: %d recycled blocks released, %d allocations, %d raw allocs",
		ip.ID, drained, snap.Allocations, snap.RawAllocs)
	ip.tracer.Close()
}

// ---------------------------------------------------------------------------
// ThreadState: per-thread allocator view
// ---------------------------------------------------------------------------

// ThreadState is one thread's view of the allocator. The concurrentheap
// build gives each thread its own freelist container and arenas; the
// default build routes everything to the interpreter's state.
//
// A ThreadState is owned by exactly one thread and must never be shared.
type ThreadState struct {
	interp *Interp

	// fl is the thread-owned freelist container (concurrentheap builds).
	fl Freelists

	// heaps are the thread allocation arenas (concurrentheap builds):
	// default object, GC-tracked, GC-tracked with pre-header.
	heaps [3]*Heap
}

// NewThreadState attaches a new thread to the interpreter's allocator.
func NewThreadState(ip *Interp) *ThreadState {
	if ip.finalized {
		panic("vm: thread state on finalized interpreter")
	}
	ts := &ThreadState{interp: ip}
	initThreadAllocState(ts)
	return ts
}

// Interp returns the owning interpreter.
func (ts *ThreadState) Interp() *Interp { return ts.interp }

// Freelists returns the container serving this thread: thread-owned in
// concurrentheap builds, interpreter-owned otherwise.
func (ts *ThreadState) Freelists() *Freelists { return ts.freelists() }

// Close detaches the thread, draining any thread-owned recycled blocks
// back to the backing allocator.
func (ts *ThreadState) Close() {
	closeThreadAllocState(ts)
}

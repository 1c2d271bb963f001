//go:build concurrentheap

package vm

// Concurrent-safe mode: every thread owns its freelist container and a
// set of allocation arenas, so the allocation fast path takes no lock.
// Memory freed by a different thread than its allocator goes through the
// backing heap, never through another thread's container.

// Arena indexes for the per-thread heaps.
const (
	heapObject = iota // default: untracked, no pre-header
	heapGC            // cycle-GC tracked
	heapGCPre         // cycle-GC tracked with pre-header
)

// freelists returns the container serving this thread.
func (ts *ThreadState) freelists() *Freelists {
	return &ts.fl
}

// allocationHeap selects the thread arena for an allocation of tp from
// the type's traceability and header shape. The choice is passed down
// explicitly; nested allocations are unaffected by an outer call's
// selection.
func allocationHeap(ts *ThreadState, tp *TypeInfo) *Heap {
	switch {
	case tp != nil && tp.HasPreHeader:
		return ts.heaps[heapGCPre]
	case tp != nil && tp.IsGC:
		return ts.heaps[heapGC]
	default:
		return ts.heaps[heapObject]
	}
}

// initThreadAllocState builds the thread's arenas and freelist container.
func initThreadAllocState(ts *ThreadState) {
	cfg := ts.interp.cfg
	ts.heaps[heapObject] = NewHeap("object", cfg.ChunkSize)
	ts.heaps[heapGC] = NewHeap("gc", cfg.ChunkSize)
	ts.heaps[heapGCPre] = NewHeap("gc-pre", cfg.ChunkSize)
	if cfg.HeapLimit > 0 {
		for _, h := range ts.heaps {
			h.SetLimit(uintptr(cfg.HeapLimit))
		}
	}
	initFreelists(&ts.fl, cfg.Freelists)
}

// closeThreadAllocState drains the thread-owned container back to the
// thread's default arena.
func closeThreadAllocState(ts *ThreadState) {
	n := ClearFreelists(&ts.fl, false, ts.heaps[heapObject].Free)
	log.Debugf("thread state closed: %d recycled blocks released", n)
}

// finalizeFreelists has nothing to drain at the interpreter: containers
// are thread-owned in this mode.
func finalizeFreelists(ip *Interp) int { return 0 }

//go:build !concurrentheap

package vm

// Single-lock mode: one freelist container and one backing heap per
// interpreter, shared by every thread that runs under its lock.

// freelists returns the container serving this thread.
func (ts *ThreadState) freelists() *Freelists {
	return &ts.interp.freelists
}

// allocationHeap returns the backing heap for an allocation of tp. There
// is a single interpreter heap in this mode; object category does not
// matter.
func allocationHeap(ts *ThreadState, tp *TypeInfo) *Heap {
	return ts.interp.heap
}

// initThreadAllocState is a no-op: allocator state lives on the
// interpreter in this mode.
func initThreadAllocState(ts *ThreadState) {}

// closeThreadAllocState is a no-op: the interpreter drains its container
// at finalization.
func closeThreadAllocState(ts *ThreadState) {}

// finalizeFreelists drains the interpreter-owned container at final
// teardown.
func finalizeFreelists(ip *Interp) int {
	return ClearFreelists(&ip.freelists, true, ip.heap.Free)
}

package vm

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrOutOfMemory is returned when the backing heap cannot satisfy an
// allocation. The interpreter converts it into the language's standard
// out-of-memory signaling; the allocator never retries.
var ErrOutOfMemory = errors.New("vm: out of memory")

// Small-object size classing: requests up to smallRequestThreshold bytes
// are rounded up to a 16-byte granule and served from per-class
// freelists.
const (
	alignmentShift         = 4
	alignment              = 1 << alignmentShift
	smallRequestThreshold  = 512
	numSmallSizeClasses    = smallRequestThreshold >> alignmentShift
)

// sizeClass maps a total block size (including header and any pre-header)
// to its freelist index. size must be in (0, smallRequestThreshold].
func sizeClass(size uintptr) int {
	return int((size - 1) >> alignmentShift)
}

// classBlockSize returns the block size served by size class cls.
func classBlockSize(cls int) uintptr {
	return uintptr(cls+1) << alignmentShift
}

// ---------------------------------------------------------------------------
// Object allocation
// ---------------------------------------------------------------------------

// AllocObject allocates and header-initializes an instance of tp. size is
// the object's byte size including the header but excluding any
// pre-header; any pre-header overhead is folded in here. Small requests
// are served from the executing thread's size-class freelists first; a
// miss or an oversized request falls through to the backing heap.
//
// A recycled block is not zeroed beyond the header: the object's own
// initializer is responsible for its payload.
func (ts *ThreadState) AllocObject(tp *TypeInfo, size uintptr) (*Object, error) {
	if size < HeaderSize {
		panic("vm: allocation smaller than object header")
	}
	presize := preheaderSize(tp)
	total := size + presize

	if total <= smallRequestThreshold {
		fl := &ts.freelists().bySize[sizeClass(total)]
		if mem := fl.Pop(); mem != nil {
			ts.interp.stats.fromFreelist.Add(1)
			ts.interp.stats.allocations.Add(1)
			obj := (*Object)(unsafe.Add(mem, presize))
			newReference(obj, tp)
			return obj, nil
		}
		// Carve the full class block, not just the request: a recycled
		// block must serve any later request in the same class.
		total = classBlockSize(sizeClass(total))
	}

	mem := allocationHeap(ts, tp).Alloc(total)
	if mem == nil {
		ts.interp.stats.oomFailures.Add(1)
		ts.interp.tracer.Trace("<oom>")
		log.Errorf("allocation failed: %s (%d bytes)", tp.Name, total)
		return nil, fmt.Errorf("vm: allocate %s (%d bytes): %w", tp.Name, total, ErrOutOfMemory)
	}
	ts.interp.stats.rawAllocs.Add(1)
	obj := (*Object)(unsafe.Add(mem, presize))
	newReference(obj, tp)
	ts.interp.stats.allocations.Add(1)
	return obj, nil
}

// FreeObject releases an instance of size bytes (header included,
// pre-header excluded). Small blocks are retained on the matching
// size-class freelist; a full list or an oversized block goes back to the
// backing heap.
func (ts *ThreadState) FreeObject(obj *Object, size uintptr) {
	if size < HeaderSize {
		panic("vm: free smaller than object header")
	}
	tp := obj.typ
	presize := preheaderSize(tp)
	total := size + presize
	mem := unsafe.Add(unsafe.Pointer(obj), -int(presize))

	ts.interp.stats.frees.Add(1)
	if total <= smallRequestThreshold {
		if ts.freelists().bySize[sizeClass(total)].Push(mem) {
			ts.interp.stats.toFreelist.Add(1)
			return
		}
	}
	allocationHeap(ts, tp).Free(mem)
	ts.interp.stats.rawFrees.Add(1)
}

// ---------------------------------------------------------------------------
// Dedicated typed freelists
// ---------------------------------------------------------------------------

// PopObjectFrom pulls a recycled instance of tp from a dedicated typed
// freelist, rewriting its header. Returns nil when the list is empty and
// the caller must allocate fresh.
func (ts *ThreadState) PopObjectFrom(fl *FreeList, tp *TypeInfo) *Object {
	mem := fl.Pop()
	if mem == nil {
		return nil
	}
	ts.interp.stats.fromFreelist.Add(1)
	obj := (*Object)(mem)
	newReference(obj, tp)
	return obj
}

// PopMemFrom pulls a recycled non-object block from a dedicated freelist.
// Returns nil when the list is empty.
func (ts *ThreadState) PopMemFrom(fl *FreeList) unsafe.Pointer {
	mem := fl.Pop()
	if mem != nil {
		ts.interp.stats.fromFreelist.Add(1)
	}
	return mem
}

// FreeObjectTo retains obj on a dedicated typed freelist, releasing it
// through dofree when the list is full. Only for types without a
// pre-header: the list link smashes the header's first word.
func (ts *ThreadState) FreeObjectTo(fl *FreeList, obj *Object, dofree func(unsafe.Pointer)) {
	if obj.typ != nil && obj.typ.HasPreHeader {
		panic("vm: typed freelist cannot hold pre-header objects")
	}
	ts.interp.stats.frees.Add(1)
	if fl.Push(unsafe.Pointer(obj)) {
		ts.interp.stats.toFreelist.Add(1)
		return
	}
	dofree(unsafe.Pointer(obj))
	ts.interp.stats.rawFrees.Add(1)
}

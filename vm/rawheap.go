package vm

import (
	"sync"
	"unsafe"
)

// DefaultChunkSize is the carve size for backing heap chunks.
const DefaultChunkSize = 16 * 1024

// blockAlignment is the alignment of every block handed out by a Heap.
// One spare low bit is all StackRef tagging needs, but size classes are
// 16-byte granular so blocks are too.
const blockAlignment = 16

// Heap is the backing allocator behind the freelists: a chunk-carving
// bump allocator. Chunks stay reachable from the chunks slice, which is
// what keeps carved blocks (and the Go-invisible pointers written into
// them) alive for the Heap's lifetime.
//
// Individual blocks are not reclaimed before the Heap itself is dropped;
// Free only records the release and feeds the observation hook. The
// interpreter's freelists are the recycling layer, the Heap is the floor
// under them. Heaps are safe for use from multiple threads; this is the
// only allocator structure that must be, since cross-thread reclamation
// bypasses the per-thread freelists entirely.
type Heap struct {
	name string

	mu        sync.Mutex
	chunkSize uintptr
	cur       []byte
	off       uintptr
	chunks    [][]byte

	limit     uintptr // max bytes carved, 0 = unlimited
	carved    uintptr
	allocs    uint64
	frees     uint64
	freeHook  func(unsafe.Pointer)
}

// NewHeap creates an empty heap. chunkSize <= 0 selects DefaultChunkSize;
// other sizes are rounded up to a blockAlignment multiple so no chunk
// ends in a sub-block tail.
func NewHeap(name string, chunkSize int) *Heap {
	cs := uintptr(chunkSize)
	if chunkSize <= 0 {
		cs = DefaultChunkSize
	}
	cs = (cs + blockAlignment - 1) &^ uintptr(blockAlignment-1)
	return &Heap{name: name, chunkSize: cs}
}

// Name returns the heap's diagnostic name.
func (h *Heap) Name() string { return h.name }

// SetLimit caps the total bytes the heap may carve; 0 removes the cap.
// Alloc returns nil once the cap is reached.
func (h *Heap) SetLimit(bytes uintptr) {
	h.mu.Lock()
	h.limit = bytes
	h.mu.Unlock()
}

// SetFreeHook installs an observer invoked for every block released back
// to the heap.
func (h *Heap) SetFreeHook(fn func(unsafe.Pointer)) {
	h.mu.Lock()
	h.freeHook = fn
	h.mu.Unlock()
}

// Alloc carves a block of at least size bytes, aligned to blockAlignment.
// Returns nil when the heap's byte limit is exhausted.
func (h *Heap) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		size = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.limit != 0 && h.carved+size > h.limit {
		return nil
	}

	p := h.carve(size)
	if p == nil {
		return nil
	}
	h.carved += size
	h.allocs++
	return p
}

// carve takes size bytes from the current chunk, growing by a new chunk
// when the remainder is too small. Oversized requests get a dedicated
// chunk.
func (h *Heap) carve(size uintptr) unsafe.Pointer {
	if h.cur != nil {
		if p := h.carveCur(size); p != nil {
			return p
		}
	}
	chunkSize := h.chunkSize
	// Aligning the start may consume up to blockAlignment-1 bytes.
	if size+blockAlignment > chunkSize {
		chunkSize = size + blockAlignment
	}
	h.cur = make([]byte, chunkSize)
	h.off = 0
	h.chunks = append(h.chunks, h.cur)
	return h.carveCur(size)
}

// carveCur attempts the carve within the current chunk only.
func (h *Heap) carveCur(size uintptr) unsafe.Pointer {
	base := uintptr(unsafe.Pointer(&h.cur[0]))
	start := (base + h.off + blockAlignment - 1) &^ uintptr(blockAlignment-1)
	end := start + size
	if end > base+uintptr(len(h.cur)) {
		return nil
	}
	h.off = end - base
	return unsafe.Pointer(start)
}

// Free records the release of a block. The block must have come from this
// heap; its memory is retained until the heap itself is discarded.
func (h *Heap) Free(p unsafe.Pointer) {
	h.mu.Lock()
	h.frees++
	hook := h.freeHook
	h.mu.Unlock()
	if hook != nil {
		hook(p)
	}
}

// AllocCount returns the number of blocks carved so far.
func (h *Heap) AllocCount() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocs
}

// FreeCount returns the number of blocks released so far.
func (h *Heap) FreeCount() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frees
}

// CarvedBytes returns the total bytes handed out so far.
func (h *Heap) CarvedBytes() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.carved
}

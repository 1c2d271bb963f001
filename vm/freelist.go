package vm

import (
	"unsafe"
)

// ---------------------------------------------------------------------------
// FreeList: capacity-bounded recycling pool of same-size memory blocks
// ---------------------------------------------------------------------------

// FreeList is a singly-linked intrusive list of recycled blocks. Entries
// are linked through the first word of each freed block, which overlaps
// the Object header's type pointer; the allocator rewrites the header on
// reuse. available counts the remaining room: it starts at capacity and
// moves toward zero as blocks are retained.
type FreeList struct {
	head      unsafe.Pointer
	available uint32
	capacity  uint32
}

// Init resets the list to empty with room for capacity blocks.
func (fl *FreeList) Init(capacity uint32) {
	fl.head = nil
	fl.capacity = capacity
	fl.available = capacity
}

// Push retains block for reuse. Returns false when the list is full, in
// which case the caller must release the block through the backing
// allocator instead. Full lists are the expected, frequent fallback path,
// not an error.
func (fl *FreeList) Push(block unsafe.Pointer) bool {
	if fl.available == 0 {
		return false
	}
	*(*unsafe.Pointer)(block) = fl.head
	fl.head = block
	fl.available--
	return true
}

// Pop returns the most recently pushed block, or nil when the list is
// empty.
func (fl *FreeList) Pop() unsafe.Pointer {
	p := fl.head
	if p != nil {
		if fl.capacity == 0 {
			panic("vm: pop from uninitialized freelist")
		}
		fl.head = *(*unsafe.Pointer)(p)
		fl.available++
		if fl.available > fl.capacity {
			panic("vm: freelist available exceeds capacity")
		}
	}
	return p
}

// Free pushes block onto the list, releasing it through dofree when the
// list is full.
func (fl *FreeList) Free(block unsafe.Pointer, dofree func(unsafe.Pointer)) {
	if !fl.Push(block) {
		dofree(block)
	}
}

// Size returns the number of blocks currently retained.
func (fl *FreeList) Size() uint32 {
	return fl.capacity - fl.available
}

// Capacity returns the maximum number of blocks the list may retain.
func (fl *FreeList) Capacity() uint32 {
	return fl.capacity
}

// drain releases every retained block through dofree and resets the list
// to empty at full capacity.
func (fl *FreeList) drain(dofree func(unsafe.Pointer)) int {
	n := 0
	for p := fl.Pop(); p != nil; p = fl.Pop() {
		dofree(p)
		n++
	}
	fl.Init(fl.capacity)
	return n
}

// ---------------------------------------------------------------------------
// Freelists: the per-thread / per-interpreter container
// ---------------------------------------------------------------------------

// maxSavedArraySize is the largest array length with its own dedicated
// freelist; longer arrays go through the size-class lists or the backing
// allocator.
const maxSavedArraySize = 20

// Default freelist capacities per recognized category.
const (
	defaultSmallObjectCap     = 100
	defaultFloatsCap          = 100
	defaultIntsCap            = 100
	defaultArraysCap          = 2000
	defaultListsCap           = 80
	defaultListItersCap       = 10
	defaultArrayItersCap      = 10
	defaultDictsCap           = 80
	defaultDictKeysCap        = 80
	defaultRangesCap          = 6
	defaultRangeItersCap      = 6
	defaultSlicesCap          = 1
	defaultContextsCap        = 255
	defaultGeneratorsCap      = 80
	defaultGeneratorFramesCap = 80
	defaultStackChunksCap     = 4
	defaultMethodObjectsCap   = 20
)

// Freelists holds one FreeList per recognized object category. Exactly
// one container serves each executing thread or interpreter (see
// freelists_serial.go / freelists_concurrent.go); it is never shared or
// migrated between threads.
type Freelists struct {
	// Small-object size classes, indexed by sizeClass().
	bySize [numSmallSizeClasses]FreeList

	// Dedicated lists for high-churn types.
	floats          FreeList
	ints            FreeList
	arrays          [maxSavedArraySize]FreeList
	lists           FreeList
	listIters       FreeList
	arrayIters      FreeList
	dicts           FreeList
	dictKeys        FreeList
	ranges          FreeList
	rangeIters      FreeList
	slices          FreeList
	contexts        FreeList
	generators      FreeList
	generatorFrames FreeList
	stackChunks     FreeList
	methodObjects   FreeList
}

// initFreelists initializes every list in the container from caps.
func initFreelists(fl *Freelists, caps FreelistCaps) {
	for i := range fl.bySize {
		fl.bySize[i].Init(caps.SmallObjects)
	}
	fl.floats.Init(caps.Floats)
	fl.ints.Init(caps.Ints)
	for i := range fl.arrays {
		fl.arrays[i].Init(caps.Arrays)
	}
	fl.lists.Init(caps.Lists)
	fl.listIters.Init(caps.ListIters)
	fl.arrayIters.Init(caps.ArrayIters)
	fl.dicts.Init(caps.Dicts)
	fl.dictKeys.Init(caps.DictKeys)
	fl.ranges.Init(caps.Ranges)
	fl.rangeIters.Init(caps.RangeIters)
	fl.slices.Init(caps.Slices)
	fl.contexts.Init(caps.Contexts)
	fl.generators.Init(caps.Generators)
	fl.generatorFrames.Init(caps.GeneratorFrames)
	fl.stackChunks.Init(caps.StackChunks)
	fl.methodObjects.Init(caps.MethodObjects)
}

// Typed list accessors, so type-specific allocation paths can recycle
// through their dedicated list.
func (fl *Freelists) Floats() *FreeList     { return &fl.floats }
func (fl *Freelists) Ints() *FreeList       { return &fl.ints }
func (fl *Freelists) Lists() *FreeList      { return &fl.lists }
func (fl *Freelists) ListIters() *FreeList  { return &fl.listIters }
func (fl *Freelists) ArrayIters() *FreeList { return &fl.arrayIters }
func (fl *Freelists) Dicts() *FreeList      { return &fl.dicts }
func (fl *Freelists) DictKeys() *FreeList   { return &fl.dictKeys }
func (fl *Freelists) Ranges() *FreeList     { return &fl.ranges }
func (fl *Freelists) RangeIters() *FreeList { return &fl.rangeIters }
func (fl *Freelists) Slices() *FreeList     { return &fl.slices }
func (fl *Freelists) Contexts() *FreeList   { return &fl.contexts }
func (fl *Freelists) Generators() *FreeList { return &fl.generators }
func (fl *Freelists) GeneratorFrames() *FreeList { return &fl.generatorFrames }
func (fl *Freelists) StackChunks() *FreeList     { return &fl.stackChunks }
func (fl *Freelists) MethodObjects() *FreeList   { return &fl.methodObjects }

// Arrays returns the dedicated list for arrays of length n, or nil when n
// has no dedicated list.
func (fl *Freelists) Arrays(n int) *FreeList {
	if n < 0 || n >= maxSavedArraySize {
		return nil
	}
	return &fl.arrays[n]
}

// ClearFreelists drains every list in the container, handing each
// retained block to dofree. Stack chunks back suspended generator frames
// that may still be referenced during an ordinary flush; they are drained
// only when finalizing, at final interpreter teardown.
func ClearFreelists(fl *Freelists, finalizing bool, dofree func(unsafe.Pointer)) int {
	n := 0
	for i := range fl.bySize {
		n += fl.bySize[i].drain(dofree)
	}
	n += fl.floats.drain(dofree)
	n += fl.ints.drain(dofree)
	for i := range fl.arrays {
		n += fl.arrays[i].drain(dofree)
	}
	n += fl.lists.drain(dofree)
	n += fl.listIters.drain(dofree)
	n += fl.arrayIters.drain(dofree)
	n += fl.dicts.drain(dofree)
	n += fl.dictKeys.drain(dofree)
	n += fl.ranges.drain(dofree)
	n += fl.rangeIters.drain(dofree)
	n += fl.slices.drain(dofree)
	n += fl.contexts.drain(dofree)
	n += fl.generators.drain(dofree)
	n += fl.generatorFrames.drain(dofree)
	n += fl.methodObjects.drain(dofree)
	if finalizing {
		n += fl.stackChunks.drain(dofree)
	}
	return n
}

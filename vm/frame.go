package vm

// Frame holds the stack slots of one activation. The interpreter stores
// and loads objects from slots strictly through StackRef operations,
// never as raw pointers, so the ownership discipline holds whichever
// counting mode the build selected.
type Frame struct {
	slots []StackRef
	top   int
}

// NewFrame creates a frame with room for size stack slots, all null.
func NewFrame(size int) *Frame {
	f := &Frame{slots: make([]StackRef, size)}
	for i := range f.slots {
		f.slots[i] = NullRef
	}
	return f
}

// Depth returns the number of live slots.
func (f *Frame) Depth() int { return f.top }

// PushRef stores ref in the next slot; the frame takes ownership.
func (f *Frame) PushRef(ref StackRef) {
	if f.top == len(f.slots) {
		panic("vm: frame stack overflow")
	}
	f.slots[f.top] = ref
	f.top++
}

// PopRef removes and returns the top slot; ownership passes to the
// caller.
func (f *Frame) PopRef() StackRef {
	if f.top == 0 {
		panic("vm: pop from empty frame")
	}
	f.top--
	ref := f.slots[f.top]
	f.slots[f.top] = NullRef
	return ref
}

// TopRef returns the top slot without transferring ownership.
func (f *Frame) TopRef() StackRef {
	if f.top == 0 {
		panic("vm: top of empty frame")
	}
	return f.slots[f.top-1]
}

// DupTop pushes a second live reference to the top slot's target.
func (f *Frame) DupTop() {
	f.PushRef(f.TopRef().Dup())
}

// ClearSlots closes every live slot, top first, leaving the frame empty.
// Each slot is nulled before its reference is closed, so destructors that
// re-enter the frame observe consistent slots.
func (f *Frame) ClearSlots() {
	for f.top > 0 {
		f.top--
		ClearRef(&f.slots[f.top])
	}
}

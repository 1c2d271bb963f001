//go:build concurrentheap

package vm

// Lock-free discipline.
//
// A set tag bit marks a deferred reference: the target is immortal or
// participates in deferred (bulk) reference counting, so Dup and Close
// skip the count entirely and multiple threads may hold the same slot
// value without synchronization. An untagged reference is conventionally
// owned and Dup/Close drive the target's atomic count.

// IsDeferred reports whether Dup/Close on r skip the target's count.
func (r StackRef) IsDeferred() bool {
	return uintptr(r)&refTagBits != 0
}

// defaultDeferrable grants deferred eligibility to immortal objects and
// objects that opted into deferred reference counting.
func defaultDeferrable(o *Object) bool {
	return o.IsImmortal() || o.HasDeferredRefcount()
}

// Steal converts r into a conventionally owned pointer. Deferred
// references take a fresh count unit so the result is independently
// owned; owned references pass through unchanged.
func (r StackRef) Steal() *Object {
	if r.IsNull() {
		panic("vm: steal of null stack reference")
	}
	obj := r.Borrow()
	if r.IsDeferred() {
		obj.IncRef()
	}
	return obj
}

// RefFromObjectSteal wraps obj, transferring its existing count unit into
// the slot. Immortal objects take the deferred tag; their count unit is
// dropped since the object outlives the slot regardless.
func RefFromObjectSteal(obj *Object) StackRef {
	if obj == nil {
		panic("vm: stack reference from nil object")
	}
	var tag uintptr
	if obj.IsImmortal() {
		tag = refTagBits
	}
	return refFromObject(obj, tag)
}

// RefFromObjectNew wraps obj as an additional reference, leaving the
// caller's reference intact. Deferred-eligible objects take the tag with
// no count traffic; everything else gets a fresh owned unit.
func RefFromObjectNew(obj *Object) StackRef {
	if obj == nil {
		panic("vm: stack reference from nil object")
	}
	if deferrable(obj) {
		return refFromObject(obj, refTagBits)
	}
	if obj.Refcount() == 0 {
		panic("vm: stack reference from dead object")
	}
	obj.IncRef()
	return refFromObject(obj, 0)
}

// RefFromObjectImmortal wraps an immortal object.
func RefFromObjectImmortal(obj *Object) StackRef {
	if obj == nil {
		panic("vm: stack reference from nil object")
	}
	if !obj.IsImmortal() {
		panic("vm: immortal stack reference to mortal object")
	}
	return refFromObject(obj, refTagBits)
}

// Dup produces a second live reference equivalent to r.
func (r StackRef) Dup() StackRef {
	if r.IsNull() {
		panic("vm: dup of null stack reference")
	}
	if r.IsDeferred() {
		if !deferrable(r.Borrow()) {
			panic("vm: deferred reference to ineligible object")
		}
		return r
	}
	obj := r.Borrow()
	if obj.Refcount() == 0 {
		panic("vm: dup of dead reference")
	}
	obj.IncRef()
	return r
}

// Close consumes one unit of ownership. Calling Close on the null
// sentinel is a caller bug; use CloseIfPresent to tolerate null.
func (r StackRef) Close() {
	if r.IsNull() {
		panic("vm: close of null stack reference")
	}
	if !r.IsDeferred() {
		r.Borrow().DecRef()
	}
}

// IsHeapSafe always holds here: deferred references are only granted to
// objects that every thread may observe without per-slot counting.
func (r StackRef) IsHeapSafe() bool { return true }

// MakeHeapSafe is the identity in this discipline.
func (r StackRef) MakeHeapSafe() StackRef { return r }

// AsStrong converts a possibly deferred reference into a conventionally
// owned one.
func (r StackRef) AsStrong() StackRef {
	return RefFromObjectSteal(r.Steal())
}

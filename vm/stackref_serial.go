//go:build !concurrentheap

package vm

// Single-writer discipline.
//
// The default here is counted: an untagged StackRef owns one unit of the
// target's reference count, and Dup/Close adjust it. A set tag bit marks
// a reference whose count unit is embedded elsewhere (immortal
// singletons, or a count transferred in with RefFromObjectWithCount), so
// Dup and Close leave the target untouched.
//
// A tagged reference to a mortal object is only sound while the single
// writer holds it; see IsHeapSafe and MakeHeapSafe before storing one
// where another thread might read it.

// hasEmbeddedCount reports whether r's count unit lives outside the slot,
// meaning Dup and Close must not touch the target.
func (r StackRef) hasEmbeddedCount() bool {
	return uintptr(r)&refTagBits != 0
}

// IsDeferred reports whether Dup/Close on r skip the target's count.
func (r StackRef) IsDeferred() bool { return r.hasEmbeddedCount() }

// defaultDeferrable grants deferred eligibility to immortal objects only.
func defaultDeferrable(o *Object) bool { return o.IsImmortal() }

// Steal converts r into a conventionally owned pointer. If r's count is
// embedded, a fresh unit is taken so the result is independently owned;
// otherwise the slot's ownership passes through unchanged.
func (r StackRef) Steal() *Object {
	if r.IsNull() {
		panic("vm: steal of null stack reference")
	}
	obj := r.Borrow()
	if r.hasEmbeddedCount() {
		if obj.Refcount() == 0 {
			panic("vm: steal of dead reference")
		}
		obj.IncRef()
	}
	return obj
}

// RefFromObjectSteal wraps obj, transferring its existing count unit into
// the slot. Deferrable objects take the tag; their count unit is dropped
// since the object outlives the slot regardless.
func RefFromObjectSteal(obj *Object) StackRef {
	if obj == nil {
		panic("vm: stack reference from nil object")
	}
	var tag uintptr
	if deferrable(obj) {
		tag = refTagBits
	}
	return refFromObject(obj, tag)
}

// RefFromObjectNew wraps obj as an additional reference, leaving the
// caller's reference intact. Deferrable objects take the tag with no
// count traffic; everything else gets a fresh owned unit.
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

// RefFromObjectWithCount wraps obj whose count unit is managed elsewhere:
// the slot carries the unit but Dup/Close will not release it.
func RefFromObjectWithCount(obj *Object) StackRef {
	if obj == nil {
		panic("vm: stack reference from nil object")
	}
	if obj.Refcount() == 0 {
		panic("vm: stack reference from dead object")
	}
	return refFromObject(obj, refTagBits)
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
	if !r.hasEmbeddedCount() {
		obj := r.Borrow()
		if obj.Refcount() == 0 {
			panic("vm: dup of dead reference")
		}
		obj.IncRef()
	}
	return r
}

// Close consumes one unit of ownership. Calling Close on the null
// sentinel is a caller bug; use CloseIfPresent to tolerate null.
func (r StackRef) Close() {
	if r.IsNull() {
		panic("vm: close of null stack reference")
	}
	if !r.hasEmbeddedCount() {
		r.Borrow().DecRef()
	}
}

// IsHeapSafe reports whether r may be stored where another thread could
// read it without synchronization. A tagged reference to a mortal object
// assumes single-writer visibility and is not safe.
func (r StackRef) IsHeapSafe() bool {
	return r.IsNull() || !r.hasEmbeddedCount() || r.Borrow().IsImmortal()
}

// MakeHeapSafe upgrades r to a heap-safe reference, taking a fresh owned
// count unit when the embedded one cannot be trusted across threads.
// Already-safe references pass through unchanged.
func (r StackRef) MakeHeapSafe() StackRef {
	if r.hasEmbeddedCount() {
		obj := r.Borrow()
		if obj != nil && !obj.IsImmortal() {
			obj.IncRef()
			return refFromObject(obj, 0)
		}
	}
	return r
}

//go:build !concurrentheap

package vm

// Single-writer reference counting. The interpreter lock guarantees that
// only one thread mutates a count at a time, so plain word operations are
// enough.

func (o *Object) loadRefcnt() uintptr  { return o.refcnt }
func (o *Object) storeRefcnt(n uintptr) { o.refcnt = n }

// Refcount returns the object's current reference count.
func (o *Object) Refcount() uintptr { return o.refcnt }

// IncRef adds one owned reference. No-op on immortal objects.
func (o *Object) IncRef() {
	if o.refcnt == immortalRefcnt {
		return
	}
	o.refcnt++
}

// DecRef releases one owned reference, destroying the object when the
// count reaches zero. No-op on immortal objects.
func (o *Object) DecRef() {
	if o.refcnt == immortalRefcnt {
		return
	}
	if o.refcnt == 0 {
		panic("vm: refcount underflow")
	}
	o.refcnt--
	if o.refcnt == 0 {
		o.dealloc()
	}
}

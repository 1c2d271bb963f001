//go:build concurrentheap

package vm

import "sync/atomic"

// Lock-free reference counting. Multiple threads may observe the same
// object, so every count adjustment is atomic.

func (o *Object) loadRefcnt() uintptr   { return atomic.LoadUintptr(&o.refcnt) }
func (o *Object) storeRefcnt(n uintptr) { atomic.StoreUintptr(&o.refcnt, n) }

// Refcount returns the object's current reference count.
func (o *Object) Refcount() uintptr { return atomic.LoadUintptr(&o.refcnt) }

// IncRef adds one owned reference. No-op on immortal objects.
func (o *Object) IncRef() {
	if atomic.LoadUintptr(&o.refcnt) == immortalRefcnt {
		return
	}
	atomic.AddUintptr(&o.refcnt, 1)
}

// DecRef releases one owned reference, destroying the object when the
// count reaches zero. No-op on immortal objects.
func (o *Object) DecRef() {
	if atomic.LoadUintptr(&o.refcnt) == immortalRefcnt {
		return
	}
	n := atomic.AddUintptr(&o.refcnt, ^uintptr(0))
	if n == ^uintptr(0) {
		panic("vm: refcount underflow")
	}
	if n == 0 {
		o.dealloc()
	}
}

package vm

import (
	"unsafe"
)

// Kind classifies the runtime type of a heap object. The interpreter's
// dispatch and the StackRef type probes branch on this, not on type names.
type Kind uint8

const (
	KindObject Kind = iota
	KindBoolean
	KindNone
	KindInteger
	KindFloat
	KindArray
	KindList
	KindDict
	KindRange
	KindSlice
	KindContext
	KindGenerator
	KindFrame
	KindMethod
	KindException
	KindCode
	KindFunction
)

// TypeInfo describes a runtime object type. TypeInfo values must stay
// reachable from Go-visible memory (package vars or an Interp's type table)
// because heap blocks holding type pointers are not scanned by Go's GC.
type TypeInfo struct {
	Name string
	Kind Kind

	// BasicSize is the instance size in bytes, including the Object header
	// but excluding any pre-header.
	BasicSize uintptr

	// IsGC marks types whose instances participate in cycle-detecting
	// garbage collection.
	IsGC bool

	// HasPreHeader marks types that carry extra bookkeeping words placed
	// before the visible object.
	HasPreHeader bool

	// Dealloc is invoked when an instance's reference count reaches zero.
	// The object system owns destruction semantics; nil means no hook.
	Dealloc func(*Object)
}

// preheaderWords is the pre-header size for types that require one,
// expressed in pointer-sized words.
const preheaderWords = 2

// preheaderSize returns the number of bytes placed before the Object
// header for instances of tp.
func preheaderSize(tp *TypeInfo) uintptr {
	if tp != nil && tp.HasPreHeader {
		return preheaderWords * unsafe.Sizeof(uintptr(0))
	}
	return 0
}

// ---------------------------------------------------------------------------
// Object header
// ---------------------------------------------------------------------------

// Object is the header at the start of every heap-allocated value (after
// any pre-header). Instance payload, if any, follows the header in the
// same allocation block.
//
// The first word is smashed by the freelist link while the block is on a
// freelist; the allocator rewrites the full header on reuse.
type Object struct {
	typ    *TypeInfo
	refcnt uintptr
	flags  uintptr
}

// Object flag bits.
const (
	// flagDeferredRefcount marks an object that has opted into deferred
	// (bulk) reference counting. Stack references to it skip per-slot
	// count traffic in the concurrent build.
	flagDeferredRefcount uintptr = 1 << 0
)

// immortalRefcnt is the reference count sentinel for immortal objects.
// Immortal objects never have their count adjusted and are never destroyed.
const immortalRefcnt = ^uintptr(0) >> 1

// HeaderSize is the size of the Object header in bytes.
const HeaderSize = unsafe.Sizeof(Object{})

// Type returns the object's type descriptor.
func (o *Object) Type() *TypeInfo { return o.typ }

// SetType rewrites the object's type pointer (used when reinitializing a
// recycled block).
func (o *Object) SetType(tp *TypeInfo) { o.typ = tp }

// Kind returns the object's kind, or KindObject if the type is unset.
func (o *Object) Kind() Kind {
	if o.typ == nil {
		return KindObject
	}
	return o.typ.Kind
}

// IsImmortal reports whether the object is exempt from reference counting
// for its whole lifetime.
func (o *Object) IsImmortal() bool {
	return o.loadRefcnt() == immortalRefcnt
}

// HasDeferredRefcount reports whether the object has opted into deferred
// reference counting.
func (o *Object) HasDeferredRefcount() bool {
	return o.flags&flagDeferredRefcount != 0
}

// EnableDeferredRefcount opts the object into deferred reference counting.
// Must be called before any other thread can observe the object.
func (o *Object) EnableDeferredRefcount() {
	o.flags |= flagDeferredRefcount
}

// SetImmortal pins the object's reference count at the immortal sentinel.
func (o *Object) SetImmortal() {
	o.storeRefcnt(immortalRefcnt)
}

// newReference initializes the header of a fresh or recycled block:
// type pointer, a single owned reference, cleared flags.
func newReference(o *Object, tp *TypeInfo) {
	o.typ = tp
	o.flags = 0
	o.storeRefcnt(1)
}

// dealloc runs the type's destruction hook. Reaching zero twice on the
// same object is a caller bug and will double-destroy.
func (o *Object) dealloc() {
	if o.typ != nil && o.typ.Dealloc != nil {
		o.typ.Dealloc(o)
	}
}

// Payload returns a pointer to the first byte after the header.
func (o *Object) Payload() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(o), HeaderSize)
}

// ---------------------------------------------------------------------------
// Immortal singletons
// ---------------------------------------------------------------------------

// Singleton types. These are plain package state so the singleton objects
// are pinned for the lifetime of the process.
var (
	BooleanType = &TypeInfo{Name: "Boolean", Kind: KindBoolean, BasicSize: HeaderSize}
	NoneType    = &TypeInfo{Name: "None", Kind: KindNone, BasicSize: HeaderSize}
)

var (
	trueObject  = Object{typ: BooleanType, refcnt: immortalRefcnt}
	falseObject = Object{typ: BooleanType, refcnt: immortalRefcnt}
	noneObject  = Object{typ: NoneType, refcnt: immortalRefcnt}
)

// TrueObject returns the immortal true singleton.
func TrueObject() *Object { return &trueObject }

// FalseObject returns the immortal false singleton.
func FalseObject() *Object { return &falseObject }

// NoneObject returns the immortal none singleton.
func NoneObject() *Object { return &noneObject }

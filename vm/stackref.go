package vm

import (
	"unsafe"
)

// StackRef is a reference to a heap object living on an interpreter stack
// slot. It is a single machine word: the object pointer with bit 0
// reserved as the ownership tag. Object headers are word-aligned, so the
// tag bit is always free.
//
// There are three operations that convert a StackRef to an *Object and
// back:
//
//  1. Borrow (discouraged)
//  2. Steal
//  3. New
//
// Borrow converts without any change in ownership; callers must not apply
// IncRef/DecRef to the result. Steal transfers ownership out of the slot.
// New creates an additional reference, leaving the original valid.
//
// All live StackRefs must be operated on through Dup and Close, never by
// counting the borrowed pointer directly. The meaning of the tag bit is
// selected at build time: the default build uses the single-writer
// discipline (stackref_serial.go), the concurrentheap build uses the
// lock-free discipline (stackref_concurrent.go).
type StackRef uintptr

// refTagBits masks the bits reserved for the ownership tag.
const refTagBits uintptr = 1

// NullRef is the "no reference" sentinel: tag bit set over a zero
// pointer, distinct from every valid reference.
const NullRef StackRef = StackRef(refTagBits)

// Tagged singleton references, built over the immortal singletons at
// startup.
var (
	TrueRef  StackRef
	FalseRef StackRef
	NoneRef  StackRef
)

func init() {
	TrueRef = StackRef(uintptr(unsafe.Pointer(&trueObject)) | refTagBits)
	FalseRef = StackRef(uintptr(unsafe.Pointer(&falseObject)) | refTagBits)
	NoneRef = StackRef(uintptr(unsafe.Pointer(&noneObject)) | refTagBits)
}

// IsNull reports whether r is the null sentinel.
func (r StackRef) IsNull() bool { return r == NullRef }

// Borrow strips the tag and returns the underlying object with no change
// in ownership. Discouraged: the result must not be IncRef'd or DecRef'd
// directly.
func (r StackRef) Borrow() *Object {
	return (*Object)(unsafe.Pointer(uintptr(r) &^ refTagBits))
}

// refFromObject packs an untagged object pointer and a tag into a word.
// Wrapping a pointer that already carries the tag bit is a caller bug.
func refFromObject(o *Object, tag uintptr) StackRef {
	bits := uintptr(unsafe.Pointer(o))
	if bits&refTagBits != 0 {
		panic("vm: object pointer already tagged")
	}
	return StackRef(bits | tag)
}

// CloseIfPresent closes r unless it is the null sentinel.
func (r StackRef) CloseIfPresent() {
	if !r.IsNull() {
		r.Close()
	}
}

// ClearRef nulls the slot before closing the old reference, so a
// destructor that re-enters and reads the same slot sees NullRef rather
// than a dying reference.
func ClearRef(slot *StackRef) {
	old := *slot
	*slot = NullRef
	old.CloseIfPresent()
}

// RefIs reports whether a and b refer to the same object, ignoring tags.
func RefIs(a, b StackRef) bool {
	return uintptr(a)&^refTagBits == uintptr(b)&^refTagBits
}

// ---------------------------------------------------------------------------
// Deferred-eligibility policy
// ---------------------------------------------------------------------------

// deferrable decides which objects may be held as deferred (uncounted)
// stack references. The object system may widen the policy beyond the
// build default with SetDeferrablePredicate.
var deferrable func(*Object) bool = defaultDeferrable

// SetDeferrablePredicate replaces the deferred-eligibility policy.
// Passing nil restores the build default. Not safe to call while
// interpreter threads are running.
func SetDeferrablePredicate(fn func(*Object) bool) {
	if fn == nil {
		fn = defaultDeferrable
	}
	deferrable = fn
}

// ---------------------------------------------------------------------------
// Type probes
// ---------------------------------------------------------------------------

// The probes below are informational only: they borrow the pointer and
// carry no ownership implication.

// IsBoolean reports whether r refers to a boolean.
func (r StackRef) IsBoolean() bool { return r.Borrow().Kind() == KindBoolean }

// IsInteger reports whether r refers to an integer.
func (r StackRef) IsInteger() bool { return r.Borrow().Kind() == KindInteger }

// IsGenerator reports whether r refers to a generator.
func (r StackRef) IsGenerator() bool { return r.Borrow().Kind() == KindGenerator }

// IsExceptionInstance reports whether r refers to an exception instance.
func (r StackRef) IsExceptionInstance() bool { return r.Borrow().Kind() == KindException }

// IsCompiledCode reports whether r refers to a compiled code object.
func (r StackRef) IsCompiledCode() bool { return r.Borrow().Kind() == KindCode }

// IsFunction reports whether r refers to a function.
func (r StackRef) IsFunction() bool { return r.Borrow().Kind() == KindFunction }

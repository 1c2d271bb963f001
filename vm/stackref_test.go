package vm

import (
	"testing"
)

// newMortalObject builds a standalone object with one owned reference,
// counting destructions through the returned pointer's type.
func newMortalObject(kind Kind, destroyed *int) *Object {
	tp := &TypeInfo{Name: "TestMortal", Kind: kind, BasicSize: HeaderSize}
	if destroyed != nil {
		tp.Dealloc = func(*Object) { *destroyed++ }
	}
	obj := &Object{}
	newReference(obj, tp)
	return obj
}

func TestNullRefSentinel(t *testing.T) {
	if !NullRef.IsNull() {
		t.Error("NullRef.IsNull() = false, want true")
	}
	if NullRef.Borrow() != nil {
		t.Error("NullRef.Borrow() should be nil")
	}
	obj := newMortalObject(KindObject, nil)
	ref := RefFromObjectSteal(obj)
	if ref.IsNull() {
		t.Error("valid reference reported as null")
	}
}

func TestBorrowStability(t *testing.T) {
	obj := newMortalObject(KindObject, nil)

	refs := []StackRef{
		RefFromObjectSteal(obj),
		RefFromObjectNew(obj),
	}
	for i, ref := range refs {
		if ref.Borrow() != obj {
			t.Errorf("ref %d: Borrow() != original pointer", i)
		}
		dup := ref.Dup()
		if dup.Borrow() != obj {
			t.Errorf("ref %d: Borrow() changed after Dup", i)
		}
		dup.Close()
		if ref.Borrow() != obj {
			t.Errorf("ref %d: Borrow() changed after closing a dup", i)
		}
	}
}

func TestDupCloseRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ref  StackRef
	}{
		{"owned", RefFromObjectNew(newMortalObject(KindObject, nil))},
		{"deferred immortal", TrueRef},
	}
	for _, tt := range tests {
		before := tt.ref.Borrow().Refcount()
		dup := tt.ref.Dup()
		dup.Close()
		after := tt.ref.Borrow().Refcount()
		if before != after {
			t.Errorf("%s: Dup+Close changed refcount %d -> %d", tt.name, before, after)
		}
	}
}

func TestImmortalFromNewNoCountTraffic(t *testing.T) {
	for _, obj := range []*Object{TrueObject(), FalseObject(), NoneObject()} {
		before := obj.Refcount()
		ref := RefFromObjectNew(obj)
		if obj.Refcount() != before {
			t.Errorf("%s: FromNew changed immortal refcount", obj.Type().Name)
		}
		dup := ref.Dup()
		if obj.Refcount() != before {
			t.Errorf("%s: Dup changed immortal refcount", obj.Type().Name)
		}
		dup.Close()
		ref.Close()
		if obj.Refcount() != before {
			t.Errorf("%s: Close changed immortal refcount", obj.Type().Name)
		}
	}
}

func TestOwnedLifecycle(t *testing.T) {
	destroyed := 0
	obj := newMortalObject(KindObject, &destroyed)

	ref := RefFromObjectSteal(obj) // transfers the fresh count
	if got := obj.Refcount(); got != 1 {
		t.Fatalf("refcount after FromSteal = %d, want 1", got)
	}

	dup := ref.Dup()
	if got := obj.Refcount(); got != 2 {
		t.Fatalf("refcount after Dup = %d, want 2", got)
	}

	dup.Close()
	if destroyed != 0 {
		t.Fatal("destroyed before last reference closed")
	}
	ref.Close()
	if got := obj.Refcount(); got != 0 {
		t.Errorf("refcount after final Close = %d, want 0", got)
	}
	if destroyed != 1 {
		t.Errorf("destructor ran %d times, want 1", destroyed)
	}
}

func TestStealProducesIndependentOwnership(t *testing.T) {
	obj := newMortalObject(KindObject, nil)

	// Deferred path: stealing from an immortal ref takes a fresh unit
	// (a no-op count-wise for immortals) and returns the pointer.
	if got := TrueRef.Steal(); got != TrueObject() {
		t.Error("Steal returned wrong pointer for immortal ref")
	}

	// Owned path: ownership passes through unchanged.
	ref := RefFromObjectSteal(obj)
	got := ref.Steal()
	if got != obj {
		t.Error("Steal returned wrong pointer for owned ref")
	}
	if obj.Refcount() != 1 {
		t.Errorf("refcount after pass-through Steal = %d, want 1", obj.Refcount())
	}
	got.DecRef()
}

func TestRefIsIgnoresTags(t *testing.T) {
	obj := newMortalObject(KindObject, nil)
	owned := RefFromObjectNew(obj)
	tagged := RefFromObjectSteal(TrueObject())

	tests := []struct {
		name string
		a, b StackRef
		want bool
	}{
		{"same owned", owned, owned, true},
		{"owned vs other", owned, tagged, false},
		{"two singleton refs", TrueRef, tagged, true},
		{"true vs false", TrueRef, FalseRef, false},
		{"null vs null", NullRef, NullRef, true},
	}
	for _, tt := range tests {
		if got := RefIs(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: RefIs = %v, want %v", tt.name, got, tt.want)
		}
		// Identity law: RefIs(a, b) iff Borrow(a) == Borrow(b).
		if got := tt.a.Borrow() == tt.b.Borrow(); got != tt.want {
			t.Errorf("%s: borrow equality %v disagrees with RefIs %v", tt.name, got, tt.want)
		}
	}
	owned.Close()
}

func TestClearRefNullsBeforeClosing(t *testing.T) {
	destroyed := 0
	tp := &TypeInfo{Name: "SlotWatcher", Kind: KindObject, BasicSize: HeaderSize}
	obj := &Object{}

	var slot StackRef
	tp.Dealloc = func(*Object) {
		destroyed++
		// Reentrant read: the slot must already be null.
		if !slot.IsNull() {
			t.Error("slot not nulled before destructor ran")
		}
	}
	newReference(obj, tp)

	slot = RefFromObjectSteal(obj)
	ClearRef(&slot)
	if !slot.IsNull() {
		t.Error("slot not null after ClearRef")
	}
	if destroyed != 1 {
		t.Errorf("destructor ran %d times, want 1", destroyed)
	}

	// Clearing an already-null slot is a no-op.
	ClearRef(&slot)
	if destroyed != 1 {
		t.Error("ClearRef on null slot re-ran destructor")
	}
}

func TestCloseIfPresentToleratesNull(t *testing.T) {
	NullRef.CloseIfPresent() // must not panic

	destroyed := 0
	obj := newMortalObject(KindObject, &destroyed)
	RefFromObjectSteal(obj).CloseIfPresent()
	if destroyed != 1 {
		t.Errorf("destructor ran %d times, want 1", destroyed)
	}
}

func TestNullContractPanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"close", func() { NullRef.Close() }},
		{"dup", func() { NullRef.Dup() }},
		{"steal", func() { NullRef.Steal() }},
		{"from nil new", func() { RefFromObjectNew(nil) }},
		{"from nil steal", func() { RefFromObjectSteal(nil) }},
	}
	for _, tt := range tests {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%s: expected panic", tt.name)
				}
			}()
			tt.fn()
		}()
	}
}

func TestRefFromObjectImmortalRejectsMortal(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic wrapping a mortal object as immortal")
		}
	}()
	RefFromObjectImmortal(newMortalObject(KindObject, nil))
}

func TestTypeProbes(t *testing.T) {
	gen := RefFromObjectSteal(newMortalObject(KindGenerator, nil))
	integer := RefFromObjectSteal(newMortalObject(KindInteger, nil))
	exc := RefFromObjectSteal(newMortalObject(KindException, nil))
	code := RefFromObjectSteal(newMortalObject(KindCode, nil))
	fn := RefFromObjectSteal(newMortalObject(KindFunction, nil))

	tests := []struct {
		name  string
		probe func(StackRef) bool
		hit   StackRef
	}{
		{"generator", StackRef.IsGenerator, gen},
		{"integer", StackRef.IsInteger, integer},
		{"exception", StackRef.IsExceptionInstance, exc},
		{"code", StackRef.IsCompiledCode, code},
		{"function", StackRef.IsFunction, fn},
		{"boolean", StackRef.IsBoolean, TrueRef},
	}
	for _, tt := range tests {
		if !tt.probe(tt.hit) {
			t.Errorf("%s probe missed its own kind", tt.name)
		}
		if tt.probe(NoneRef) {
			t.Errorf("%s probe matched none", tt.name)
		}
	}
	if !FalseRef.IsBoolean() {
		t.Error("false singleton is not a boolean")
	}
}

func TestDeferrablePredicateIsPluggable(t *testing.T) {
	defer SetDeferrablePredicate(nil)

	obj := newMortalObject(KindObject, nil)
	SetDeferrablePredicate(func(o *Object) bool {
		return o.IsImmortal() || o.Kind() == KindObject
	})

	before := obj.Refcount()
	ref := RefFromObjectNew(obj)
	if !ref.IsDeferred() {
		t.Error("widened policy did not defer the reference")
	}
	if obj.Refcount() != before {
		t.Error("deferred FromNew touched the refcount")
	}
}

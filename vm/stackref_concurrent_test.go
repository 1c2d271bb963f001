//go:build concurrentheap

package vm

import (
	"testing"
)

func TestDeferredRefcountFlagGrantsDeferral(t *testing.T) {
	obj := newMortalObject(KindObject, nil)
	obj.EnableDeferredRefcount()

	before := obj.Refcount()
	ref := RefFromObjectNew(obj)
	if !ref.IsDeferred() {
		t.Fatal("opted-in object not deferred")
	}
	if obj.Refcount() != before {
		t.Error("deferred FromNew touched the refcount")
	}
	dup := ref.Dup()
	dup.Close()
	ref.Close()
	if obj.Refcount() != before {
		t.Error("deferred Dup/Close touched the refcount")
	}
}

func TestFromStealTagsOnlyImmortal(t *testing.T) {
	if !RefFromObjectSteal(TrueObject()).IsDeferred() {
		t.Error("immortal steal not tagged")
	}

	// Even opted-in objects keep their transferred unit on a steal: only
	// immortals may drop it.
	obj := newMortalObject(KindObject, nil)
	obj.EnableDeferredRefcount()
	ref := RefFromObjectSteal(obj)
	if ref.IsDeferred() {
		t.Error("mortal steal tagged")
	}
	ref.Close()
}

func TestAsStrongConvertsDeferred(t *testing.T) {
	obj := newMortalObject(KindObject, nil)
	obj.EnableDeferredRefcount()

	before := obj.Refcount()
	deferred := RefFromObjectNew(obj)
	strong := deferred.AsStrong()
	if strong.IsDeferred() {
		t.Error("AsStrong result still deferred")
	}
	if obj.Refcount() != before+1 {
		t.Error("AsStrong did not take an owned unit")
	}
	strong.Close()
	if obj.Refcount() != before {
		t.Error("closing the strong reference did not release its unit")
	}
}

func TestHeapSafetyIsUnconditional(t *testing.T) {
	obj := newMortalObject(KindObject, nil)
	refs := []StackRef{NullRef, TrueRef, RefFromObjectNew(obj)}
	for i, ref := range refs {
		if !ref.IsHeapSafe() {
			t.Errorf("ref %d: IsHeapSafe = false", i)
		}
		if got := ref.MakeHeapSafe(); got != ref {
			t.Errorf("ref %d: MakeHeapSafe not the identity", i)
		}
	}
}

func TestDupAssertsEligibility(t *testing.T) {
	obj := newMortalObject(KindObject, nil)
	obj.EnableDeferredRefcount()
	ref := RefFromObjectNew(obj)

	// Revoking eligibility after the fact makes a later Dup a contract
	// breach.
	obj.flags &^= flagDeferredRefcount
	defer func() {
		if recover() == nil {
			t.Error("expected panic duplicating an ineligible deferred reference")
		}
	}()
	ref.Dup()
}

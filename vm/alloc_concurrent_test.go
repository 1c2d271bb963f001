//go:build concurrentheap

package vm

import (
	"testing"
	"unsafe"
)

// retainedHeaps lists the heaps that can receive drained blocks during
// teardown in this build.
func retainedHeaps(ts *ThreadState) []*Heap {
	return ts.heaps[:]
}

func TestArenaSelectionByType(t *testing.T) {
	ip, ts := newTestThread(t, nil)

	tests := []struct {
		name string
		tp   *TypeInfo
		want int
	}{
		{"plain", testType(ip, "Plain", HeaderSize), heapObject},
		{"tracked", ip.RegisterType(&TypeInfo{Name: "Tracked", Kind: KindObject, BasicSize: HeaderSize, IsGC: true}), heapGC},
		{"tracked-pre", ip.RegisterType(&TypeInfo{Name: "TrackedPre", Kind: KindObject, BasicSize: HeaderSize, IsGC: true, HasPreHeader: true}), heapGCPre},
	}
	for _, tt := range tests {
		if got := allocationHeap(ts, tt.tp); got != ts.heaps[tt.want] {
			t.Errorf("%s: allocation routed to arena %q, want %q", tt.name, got.Name(), ts.heaps[tt.want].Name())
		}
	}

	// The routing holds through a real allocation: each arena's counter
	// moves only for its own types.
	for _, tt := range tests {
		before := ts.heaps[tt.want].AllocCount()
		if _, err := ts.AllocObject(tt.tp, tt.tp.BasicSize); err != nil {
			t.Fatalf("%s: AllocObject: %v", tt.name, err)
		}
		if ts.heaps[tt.want].AllocCount() != before+1 {
			t.Errorf("%s: expected arena did not serve the allocation", tt.name)
		}
	}
}

func TestThreadContainersAreIndependent(t *testing.T) {
	ip, ts := newTestThread(t, nil)
	other := NewThreadState(ip)
	defer other.Close()

	tp := testType(ip, "PerThread", HeaderSize+8)
	obj, err := ts.AllocObject(tp, tp.BasicSize)
	if err != nil {
		t.Fatalf("AllocObject: %v", err)
	}
	ts.FreeObject(obj, tp.BasicSize)

	if other.Freelists().bySize[sizeClass(tp.BasicSize)].Size() != 0 {
		t.Error("a free on one thread landed in another thread's container")
	}
	if ts.Freelists().bySize[sizeClass(tp.BasicSize)].Size() != 1 {
		t.Error("freed block not retained by the owning thread")
	}
}

func TestCloseDrainsThreadContainer(t *testing.T) {
	ip, _ := newTestThread(t, nil)
	ts := NewThreadState(ip)
	tp := testType(ip, "Drained", HeaderSize+8)

	obj, err := ts.AllocObject(tp, tp.BasicSize)
	if err != nil {
		t.Fatalf("AllocObject: %v", err)
	}
	ts.FreeObject(obj, tp.BasicSize)

	releases := 0
	ts.heaps[heapObject].SetFreeHook(func(p unsafe.Pointer) { releases++ })
	ts.Close()
	if releases != 1 {
		t.Errorf("thread close released %d retained blocks, want 1", releases)
	}
}

package vm

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ObjectStats counts allocator events for one interpreter. Counters are
// atomic so concurrentheap threads can share one block.
type ObjectStats struct {
	allocations  atomic.Uint64
	frees        atomic.Uint64
	toFreelist   atomic.Uint64
	fromFreelist atomic.Uint64
	rawAllocs    atomic.Uint64
	rawFrees     atomic.Uint64
	oomFailures  atomic.Uint64
}

// Allocations returns the number of objects allocated.
func (s *ObjectStats) Allocations() uint64 { return s.allocations.Load() }

// Frees returns the number of objects freed.
func (s *ObjectStats) Frees() uint64 { return s.frees.Load() }

// ToFreelist returns the number of blocks retained on a freelist.
func (s *ObjectStats) ToFreelist() uint64 { return s.toFreelist.Load() }

// FromFreelist returns the number of blocks recycled from a freelist.
func (s *ObjectStats) FromFreelist() uint64 { return s.fromFreelist.Load() }

// RawAllocs returns the number of backing-heap allocations.
func (s *ObjectStats) RawAllocs() uint64 { return s.rawAllocs.Load() }

// RawFrees returns the number of blocks released to the backing heap.
func (s *ObjectStats) RawFrees() uint64 { return s.rawFrees.Load() }

// OOMFailures returns the number of failed allocations.
func (s *ObjectStats) OOMFailures() uint64 { return s.oomFailures.Load() }

// StatsSnapshot is a point-in-time copy of ObjectStats, suitable for
// encoding.
type StatsSnapshot struct {
	InterpID     string    `cbor:"interp-id"`
	CapturedAt   time.Time `cbor:"captured-at"`
	Allocations  uint64    `cbor:"allocations"`
	Frees        uint64    `cbor:"frees"`
	ToFreelist   uint64    `cbor:"to-freelist"`
	FromFreelist uint64    `cbor:"from-freelist"`
	RawAllocs    uint64    `cbor:"raw-allocs"`
	RawFrees     uint64    `cbor:"raw-frees"`
	OOMFailures  uint64    `cbor:"oom-failures"`
}

// Snapshot captures the current counters.
func (s *ObjectStats) Snapshot(interpID string) *StatsSnapshot {
	return &StatsSnapshot{
		InterpID:     interpID,
		CapturedAt:   time.Now().UTC(),
		Allocations:  s.allocations.Load(),
		Frees:        s.frees.Load(),
		ToFreelist:   s.toFreelist.Load(),
		FromFreelist: s.fromFreelist.Load(),
		RawAllocs:    s.rawAllocs.Load(),
		RawFrees:     s.rawFrees.Load(),
		OOMFailures:  s.oomFailures.Load(),
	}
}

// cborEncMode uses canonical encoding so snapshots are deterministic.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalStatsSnapshot serializes a snapshot to CBOR bytes.
func MarshalStatsSnapshot(s *StatsSnapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalStatsSnapshot deserializes a snapshot from CBOR bytes.
func UnmarshalStatsSnapshot(data []byte) (*StatsSnapshot, error) {
	var s StatsSnapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("vm: unmarshal stats snapshot: %w", err)
	}
	return &s, nil
}

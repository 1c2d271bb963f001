// Package vm implements the ripley virtual machine runtime core.
//
// This package contains:
//   - Tagged stack references (StackRef) with two build-selected
//     reference-counting disciplines
//   - Heap object headers and reference counting
//   - Per-thread / per-interpreter freelists for small-object recycling
//   - The object allocator and its chunk-carving backing heap
package vm

// Package structure describes how tree depths are partitioned across the three
// storage tiers: base (in-memory), flat (one single-node chunk per key), and tail
// (per-chunk files).
package structure

import "github.com/pkg/errors"

// Structure partitions [0, Disk) into three half-open depth intervals:
//
//	[0, Base)      base:  in-memory, depth-major slot array
//	[Base, Flat)   flat:  one single-slot chunk per node, each under its own key
//	[Flat, Disk)   tail:  one file per chunk key
//
// A key with depth >= Disk is out of the tree and rejected.
type Structure struct {
	Base uint64
	Flat uint64
	Disk uint64
}

// New validates and constructs a Structure. Invariant: 0 <= Base <= Flat <= Disk.
func New(base, flat, disk uint64) (Structure, error) {
	if !(base <= flat && flat <= disk) {
		return Structure{}, errors.Errorf(
			"invalid structure: require baseDepth(%d) <= flatDepth(%d) <= diskDepth(%d)",
			base, flat, disk)
	}
	return Structure{Base: base, Flat: flat, Disk: disk}, nil
}

// InBase reports whether depth d falls in the in-memory base region.
func (s Structure) InBase(d uint64) bool { return d < s.Base }

// InFlat reports whether depth d falls in the flat-file region.
func (s Structure) InFlat(d uint64) bool { return d >= s.Base && d < s.Flat }

// InTail reports whether depth d falls in the per-chunk tail region.
func (s Structure) InTail(d uint64) bool { return d >= s.Flat && d < s.Disk }

// InRange reports whether depth d is a valid, addressable tree depth at all.
func (s Structure) InRange(d uint64) bool { return d < s.Disk }

// ChunkKeyInBody reports whether a ChunkKey at depth d is in the flat-file region in
// terms of key-stepping mutability (spec: baseDepth <= d < flatDepth). This is the same
// predicate as InFlat, named separately because treekey.ChunkKey consumes it as its
// stepping gate rather than as a storage-tier classification.
func (s Structure) ChunkKeyInBody(d uint64) bool { return s.InFlat(d) }

// ChunkKeyInTail reports whether a ChunkKey at depth d has already reached its target
// tail chunk (spec: d >= flatDepth); deeper steps only count depth, they don't move the
// underlying Key.
func (s Structure) ChunkKeyInTail(d uint64) bool { return d >= s.Flat }

package chunk

import "github.com/geospine/entwine/geo"

// levelWidth returns the number of nodes along one axis at depth d: 2^d.
func levelWidth(d uint64) uint64 { return uint64(1) << d }

// levelSize returns the number of nodes at depth d (side^dims).
func levelSize(d uint64, dims geo.Dimensions) uint64 {
	side := levelWidth(d)
	if dims == geo.Octree {
		return side * side * side
	}
	return side * side
}

// BaseCapacity is the total slot count of the single in-memory base chunk: the sum of
// every level's node count for depths [0, base).
func BaseCapacity(base uint64, dims geo.Dimensions) int {
	var total uint64
	for d := uint64(0); d < base; d++ {
		total += levelSize(d, dims)
	}
	return int(total)
}

// baseLevelOffset is the slot-array offset at which depth d's nodes begin within the
// base chunk's depth-major layout.
func baseLevelOffset(d uint64, dims geo.Dimensions) uint64 {
	var total uint64
	for i := uint64(0); i < d; i++ {
		total += levelSize(i, dims)
	}
	return total
}

// FlatCapacity is the slot count of one flat chunk: exactly one node's slot, since a
// flat chunk is rooted at (and owns) a single tree node. Each flat chunk is persisted
// under its own DXYZ key; flat chunks do not share one file with each other or with
// the base chunk.
const FlatCapacity = 1

// TailCapacity is the sparse point budget of a tail chunk rooted at depth
// chunkDepth, sized to the expected population of the local subtree down to
// diskDepth. This is one of spec.md's stated Open Questions; the formula chosen here
// (documented in DESIGN.md) grows geometrically with the number of remaining levels so
// that shallower tail chunks (which cover more of the point cloud) get proportionally
// more slots. NewTail always uses this formula; no configuration setting overrides it.
func TailCapacity(chunkDepth, diskDepth uint64, dims geo.Dimensions) int {
	if diskDepth <= chunkDepth {
		return 1
	}
	levels := diskDepth - chunkDepth
	// Cap the exponent so a distant diskDepth cannot request an absurd allocation;
	// beyond this many levels the chunk relies on overflow plus deeper tail chunks.
	const maxLevels = 12
	if levels > maxLevels {
		levels = maxLevels
	}
	if dims == geo.Octree {
		return 1 << (2 * levels)
	}
	return 1 << levels
}

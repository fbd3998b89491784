package treekey

import (
	"github.com/golang/geo/r3"

	"github.com/geospine/entwine/geo"
	"github.com/geospine/entwine/structure"
)

// Key holds a live descent position: the bounds of the node currently occupied and
// the bit-packed coordinate reached so far.
type Key struct {
	Bounds geo.Bounds
	Pos    Xyz
	dims   geo.Dimensions
}

// NewKey returns a Key positioned at the root, using root as the (already
// scaled-cubic) bounds tree descent walks within.
func NewKey(root geo.Bounds, dims geo.Dimensions) Key {
	return Key{Bounds: root, dims: dims}
}

// NewKeyAt reconstructs a Key at an already-known bounds/position pair, used when a
// chunk's own internal descent (base tier) needs to hand its resulting position back
// to the caller as a ChunkKey without replaying the descent through StepPoint.
func NewKeyAt(bounds geo.Bounds, pos Xyz, dims geo.Dimensions) Key {
	return Key{Bounds: bounds, Pos: pos, dims: dims}
}

// Reset returns the key to the root, keeping its dimensionality.
func (k Key) Reset(root geo.Bounds) Key {
	return Key{Bounds: root, dims: k.dims}
}

// StepDir descends one level in the given direction.
func (k Key) StepDir(dir geo.Direction) Key {
	return Key{Bounds: k.Bounds.Go(dir, k.dims), Pos: k.Pos.Step(dir), dims: k.dims}
}

// StepPoint computes the direction toward p from the current midpoint and descends
// that way.
func (k Key) StepPoint(p r3.Vector) Key {
	dir := geo.GetDirection(k.Bounds.Mid(), p, k.dims)
	return k.StepDir(dir)
}

// ChunkKey wraps Key with a depth counter and classifies itself against a Structure:
// it steps the underlying Key only while in the flat-file body region; once it has
// reached the tail, the chunk is already identified and further steps are purely
// depth-counting (the chunk itself picks child slots from there).
type ChunkKey struct {
	Key   Key
	Depth uint64
	st    structure.Structure
}

// NewChunkKey returns a ChunkKey at the root of the tree.
func NewChunkKey(root geo.Bounds, dims geo.Dimensions, st structure.Structure) ChunkKey {
	return ChunkKey{Key: NewKey(root, dims), st: st}
}

// ResumeChunkKey rebuilds a ChunkKey from a Key already advanced to depth by some other
// means (the base tier's internal per-level descent, which never surfaces a live
// ChunkKey while it runs). depth is always the tier boundary the internal descent ran
// up to, since that descent always attempts exactly that many levels before giving up.
func ResumeChunkKey(key Key, depth uint64, st structure.Structure) ChunkKey {
	return ChunkKey{Key: key, Depth: depth, st: st}
}

// InBody reports baseDepth <= Depth < flatDepth (spec.md §4.2).
func (c ChunkKey) InBody() bool { return c.st.ChunkKeyInBody(c.Depth) }

// InTail reports Depth >= flatDepth (spec.md §4.2).
func (c ChunkKey) InTail() bool { return c.st.ChunkKeyInTail(c.Depth) }

// StepDir descends one level in the given direction, updating the underlying Key only
// while InBody().
func (c ChunkKey) StepDir(dir geo.Direction) ChunkKey {
	out := c
	if out.InBody() {
		out.Key = out.Key.StepDir(dir)
	}
	out.Depth++
	return out
}

// StepPoint descends one level toward p, updating the underlying Key only while
// InBody().
func (c ChunkKey) StepPoint(p r3.Vector) ChunkKey {
	out := c
	if out.InBody() {
		out.Key = out.Key.StepPoint(p)
	}
	out.Depth++
	return out
}

// Step increments the depth counter without moving the underlying Key. Valid only in
// the tail, where the chunk's own sparse layout picks child slots rather than the tree.
func (c ChunkKey) Step() ChunkKey {
	out := c
	out.Depth++
	return out
}

// Dxyz returns the chunk identity this key currently points at.
func (c ChunkKey) Dxyz() Dxyz {
	return Dxyz{Depth: c.Depth, Xyz: c.Key.Pos}
}

// Bounds returns the bounds of the node this key currently points at.
func (c ChunkKey) Bounds() geo.Bounds { return c.Key.Bounds }

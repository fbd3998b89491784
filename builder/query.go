package builder

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/geospine/entwine/chunk"
	"github.com/geospine/entwine/geo"
	"github.com/geospine/entwine/point"
	"github.com/geospine/entwine/registry"
	"github.com/geospine/entwine/treekey"
)

// PointIndex names one stored point by its owning chunk's Dxyz identity plus a slot
// offset within that chunk — the (d,x,y,z,slot) address spec.md §4.5/§8 identifies a
// point by. Query hands these out as opaque handles; GetPointData is the only thing
// that resolves one back into actual point data.
type PointIndex struct {
	Dxyz treekey.Dxyz
	Slot int
}

// Query returns the index of every stored point at a depth in [depthBegin, depthEnd)
// across the whole tree. depthEnd == 0 means no upper bound, matching spec.md §4.5's
// query(None, 0, 0) whole-tree case. The caller owns clipper and must release it
// (directly or via clipper.ReleaseAll) once done resolving the returned indices.
func (b *Builder) Query(ctx context.Context, clipper *registry.Clipper, depthBegin, depthEnd uint64) ([]PointIndex, error) {
	return b.query(ctx, clipper, b.bounds, depthBegin, depthEnd)
}

// QueryBounds is Query narrowed to points falling within bbox, letting the caller shed
// whole subtrees that fall outside its area of interest without visiting them.
func (b *Builder) QueryBounds(ctx context.Context, clipper *registry.Clipper, bbox geo.Bounds, depthBegin, depthEnd uint64) ([]PointIndex, error) {
	return b.query(ctx, clipper, bbox, depthBegin, depthEnd)
}

// GetPointData resolves one point index into its packed row, translated into dst's
// schema. This is the second half of spec.md §4.5's two-step query contract: Query
// only identifies points, GetPointData is what actually fetches one point's data.
func (b *Builder) GetPointData(ctx context.Context, clipper *registry.Clipper, idx PointIndex, dst *point.Schema) (point.Row, error) {
	c, err := b.reg.Acquire(ctx, idx.Dxyz, clipper)
	if err != nil {
		return nil, err
	}
	row, ok := c.Get(idx.Slot)
	if !ok {
		return nil, errors.Errorf("builder: point index %+v no longer resolves to a stored point", idx)
	}
	if dst == b.schema {
		return row, nil
	}
	return point.Translate(b.schema, dst, row)
}

func (b *Builder) query(ctx context.Context, clipper *registry.Clipper, bbox geo.Bounds, depthBegin, depthEnd uint64) ([]PointIndex, error) {
	var out []PointIndex

	if !bbox.Intersects(b.bounds) {
		return out, nil
	}

	if depthEnd == 0 {
		depthEnd = math.MaxUint64
	}

	// The base tier is one opaque chunk covering every depth below Structure.Base: its
	// internal levels are never individually addressable, so it is collected wholesale
	// whenever the requested range overlaps [0, Base) at all.
	if depthBegin < b.st.Base {
		c, err := b.reg.Acquire(ctx, treekey.Dxyz{}, clipper)
		if err != nil {
			return nil, err
		}
		b.collect(c, treekey.Dxyz{}, bbox, &out)
	}

	if depthEnd > b.st.Base {
		if err := b.walkBase(ctx, clipper, bbox, b.bounds, treekey.Xyz{}, 0, depthBegin, depthEnd, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// walkBase enumerates every depth-Base node beneath root using the same per-level
// bounds.Go/Xyz.Step descent the base chunk's own internal slot indexer performs
// (chunk.baseSlotIndexer), since depths below Base are not addressable through
// treekey.ChunkKey's normal stepping. Branches whose bounds don't intersect bbox are
// pruned before they're expanded further.
func (b *Builder) walkBase(
	ctx context.Context,
	clipper *registry.Clipper,
	bbox geo.Bounds,
	bounds geo.Bounds,
	pos treekey.Xyz,
	level uint64,
	depthBegin, depthEnd uint64,
	out *[]PointIndex,
) error {
	if level == b.st.Base {
		key := treekey.ResumeChunkKey(treekey.NewKeyAt(bounds, pos, b.dims), b.st.Base, b.st)
		return b.walk(ctx, clipper, bbox, depthBegin, depthEnd, key, out)
	}

	children := 1 << uint(b.dims)
	for d := 0; d < children; d++ {
		dir := geo.Direction(d)
		childBounds := bounds.Go(dir, b.dims)
		if !bbox.Intersects(childBounds) {
			continue
		}
		if err := b.walkBase(ctx, clipper, bbox, childBounds, pos.Step(dir), level+1, depthBegin, depthEnd, out); err != nil {
			return err
		}
	}
	return nil
}

// walk descends the flat and tail tiers from key (which must already be at depth
// Structure.Base), pruning by bbox and stopping recursion once it reaches a tail
// chunk, whose own internal sub-levels are collected wholesale just like the base
// chunk's are.
func (b *Builder) walk(
	ctx context.Context,
	clipper *registry.Clipper,
	bbox geo.Bounds,
	depthBegin, depthEnd uint64,
	key treekey.ChunkKey,
	out *[]PointIndex,
) error {
	if key.Depth >= depthEnd || !b.st.InRange(key.Depth) {
		return nil
	}
	if !bbox.Intersects(key.Bounds()) {
		return nil
	}

	dxyz := key.Dxyz()
	exists, err := b.reg.Exists(ctx, dxyz)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	c, err := b.reg.Acquire(ctx, dxyz, clipper)
	if err != nil {
		return err
	}
	if key.Depth >= depthBegin {
		b.collect(c, dxyz, bbox, out)
	}

	if key.InTail() || key.Depth+1 >= depthEnd {
		return nil
	}

	children := 1 << uint(b.dims)
	for d := 0; d < children; d++ {
		if err := b.walk(ctx, clipper, bbox, depthBegin, depthEnd, key.StepDir(geo.Direction(d)), out); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) collect(c *chunk.Chunk, dxyz treekey.Dxyz, bbox geo.Bounds, out *[]PointIndex) {
	c.EachIndexed(func(slot int, row point.Row) bool {
		if p, err := b.schema.Vector(row); err == nil && bbox.Contains(p) {
			*out = append(*out, PointIndex{Dxyz: dxyz, Slot: slot})
		}
		return true
	})
}

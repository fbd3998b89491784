package treekey

import "github.com/geospine/entwine/geo"

// BoundsFor recomputes the bounds of the node identified by d by replaying its
// bit-packed descent from root. The registry uses this to recover a chunk's bounds
// from its persisted Dxyz identity alone, without keeping a live Key around.
func BoundsFor(root geo.Bounds, dims geo.Dimensions, d Dxyz) geo.Bounds {
	bounds := root
	for i := d.Depth; i > 0; i-- {
		shift := i - 1
		dir := bitsAt(d.Xyz, shift, dims)
		bounds = bounds.Go(dir, dims)
	}
	return bounds
}

// bitsAt extracts the direction bit that was OR'd in `shift` steps before the most
// recent one, reconstructing the Direction consumed by Xyz.Step at that point in the
// descent.
func bitsAt(p Xyz, shift uint64, dims geo.Dimensions) geo.Direction {
	var dir geo.Direction
	if (p.X>>shift)&1 == 1 {
		dir |= geo.East
	}
	if (p.Y>>shift)&1 == 1 {
		dir |= geo.North
	}
	if dims == geo.Octree && (p.Z>>shift)&1 == 1 {
		dir |= geo.Up
	}
	return dir
}

// Package geo provides the axis-aligned bounding box and direction algebra the tree
// descent (treekey, chunk) is built on: midpoint splitting, per-axis direction
// selection, and the scaled-cubic bounds used so integer tree coordinates compose
// cleanly at every depth.
package geo

import (
	"github.com/golang/geo/r3"
)

// Dimensions selects whether descent splits 2 axes (quadtree) or 3 (octree).
type Dimensions int

// Supported tree dimensionalities (spec.md §6: geometry.type).
const (
	Quadtree Dimensions = 2
	Octree   Dimensions = 3
)

// Direction is a 3-bit tag giving the selected half along each axis relative to a
// box's midpoint: East/North/Up bits pick the greater half, unset bits the lesser.
type Direction uint8

// Direction bits. A quadtree's directions never set Up.
const (
	East Direction = 1 << iota
	North
	Up
)

// IsEast, IsNorth, and IsUp test the corresponding bit.
func (d Direction) IsEast() bool  { return d&East != 0 }
func (d Direction) IsNorth() bool { return d&North != 0 }
func (d Direction) IsUp() bool    { return d&Up != 0 }

// Bounds is an axis-aligned bounding box, min <= max componentwise.
type Bounds struct {
	Min r3.Vector
	Max r3.Vector
}

// Mid returns the componentwise midpoint of the box.
func (b Bounds) Mid() r3.Vector {
	return r3.Vector{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
		Z: (b.Min.Z + b.Max.Z) / 2,
	}
}

// Contains reports whether p lies within the box, inclusive of the boundary.
func (b Bounds) Contains(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Intersects reports whether the two boxes overlap (touching counts as overlap).
func (b Bounds) Intersects(o Bounds) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y &&
		b.Min.Z <= o.Max.Z && b.Max.Z >= o.Min.Z
}

// GetDirection returns the Direction whose selected halves contain p, breaking ties
// on >= (east/north/up are inclusive of the midpoint). For a quadtree, dims is 2 and
// the Up bit is never set: Z is not considered.
func GetDirection(mid, p r3.Vector, dims Dimensions) Direction {
	var d Direction
	if p.X >= mid.X {
		d |= East
	}
	if p.Y >= mid.Y {
		d |= North
	}
	if dims == Octree && p.Z >= mid.Z {
		d |= Up
	}
	return d
}

// Go returns the half-sized child bounds selected by dir. For a quadtree, dims is 2
// and the Z extent passes through unchanged.
func (b Bounds) Go(dir Direction, dims Dimensions) Bounds {
	mid := b.Mid()
	out := b

	if dir.IsEast() {
		out.Min.X = mid.X
	} else {
		out.Max.X = mid.X
	}

	if dir.IsNorth() {
		out.Min.Y = mid.Y
	} else {
		out.Max.Y = mid.Y
	}

	if dims == Octree {
		if dir.IsUp() {
			out.Min.Z = mid.Z
		} else {
			out.Max.Z = mid.Z
		}
	}

	return out
}

// ScaledCubic produces an axis-aligned cube centered on b's centre whose half-extent
// is the maximum half-extent of b along any axis. Descent uses this cube (rather than
// the original, possibly non-cubic, bounds) so that every level splits symmetrically
// and integer keys compose cleanly (spec.md §4.1).
func ScaledCubic(b Bounds, dims Dimensions) Bounds {
	mid := b.Mid()
	half := (b.Max.X - b.Min.X) / 2
	if hy := (b.Max.Y - b.Min.Y) / 2; hy > half {
		half = hy
	}
	if dims == Octree {
		if hz := (b.Max.Z - b.Min.Z) / 2; hz > half {
			half = hz
		}
	}

	out := Bounds{
		Min: r3.Vector{X: mid.X - half, Y: mid.Y - half, Z: mid.Z - half},
		Max: r3.Vector{X: mid.X + half, Y: mid.Y + half, Z: mid.Z + half},
	}
	if dims == Quadtree {
		// Z extent is carried through unchanged for quadtree indexes.
		out.Min.Z = b.Min.Z
		out.Max.Z = b.Max.Z
	}
	return out
}

// SquaredDistance is the squared Euclidean distance between two points, used by the
// chunk insertion rule's tie-break (spec.md §4.3).
func SquaredDistance(a, b r3.Vector) float64 {
	return a.Sub(b).Norm2()
}

package treekey

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/geospine/entwine/geo"
)

func TestBoundsForMatchesLiveDescent(t *testing.T) {
	root := geo.Bounds{Min: r3.Vector{X: 0, Y: 0, Z: 0}, Max: r3.Vector{X: 8, Y: 8, Z: 8}}
	p := r3.Vector{X: 7, Y: 7, Z: 7}

	k := NewKey(root, geo.Octree)
	k = k.StepPoint(p)
	k = k.StepPoint(p)

	got := BoundsFor(root, geo.Octree, Dxyz{Depth: 2, Xyz: k.Pos})
	test.That(t, got, test.ShouldResemble, k.Bounds)
}

func TestBoundsForRootIsUnchangedAtDepthZero(t *testing.T) {
	root := geo.Bounds{Min: r3.Vector{X: 0, Y: 0, Z: 0}, Max: r3.Vector{X: 8, Y: 8, Z: 8}}

	got := BoundsFor(root, geo.Octree, Dxyz{Depth: 0, Xyz: Xyz{}})
	test.That(t, got, test.ShouldResemble, root)
}

func TestBoundsForQuadtreeIgnoresZ(t *testing.T) {
	root := geo.Bounds{Min: r3.Vector{X: 0, Y: 0, Z: 0}, Max: r3.Vector{X: 8, Y: 8, Z: 8}}
	p := r3.Vector{X: 7, Y: 7, Z: 7}

	k := NewKey(root, geo.Quadtree)
	k = k.StepPoint(p)

	got := BoundsFor(root, geo.Quadtree, Dxyz{Depth: 1, Xyz: k.Pos})
	test.That(t, got, test.ShouldResemble, k.Bounds)
	test.That(t, got.Min.Z, test.ShouldEqual, float64(0))
	test.That(t, got.Max.Z, test.ShouldEqual, float64(8))
}

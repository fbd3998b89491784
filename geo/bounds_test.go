package geo

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func cube() Bounds {
	return Bounds{Min: r3.Vector{X: 0, Y: 0, Z: 0}, Max: r3.Vector{X: 8, Y: 8, Z: 8}}
}

func TestGetDirectionOctree(t *testing.T) {
	b := cube()
	mid := b.Mid()
	test.That(t, mid, test.ShouldResemble, r3.Vector{X: 4, Y: 4, Z: 4})

	d := GetDirection(mid, r3.Vector{X: 7, Y: 7, Z: 7}, Octree)
	test.That(t, d.IsEast(), test.ShouldBeTrue)
	test.That(t, d.IsNorth(), test.ShouldBeTrue)
	test.That(t, d.IsUp(), test.ShouldBeTrue)

	d = GetDirection(mid, r3.Vector{X: 1, Y: 1, Z: 1}, Octree)
	test.That(t, d.IsEast(), test.ShouldBeFalse)
	test.That(t, d.IsNorth(), test.ShouldBeFalse)
	test.That(t, d.IsUp(), test.ShouldBeFalse)
}

func TestGetDirectionTiesGoHigh(t *testing.T) {
	b := cube()
	mid := b.Mid()
	// exactly on the midpoint selects the "east/north/up" half (>= is inclusive).
	d := GetDirection(mid, mid, Octree)
	test.That(t, d.IsEast(), test.ShouldBeTrue)
	test.That(t, d.IsNorth(), test.ShouldBeTrue)
	test.That(t, d.IsUp(), test.ShouldBeTrue)
}

func TestQuadtreeIgnoresZ(t *testing.T) {
	b := cube()
	mid := b.Mid()
	d := GetDirection(mid, r3.Vector{X: 7, Y: 7, Z: 7}, Quadtree)
	test.That(t, d.IsUp(), test.ShouldBeFalse)

	child := b.Go(d, Quadtree)
	test.That(t, child.Min.Z, test.ShouldEqual, b.Min.Z)
	test.That(t, child.Max.Z, test.ShouldEqual, b.Max.Z)
	test.That(t, child.Min.X, test.ShouldEqual, float64(4))
}

func TestGoOctreeHalvesAllAxes(t *testing.T) {
	b := cube()
	child := b.Go(East|North|Up, Octree)
	test.That(t, child, test.ShouldResemble, Bounds{
		Min: r3.Vector{X: 4, Y: 4, Z: 4},
		Max: r3.Vector{X: 8, Y: 8, Z: 8},
	})

	child2 := b.Go(0, Octree)
	test.That(t, child2, test.ShouldResemble, Bounds{
		Min: r3.Vector{X: 0, Y: 0, Z: 0},
		Max: r3.Vector{X: 4, Y: 4, Z: 4},
	})
}

func TestScaledCubicOctree(t *testing.T) {
	b := Bounds{Min: r3.Vector{X: 0, Y: 0, Z: 0}, Max: r3.Vector{X: 10, Y: 4, Z: 2}}
	c := ScaledCubic(b, Octree)
	test.That(t, c.Max.X-c.Min.X, test.ShouldEqual, float64(10))
	test.That(t, c.Max.Y-c.Min.Y, test.ShouldEqual, float64(10))
	test.That(t, c.Max.Z-c.Min.Z, test.ShouldEqual, float64(10))
	test.That(t, c.Mid(), test.ShouldResemble, b.Mid())
}

func TestScaledCubicQuadtreeKeepsZ(t *testing.T) {
	b := Bounds{Min: r3.Vector{X: 0, Y: 0, Z: 3}, Max: r3.Vector{X: 10, Y: 4, Z: 9}}
	c := ScaledCubic(b, Quadtree)
	test.That(t, c.Min.Z, test.ShouldEqual, float64(3))
	test.That(t, c.Max.Z, test.ShouldEqual, float64(9))
	test.That(t, c.Max.X-c.Min.X, test.ShouldEqual, float64(10))
	test.That(t, c.Max.Y-c.Min.Y, test.ShouldEqual, float64(10))
}

func TestIntersects(t *testing.T) {
	b := cube()
	test.That(t, b.Intersects(Bounds{Min: r3.Vector{X: 7, Y: 7, Z: 7}, Max: r3.Vector{X: 20, Y: 20, Z: 20}}), test.ShouldBeTrue)
	test.That(t, b.Intersects(Bounds{Min: r3.Vector{X: 9, Y: 9, Z: 9}, Max: r3.Vector{X: 20, Y: 20, Z: 20}}), test.ShouldBeFalse)
}

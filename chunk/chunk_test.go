package chunk

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/geospine/entwine/geo"
	"github.com/geospine/entwine/point"
	"github.com/geospine/entwine/structure"
	"github.com/geospine/entwine/treekey"
)

func testSchema(t *testing.T) *point.Schema {
	t.Helper()
	s, err := point.NewSchema([]point.Dimension{
		{Name: point.DimX, Type: point.F64},
		{Name: point.DimY, Type: point.F64},
		{Name: point.DimZ, Type: point.F64},
	})
	test.That(t, err, test.ShouldBeNil)
	s, err = s.WithOriginID()
	test.That(t, err, test.ShouldBeNil)
	return s
}

func rowAt(t *testing.T, s *point.Schema, p r3.Vector) point.Row {
	t.Helper()
	row, err := s.Pack(point.Values{point.DimX: p.X, point.DimY: p.Y, point.DimZ: p.Z})
	test.That(t, err, test.ShouldBeNil)
	return row
}

func rootBounds() geo.Bounds {
	return geo.Bounds{Min: r3.Vector{X: 0, Y: 0, Z: 0}, Max: r3.Vector{X: 8, Y: 8, Z: 8}}
}

func TestFlatChunkInsertsThenDescendsOnCollision(t *testing.T) {
	s := testSchema(t)
	st, err := structure.New(0, 1, 4)
	test.That(t, err, test.ShouldBeNil)

	bounds := rootBounds()
	key := treekey.NewChunkKey(bounds, geo.Octree, st)
	c := NewFlat(key.Dxyz(), bounds, geo.Octree, st, s)

	p1 := r3.Vector{X: 1, Y: 1, Z: 1}
	res, err := c.Insert(rowAt(t, s, p1), p1, key)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Outcome, test.ShouldEqual, Inserted)

	p2 := r3.Vector{X: 7, Y: 7, Z: 7}
	res, err = c.Insert(rowAt(t, s, p2), p2, key)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Outcome, test.ShouldEqual, Descend)

	// Neither point is closer to the midpoint (mid is (4,4,4); both are equidistant along
	// the diagonal), so the lexicographic tie-break decides which one is asked to continue.
	test.That(t, res.Next.Depth, test.ShouldEqual, uint64(1))
}

func TestFlatChunkDedupesExactCoordinate(t *testing.T) {
	s := testSchema(t)
	st, err := structure.New(0, 1, 4)
	test.That(t, err, test.ShouldBeNil)

	bounds := rootBounds()
	key := treekey.NewChunkKey(bounds, geo.Octree, st)
	c := NewFlat(key.Dxyz(), bounds, geo.Octree, st, s)

	p := r3.Vector{X: 2, Y: 2, Z: 2}
	_, err = c.Insert(rowAt(t, s, p), p, key)
	test.That(t, err, test.ShouldBeNil)

	res, err := c.Insert(rowAt(t, s, p), p, key)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Outcome, test.ShouldEqual, Deduped)
}

func TestFlatChunkCloserPointWinsSlot(t *testing.T) {
	s := testSchema(t)
	st, err := structure.New(0, 1, 4)
	test.That(t, err, test.ShouldBeNil)

	bounds := rootBounds()
	key := treekey.NewChunkKey(bounds, geo.Octree, st)
	c := NewFlat(key.Dxyz(), bounds, geo.Octree, st, s)

	far := r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}
	_, err = c.Insert(rowAt(t, s, far), far, key)
	test.That(t, err, test.ShouldBeNil)

	near := r3.Vector{X: 4, Y: 4, Z: 4} // exactly the midpoint: distance 0
	res, err := c.Insert(rowAt(t, s, near), near, key)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Outcome, test.ShouldEqual, Descend)

	// The occupant should now be `near`; verify by reading the slot back out.
	var got r3.Vector
	c.Each(func(row point.Row) bool {
		v, verr := s.Vector(row)
		test.That(t, verr, test.ShouldBeNil)
		got = v
		return true
	})
	test.That(t, got, test.ShouldResemble, near)
}

func TestBaseChunkFillsMultipleLevelsBeforeDescending(t *testing.T) {
	s := testSchema(t)
	st, err := structure.New(2, 3, 6)
	test.That(t, err, test.ShouldBeNil)

	bounds := rootBounds()
	c := NewBase(bounds, geo.Octree, st, s)
	test.That(t, len(c.slots), test.ShouldEqual, BaseCapacity(2, geo.Octree))

	key := treekey.NewChunkKey(bounds, geo.Octree, st)

	inserted := 0
	descended := 0
	pts := []r3.Vector{
		{X: 1, Y: 1, Z: 1},
		{X: 7, Y: 1, Z: 1},
		{X: 1, Y: 7, Z: 1},
		{X: 1, Y: 1, Z: 7},
		{X: 7, Y: 7, Z: 1},
		{X: 7, Y: 1, Z: 7},
		{X: 1, Y: 7, Z: 7},
		{X: 7, Y: 7, Z: 7},
		{X: 3, Y: 3, Z: 3},
	}
	for _, p := range pts {
		res, err := c.Insert(rowAt(t, s, p), p, key)
		test.That(t, err, test.ShouldBeNil)
		switch res.Outcome {
		case Inserted:
			inserted++
		case Descend:
			descended++
		}
	}
	test.That(t, inserted, test.ShouldBeGreaterThan, 0)
	test.That(t, inserted+descended, test.ShouldEqual, len(pts))
}

func TestTailChunkOverflowsWhenFull(t *testing.T) {
	s := testSchema(t)
	st, err := structure.New(0, 0, 1)
	test.That(t, err, test.ShouldBeNil)

	bounds := rootBounds()
	rootKey := treekey.Dxyz{Depth: 0}
	c := NewTail(rootKey, bounds, geo.Octree, st, s)
	c.overflowLimit = 1
	c.slots = make([]slot, 1)

	key := treekey.NewChunkKey(bounds, geo.Octree, st)

	outcomes := map[Outcome]int{}
	for i := 0; i < 3; i++ {
		p := r3.Vector{X: float64(i) + 0.5, Y: float64(i) + 0.5, Z: float64(i) + 0.5}
		res, err := c.Insert(rowAt(t, s, p), p, key)
		test.That(t, err, test.ShouldBeNil)
		outcomes[res.Outcome]++
	}
	// One fixed slot plus a one-row overflow region hold two of the three points; the
	// third insert finds both full.
	test.That(t, outcomes[Inserted], test.ShouldEqual, 2)
	test.That(t, outcomes[Overflowed], test.ShouldEqual, 1)
}

func TestChunkEachVisitsOverflowRows(t *testing.T) {
	s := testSchema(t)
	st, err := structure.New(0, 0, 1)
	test.That(t, err, test.ShouldBeNil)

	bounds := rootBounds()
	c := NewTail(treekey.Dxyz{}, bounds, geo.Octree, st, s)
	c.slots = make([]slot, 1)
	c.overflowLimit = 2

	key := treekey.NewChunkKey(bounds, geo.Octree, st)
	for i := 0; i < 3; i++ {
		p := r3.Vector{X: float64(i) + 0.1, Y: float64(i) + 0.1, Z: float64(i) + 0.1}
		_, err := c.Insert(rowAt(t, s, p), p, key)
		test.That(t, err, test.ShouldBeNil)
	}
	test.That(t, c.Len(), test.ShouldEqual, 3)
}

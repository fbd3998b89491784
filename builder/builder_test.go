package builder

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/geospine/entwine/geo"
	"github.com/geospine/entwine/logging"
	"github.com/geospine/entwine/point"
	"github.com/geospine/entwine/source"
	"github.com/geospine/entwine/structure"
)

func testFreshBuilder(t *testing.T) *Builder {
	t.Helper()
	driver, err := source.NewLocalDriver(t.TempDir())
	test.That(t, err, test.ShouldBeNil)

	st, err := structure.New(1, 2, 4)
	test.That(t, err, test.ShouldBeNil)

	b, err := Fresh(context.Background(), FreshConfig{
		Driver:  driver,
		Logger:  logging.NewTestLogger(t),
		Threads: 1,
		Bbox:    geo.Bounds{Min: r3.Vector{X: 0, Y: 0, Z: 0}, Max: r3.Vector{X: 100, Y: 100, Z: 100}},
		Dims:    geo.Quadtree,
		SchemaDims: []point.Dimension{
			{Name: point.DimX, Type: point.F64},
			{Name: point.DimY, Type: point.F64},
		},
		Structure: st,
	})
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(b.Close)
	return b
}

func TestFreshMaterializesPinnedBaseChunk(t *testing.T) {
	b := testFreshBuilder(t)
	test.That(t, b.Schema().Has(point.OriginIDName), test.ShouldBeTrue)
}

func TestInsertOnePlacesPointWithinBounds(t *testing.T) {
	b := testFreshBuilder(t)
	clipper := b.reg.NewClipper()
	defer clipper.ReleaseAll()

	row, err := b.schema.Pack(point.Values{point.DimX: 1, point.DimY: 1})
	test.That(t, err, test.ShouldBeNil)
	p, err := b.schema.Vector(row)
	test.That(t, err, test.ShouldBeNil)

	err = b.insertOne(context.Background(), row, p, clipper)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.NumPoints(), test.ShouldEqual, uint64(1))
	test.That(t, b.NumTossed(), test.ShouldEqual, uint64(0))
}

func TestInsertOneTossesOutOfBoundsPoint(t *testing.T) {
	b := testFreshBuilder(t)
	clipper := b.reg.NewClipper()
	defer clipper.ReleaseAll()

	row, err := b.schema.Pack(point.Values{point.DimX: 1e9, point.DimY: 1e9})
	test.That(t, err, test.ShouldBeNil)
	p, err := b.schema.Vector(row)
	test.That(t, err, test.ShouldBeNil)

	err = b.insertOne(context.Background(), row, p, clipper)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.NumPoints(), test.ShouldEqual, uint64(0))
	test.That(t, b.NumTossed(), test.ShouldEqual, uint64(1))
}

func TestInsertOneDedupesExactCoordinate(t *testing.T) {
	b := testFreshBuilder(t)
	clipper := b.reg.NewClipper()
	defer clipper.ReleaseAll()

	row, err := b.schema.Pack(point.Values{point.DimX: 5, point.DimY: 5})
	test.That(t, err, test.ShouldBeNil)
	p, err := b.schema.Vector(row)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, b.insertOne(context.Background(), row, p, clipper), test.ShouldBeNil)
	test.That(t, b.insertOne(context.Background(), row, p, clipper), test.ShouldBeNil)

	test.That(t, b.NumPoints(), test.ShouldEqual, uint64(1))
	test.That(t, b.NumDeduped(), test.ShouldEqual, uint64(1))
}

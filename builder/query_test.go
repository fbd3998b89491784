package builder

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/geospine/entwine/geo"
	"github.com/geospine/entwine/point"
)

func TestQueryReturnsPointWithinRequestedDepth(t *testing.T) {
	ctx := context.Background()
	b := testFreshBuilder(t)

	insertClipper := b.reg.NewClipper()
	row, err := b.schema.Pack(point.Values{point.DimX: 10, point.DimY: 10})
	test.That(t, err, test.ShouldBeNil)
	p, err := b.schema.Vector(row)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.insertOne(ctx, row, p, insertClipper), test.ShouldBeNil)
	insertClipper.ReleaseAll()

	queryClipper := b.reg.NewClipper()
	defer queryClipper.ReleaseAll()

	indices, err := b.Query(ctx, queryClipper, 0, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(indices), test.ShouldEqual, 1)

	got, err := b.GetPointData(ctx, queryClipper, indices[0], b.schema)
	test.That(t, err, test.ShouldBeNil)

	x, err := b.schema.GetFloat(got, point.DimX)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, x, test.ShouldEqual, float64(10))
}

func TestQueryDepthEndZeroMeansNoUpperBound(t *testing.T) {
	ctx := context.Background()
	b := testFreshBuilder(t)

	insertClipper := b.reg.NewClipper()
	row, err := b.schema.Pack(point.Values{point.DimX: 10, point.DimY: 10})
	test.That(t, err, test.ShouldBeNil)
	p, err := b.schema.Vector(row)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.insertOne(ctx, row, p, insertClipper), test.ShouldBeNil)
	insertClipper.ReleaseAll()

	queryClipper := b.reg.NewClipper()
	defer queryClipper.ReleaseAll()

	indices, err := b.Query(ctx, queryClipper, 0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(indices), test.ShouldEqual, 1)
}

func TestQueryBoundsExcludesPointOutsideBbox(t *testing.T) {
	ctx := context.Background()
	b := testFreshBuilder(t)

	insertClipper := b.reg.NewClipper()
	row, err := b.schema.Pack(point.Values{point.DimX: 10, point.DimY: 10})
	test.That(t, err, test.ShouldBeNil)
	p, err := b.schema.Vector(row)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.insertOne(ctx, row, p, insertClipper), test.ShouldBeNil)
	insertClipper.ReleaseAll()

	queryClipper := b.reg.NewClipper()
	defer queryClipper.ReleaseAll()

	farBbox := geo.Bounds{Min: r3.Vector{X: 90, Y: 90}, Max: r3.Vector{X: 100, Y: 100}}
	indices, err := b.QueryBounds(ctx, queryClipper, farBbox, 0, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(indices), test.ShouldEqual, 0)
}

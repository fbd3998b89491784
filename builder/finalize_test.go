package builder

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/geospine/entwine/point"
	"github.com/geospine/entwine/source"
)

func TestFinalizeExportsUncompressedKeys(t *testing.T) {
	ctx := context.Background()
	b := testFreshBuilder(t)

	clipper := b.reg.NewClipper()
	row, err := b.schema.Pack(point.Values{point.DimX: 3, point.DimY: 3})
	test.That(t, err, test.ShouldBeNil)
	p, err := b.schema.Vector(row)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.insertOne(ctx, row, p, clipper), test.ShouldBeNil)
	clipper.ReleaseAll()

	export, err := source.NewLocalDriver(t.TempDir())
	test.That(t, err, test.ShouldBeNil)

	test.That(t, b.Finalize(ctx, export, 0, false), test.ShouldBeNil)

	exists, err := export.Exists(ctx, MetaKey)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, exists, test.ShouldBeTrue)

	buildKeys, err := b.driver.(source.Lister).List(ctx, "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(buildKeys) > 0, test.ShouldBeTrue)

	for _, key := range buildKeys {
		want, err := b.driver.Get(ctx, key)
		test.That(t, err, test.ShouldBeNil)
		got, err := export.Get(ctx, key)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldResemble, want)
	}
}

func TestFinalizeCompressesAndSuffixesExportedKeys(t *testing.T) {
	ctx := context.Background()
	b := testFreshBuilder(t)
	test.That(t, b.Save(ctx), test.ShouldBeNil)

	export, err := source.NewLocalDriver(t.TempDir())
	test.That(t, err, test.ShouldBeNil)

	test.That(t, b.Finalize(ctx, export, 0, true), test.ShouldBeNil)

	exists, err := export.Exists(ctx, MetaKey+".gz")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, exists, test.ShouldBeTrue)

	compressed, err := export.Get(ctx, MetaKey+".gz")
	test.That(t, err, test.ShouldBeNil)

	original, err := b.driver.Get(ctx, MetaKey)
	test.That(t, err, test.ShouldBeNil)

	decompressed, err := gzipDecompress(compressed)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decompressed, test.ShouldResemble, original)
}

func TestFinalizeRequiresListableDriver(t *testing.T) {
	ctx := context.Background()
	b := testFreshBuilder(t)
	b.driver = memDriver{}

	export, err := source.NewLocalDriver(t.TempDir())
	test.That(t, err, test.ShouldBeNil)

	err = b.Finalize(ctx, export, 0, false)
	test.That(t, err, test.ShouldNotBeNil)
}

// memDriver is a minimal source.Driver that deliberately does not implement
// source.Lister, exercising Finalize's type-assertion guard.
type memDriver struct{}

func (memDriver) Get(context.Context, string) ([]byte, error)  { return nil, source.ErrNotFound }
func (memDriver) Put(context.Context, string, []byte) error    { return nil }
func (memDriver) Exists(context.Context, string) (bool, error) { return false, nil }

package treekey

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/geospine/entwine/geo"
	"github.com/geospine/entwine/structure"
)

func TestDxyzStringPadsSingleDigitDepth(t *testing.T) {
	d := Dxyz{Depth: 3, Xyz: Xyz{X: 1, Y: 2, Z: 3}}
	test.That(t, d.String(), test.ShouldEqual, "03-1-2-3")

	d2 := Dxyz{Depth: 12, Xyz: Xyz{X: 1, Y: 2, Z: 3}}
	test.That(t, d2.String(), test.ShouldEqual, "12-1-2-3")
}

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{"00-0-0-0", "03-1-2-3", "12-100-200-300"} {
		d, err := Parse(s)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d.String(), test.ShouldEqual, s)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse("1-2-3")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Parse("not-a-key-at-all-either")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestKeyStepMatchesDirectDescent(t *testing.T) {
	root := geo.Bounds{Min: r3.Vector{X: 0, Y: 0, Z: 0}, Max: r3.Vector{X: 8, Y: 8, Z: 8}}
	k := NewKey(root, geo.Octree)

	p := r3.Vector{X: 7, Y: 7, Z: 7}
	k = k.StepPoint(p)
	test.That(t, k.Pos, test.ShouldResemble, Xyz{X: 1, Y: 1, Z: 1})
	test.That(t, k.Bounds, test.ShouldResemble, geo.Bounds{
		Min: r3.Vector{X: 4, Y: 4, Z: 4}, Max: r3.Vector{X: 8, Y: 8, Z: 8},
	})
}

func TestChunkKeyStepsOnlyInBody(t *testing.T) {
	st, err := structure.New(2, 4, 6)
	test.That(t, err, test.ShouldBeNil)

	root := geo.Bounds{Min: r3.Vector{X: 0, Y: 0, Z: 0}, Max: r3.Vector{X: 8, Y: 8, Z: 8}}
	c := NewChunkKey(root, geo.Octree, st)
	p := r3.Vector{X: 7, Y: 7, Z: 7}

	// Depths 0,1: below baseDepth, neither InBody nor InTail -- key does not step.
	test.That(t, c.InBody(), test.ShouldBeFalse)
	test.That(t, c.InTail(), test.ShouldBeFalse)
	c = c.StepPoint(p)
	test.That(t, c.Depth, test.ShouldEqual, uint64(1))
	test.That(t, c.Key.Pos, test.ShouldResemble, Xyz{})

	c = c.StepPoint(p)
	test.That(t, c.Depth, test.ShouldEqual, uint64(2))
	test.That(t, c.Key.Pos, test.ShouldResemble, Xyz{})

	// Depths 2,3: baseDepth <= d < flatDepth, InBody true -- key steps.
	test.That(t, c.InBody(), test.ShouldBeTrue)
	c = c.StepPoint(p)
	test.That(t, c.Depth, test.ShouldEqual, uint64(3))
	test.That(t, c.Key.Pos, test.ShouldResemble, Xyz{X: 1, Y: 1, Z: 1})

	c = c.StepPoint(p)
	test.That(t, c.Depth, test.ShouldEqual, uint64(4))
	test.That(t, c.Key.Pos, test.ShouldResemble, Xyz{X: 3, Y: 3, Z: 3})

	// Depth 4+: InTail true -- deeper steps only count depth.
	test.That(t, c.InTail(), test.ShouldBeTrue)
	tailDxyz := c.Dxyz()
	c = c.Step()
	test.That(t, c.Depth, test.ShouldEqual, uint64(5))
	test.That(t, c.Key.Pos, test.ShouldResemble, tailDxyz.Xyz)
}

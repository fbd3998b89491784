// Package treekey implements tree node addressing: the bit-packed Xyz/Dxyz identity
// of a node, and the Key/ChunkKey descent machinery that walks a point down through
// the tree, gated by the structure descriptor's base/flat/tail boundaries.
package treekey

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/geospine/entwine/geo"
)

// Xyz is an integer tree coordinate, one bit per descent step: MSB is the root child,
// LSB is the deepest step taken so far.
type Xyz struct {
	X, Y, Z uint64
}

func bit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Step shifts every axis left by one and ORs in the bit selected by dir. Branch-free by
// construction: every axis is always shifted, and the OR is 0 or 1 depending on dir.
func (p Xyz) Step(dir geo.Direction) Xyz {
	return Xyz{
		X: (p.X << 1) | bit(dir.IsEast()),
		Y: (p.Y << 1) | bit(dir.IsNorth()),
		Z: (p.Z << 1) | bit(dir.IsUp()),
	}
}

// Dxyz is the identity of a tree node: a depth plus its Xyz coordinate.
type Dxyz struct {
	Depth uint64
	Xyz
}

// String renders the canonical "DD-X-Y-Z" form, zero-padding the depth to two digits
// only when it is a single digit.
func (d Dxyz) String() string {
	prefix := ""
	if d.Depth < 10 {
		prefix = "0"
	}
	return fmt.Sprintf("%s%d-%d-%d-%d", prefix, d.Depth, d.X, d.Y, d.Z)
}

// Parse reads a DXYZ string back into a Dxyz. It accepts exactly four integers
// separated by any non-digit characters (the canonical form uses '-'). A malformed key
// is a query-time error (spec.md §7 Parse-DXYZ-failure); it never corrupts build state.
func Parse(s string) (Dxyz, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if len(fields) != 4 {
		return Dxyz{}, errors.Errorf("couldn't parse %q as DXYZ", s)
	}

	nums := make([]uint64, 4)
	for i, f := range fields {
		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return Dxyz{}, errors.Wrapf(err, "couldn't parse %q as DXYZ", s)
		}
		nums[i] = n
	}

	return Dxyz{Depth: nums[0], Xyz: Xyz{X: nums[1], Y: nums[2], Z: nums[3]}}, nil
}

// Less orders Dxyz values by depth, then lexicographically by (x, y, z). Nothing else
// in this module calls it; registry flush order is not sorted.
func Less(a, b Dxyz) bool {
	if a.Depth != b.Depth {
		return a.Depth < b.Depth
	}
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

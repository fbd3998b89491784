// Package chunk implements the on-disk/in-memory storage unit of the tree: a
// fixed-capacity array of point slots for the subtree rooted at a base/flat/tail key,
// and the insertion rule that decides whether an arriving point stays at a node or
// descends past it.
package chunk

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/geospine/entwine/geo"
	"github.com/geospine/entwine/point"
	"github.com/geospine/entwine/structure"
	"github.com/geospine/entwine/treekey"
)

// Tier names the storage tier a chunk belongs to, matching spec.md §3's lifecycle
// regions. A single Chunk type serves all three; tier-specific behavior lives in
// per-tier slot-layout functions rather than an inheritance hierarchy (spec.md §9).
type Tier uint8

// Storage tiers.
const (
	TierBase Tier = iota
	TierFlat
	TierTail
)

func (t Tier) String() string {
	switch t {
	case TierBase:
		return "base"
	case TierFlat:
		return "flat"
	case TierTail:
		return "tail"
	default:
		return "unknown"
	}
}

// Outcome is the result of one Insert call.
type Outcome uint8

// Possible insertion outcomes (spec.md §4.3).
const (
	// Inserted means the row was placed in an empty slot in this chunk.
	Inserted Outcome = iota
	// Deduped means an identical-coordinate point already occupied the slot; the
	// arriving point was discarded, not counted as tossed.
	Deduped
	// Descend means this chunk's capacity (and, for base, its internal levels) is
	// exhausted for this point; the caller must acquire the chunk identified by
	// Result.Next and retry there. Tail chunks never report Descend: a point that
	// exhausts a tail chunk's levels goes to its overflow region instead.
	Descend
	// Overflowed means a tail chunk's fixed slots and overflow region are both
	// exhausted; the point is fatally lost for indexing purposes (counted tossed).
	Overflowed
)

// Result reports what happened to an inserted point, and — for Descend — where to
// retry it.
type Result struct {
	Outcome Outcome
	Next    treekey.ChunkKey
	// Point and Row are set for Descend and Overflowed: the loser of a tie-break may not be
	// the point Insert was originally called with (the arriving point can win a
	// slot from an incumbent, which then becomes the point that must descend).
	Point r3.Vector
	Row   point.Row
	// nextKey carries the bounds/position an internal multi-level descent (base tier)
	// reached when it gave up, letting Insert build Next without replaying the descent.
	nextKey treekey.Key
}

// Chunk is a fixed-capacity slot array for one tier's storage unit, identified by the
// Dxyz of its root key.
type Chunk struct {
	tier   Tier
	key    treekey.Dxyz
	bounds geo.Bounds
	dims   geo.Dimensions
	st     structure.Structure
	schema *point.Schema

	slots []slot

	overflowMu    sync.Mutex
	overflowRows  []point.Row
	overflowLimit int

	dirty atomic.Bool
}

// NewBase constructs the single in-memory chunk covering every depth below
// structure.Base, rooted at the tree's root.
func NewBase(root geo.Bounds, dims geo.Dimensions, st structure.Structure, schema *point.Schema) *Chunk {
	return &Chunk{
		tier:   TierBase,
		key:    treekey.Dxyz{},
		bounds: root,
		dims:   dims,
		st:     st,
		schema: schema,
		slots:  make([]slot, BaseCapacity(st.Base, dims)),
	}
}

// NewFlat constructs a flat chunk rooted at key, covering exactly the one node key
// identifies.
func NewFlat(key treekey.Dxyz, bounds geo.Bounds, dims geo.Dimensions, st structure.Structure, schema *point.Schema) *Chunk {
	return &Chunk{
		tier:   TierFlat,
		key:    key,
		bounds: bounds,
		dims:   dims,
		st:     st,
		schema: schema,
		slots:  make([]slot, FlatCapacity),
	}
}

// NewTail constructs a tail chunk rooted at key, sized for the expected population of
// its local subtree down to structure.Disk, plus a bounded overflow region.
func NewTail(key treekey.Dxyz, bounds geo.Bounds, dims geo.Dimensions, st structure.Structure, schema *point.Schema) *Chunk {
	capacity := TailCapacity(key.Depth, st.Disk, dims)
	return &Chunk{
		tier:          TierTail,
		key:           key,
		bounds:        bounds,
		dims:          dims,
		st:            st,
		schema:        schema,
		slots:         make([]slot, capacity),
		overflowLimit: capacity, // overflow region matches primary capacity by default
	}
}

// TierFor classifies a depth against a Structure, matching the base/flat/tail
// partition treekey.ChunkKey descends through.
func TierFor(st structure.Structure, depth uint64) Tier {
	switch {
	case st.InBase(depth):
		return TierBase
	case st.InFlat(depth):
		return TierFlat
	default:
		return TierTail
	}
}

// Tier reports the chunk's storage tier.
func (c *Chunk) Tier() Tier { return c.tier }

// Key returns the Dxyz identity of the chunk's root.
func (c *Chunk) Key() treekey.Dxyz { return c.key }

// Bounds returns the bounds of the chunk's root node.
func (c *Chunk) Bounds() geo.Bounds { return c.bounds }

// Dirty reports whether the chunk has been mutated since it was last flushed.
func (c *Chunk) Dirty() bool { return c.dirty.Load() }

// ClearDirty marks the chunk clean, called by the registry once a flush completes.
func (c *Chunk) ClearDirty() { c.dirty.Store(false) }

// Insert attempts to place row (whose point coordinate is p) into this chunk,
// entering at entry (whose Depth must equal the chunk's own tier entry depth: 0 for
// base, key.Depth for flat/tail). It implements spec.md §4.3's insertion rule: CAS an
// empty slot, deduplicate an exact coordinate match, or resolve a collision by giving
// the slot to whichever point is closer to the node's midpoint and handing the loser
// back to the caller to retry at a deeper key.
func (c *Chunk) Insert(row point.Row, p r3.Vector, entry treekey.ChunkKey) (Result, error) {
	switch c.tier {
	case TierBase:
		res, err := c.insertMultiLevel(row, p, c.bounds, 0, c.st.Base, baseSlotIndexer(c.dims))
		if err != nil || res.Outcome != Descend {
			return res, err
		}
		// The base tier's descent is entirely internal (it never acquires a live
		// ChunkKey per level), so the first ChunkKey past it must be rebuilt from
		// the bounds/position the descent stopped at rather than stepped in place.
		res.Next = treekey.ResumeChunkKey(res.nextKey, c.st.Base, c.st)
		return res, nil
	case TierFlat:
		res, err := c.tryOneSlot(0, row, p, c.bounds)
		if err != nil || res.Outcome != Descend {
			return res, err
		}
		res.Next = entry.StepDir(geo.GetDirection(c.bounds.Mid(), res.Point, c.dims))
		return res, nil
	case TierTail:
		levels := TierTailLevels(c.key.Depth, c.st.Disk)
		result, err := c.insertMultiLevel(row, p, c.bounds, 0, levels, hashSlotIndexer(len(c.slots)))
		if err != nil {
			return Result{}, err
		}
		if result.Outcome == Descend {
			return c.overflow(result.Row, result.Point)
		}
		return result, nil
	default:
		return Result{}, errors.Errorf("chunk: unknown tier %d", c.tier)
	}
}

// TierTailLevels bounds how many internal sub-levels a tail chunk rooted at chunkDepth
// searches before overflowing, capped at the tree's disk depth.
func TierTailLevels(chunkDepth, diskDepth uint64) uint64 {
	if diskDepth <= chunkDepth {
		return 0
	}
	levels := diskDepth - chunkDepth
	const maxLevels = 12
	if levels > maxLevels {
		levels = maxLevels
	}
	return levels
}

// slotIndexer computes the flat slot index for a local sub-position at local depth d.
type slotIndexer func(localDepth uint64, pos treekey.Xyz) int

func baseSlotIndexer(dims geo.Dimensions) slotIndexer {
	return func(localDepth uint64, pos treekey.Xyz) int {
		side := levelWidth(localDepth)
		var local uint64
		if dims == geo.Octree {
			local = pos.X + pos.Y*side + pos.Z*side*side
		} else {
			local = pos.X + pos.Y*side
		}
		return int(baseLevelOffset(localDepth, dims) + local)
	}
}

func hashSlotIndexer(capacity int) slotIndexer {
	return func(localDepth uint64, pos treekey.Xyz) int {
		h := fnv1a(localDepth, pos.X, pos.Y, pos.Z)
		return int(h % uint64(capacity))
	}
}

func fnv1a(vs ...uint64) uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211
	h := uint64(offset)
	for _, v := range vs {
		for i := 0; i < 8; i++ {
			h ^= v & 0xff
			h *= prime
			v >>= 8
		}
	}
	return h
}

// insertMultiLevel walks up to maxLevels internal sub-depths starting at bounds,
// attempting a CAS at each level's indexed slot, tie-breaking on collision, and
// swapping in the winner. It stops and reports Descend once maxLevels is exhausted.
func (c *Chunk) insertMultiLevel(
	row point.Row,
	p r3.Vector,
	bounds geo.Bounds,
	startLevel, maxLevels uint64,
	indexer slotIndexer,
) (Result, error) {
	pos := treekey.Xyz{}
	for depth := startLevel; depth < maxLevels; depth++ {
		idx := indexer(depth, pos)
		if idx < 0 || idx >= len(c.slots) {
			return Result{Outcome: Descend, Point: p, Row: row, nextKey: treekey.NewKeyAt(bounds, pos, c.dims)}, nil
		}
		s := &c.slots[idx]

		if _, inserted := s.tryInsert(row); inserted {
			c.dirty.Store(true)
			return Result{Outcome: Inserted}, nil
		}

		res, err := c.collide(s, row, bounds.Mid())
		if err != nil {
			return Result{}, err
		}
		if res.Outcome != Descend {
			return res, nil
		}

		dir := geo.GetDirection(bounds.Mid(), res.Point, c.dims)
		bounds = bounds.Go(dir, c.dims)
		pos = pos.Step(dir)
		row, p = res.Row, res.Point
	}
	return Result{Outcome: Descend, Point: p, Row: row, nextKey: treekey.NewKeyAt(bounds, pos, c.dims)}, nil
}

// collide resolves a tryInsert collision against an already-occupied slot: it decides
// a winner between the incumbent and the arriving row and, if the arriving side (or a
// point that already won a previous level) displaces the incumbent, swaps it in with
// a CompareAndSwap against the exact pointer it read. The registry hands one shared
// *Chunk to every insertion worker with no per-chunk lock on this path, so two workers
// can race the same occupied slot; if a concurrent write beat this one to the slot,
// the CAS fails and the whole read-decide-write sequence retries against whatever is
// there now, rather than silently clobbering the other worker's winner.
func (c *Chunk) collide(s *slot, row point.Row, mid r3.Vector) (Result, error) {
	for {
		ptr, existing, ok := s.loadOccupant()
		if !ok {
			// Slots never actually go back to empty once occupied; this only guards
			// against a hypothetical future relaxation of that invariant.
			if _, inserted := s.tryInsert(row); inserted {
				c.dirty.Store(true)
				return Result{Outcome: Inserted}, nil
			}
			continue
		}

		dup, err := c.sameCoordinate(existing, row)
		if err != nil {
			return Result{}, err
		}
		if dup {
			return Result{Outcome: Deduped}, nil
		}

		winner, loser, err := c.closer(existing, row, mid)
		if err != nil {
			return Result{}, err
		}

		if bytes.Equal(winner, existing) {
			loserPoint, err := c.schema.Vector(loser)
			if err != nil {
				return Result{}, err
			}
			return Result{Outcome: Descend, Point: loserPoint, Row: loser}, nil
		}

		if !s.casReplace(ptr, winner) {
			// Another worker already displaced existing; re-read and re-decide.
			continue
		}
		c.dirty.Store(true)

		loserPoint, err := c.schema.Vector(loser)
		if err != nil {
			return Result{}, err
		}
		return Result{Outcome: Descend, Point: loserPoint, Row: loser}, nil
	}
}

// tryOneSlot is the flat-tier special case: a chunk with exactly one slot, so a
// collision immediately determines a winner and hands the loser to the caller with no
// internal descent.
func (c *Chunk) tryOneSlot(idx int, row point.Row, p r3.Vector, bounds geo.Bounds) (Result, error) {
	s := &c.slots[idx]
	if _, inserted := s.tryInsert(row); inserted {
		c.dirty.Store(true)
		return Result{Outcome: Inserted}, nil
	}
	return c.collide(s, row, bounds.Mid())
}

// overflow appends a point that exhausted a tail chunk's fixed slots to its overflow
// region, unless the overflow region is itself exhausted.
func (c *Chunk) overflow(row point.Row, p r3.Vector) (Result, error) {
	c.overflowMu.Lock()
	defer c.overflowMu.Unlock()

	for _, existing := range c.overflowRows {
		dup, err := c.sameCoordinate(existing, row)
		if err != nil {
			return Result{}, err
		}
		if dup {
			return Result{Outcome: Deduped}, nil
		}
	}

	if len(c.overflowRows) >= c.overflowLimit {
		return Result{Outcome: Overflowed, Point: p, Row: row}, nil
	}

	c.overflowRows = append(c.overflowRows, row)
	c.dirty.Store(true)
	return Result{Outcome: Inserted}, nil
}

func (c *Chunk) sameCoordinate(a, b point.Row) (bool, error) {
	av, err := c.schema.Vector(a)
	if err != nil {
		return false, err
	}
	bv, err := c.schema.Vector(b)
	if err != nil {
		return false, err
	}
	return av == bv, nil
}

// closer returns (winner, loser) between a and b: the point closer to mid wins,
// ties broken by lexicographic packed-row order for reproducibility across runs
// (spec.md §4.3).
func (c *Chunk) closer(a, b point.Row, mid r3.Vector) (winner, loser point.Row, err error) {
	av, err := c.schema.Vector(a)
	if err != nil {
		return nil, nil, err
	}
	bv, err := c.schema.Vector(b)
	if err != nil {
		return nil, nil, err
	}

	da := geo.SquaredDistance(av, mid)
	db := geo.SquaredDistance(bv, mid)

	switch {
	case da < db:
		return a, b, nil
	case db < da:
		return b, a, nil
	default:
		if bytes.Compare(a, b) <= 0 {
			return a, b, nil
		}
		return b, a, nil
	}
}

// Each visits every occupied slot, including the overflow region, calling fn with the
// packed row. Iteration stops early if fn returns false.
func (c *Chunk) Each(fn func(row point.Row) bool) {
	c.EachIndexed(func(_ int, row point.Row) bool {
		return fn(row)
	})
}

// EachIndexed visits every occupied slot like Each, but also passes the slot offset
// Get(slot) later resolves back to the same row — the per-chunk half of the (Dxyz,
// slot) point address spec.md §4.5/§8 identifies a stored point by. Fixed-array slots
// are numbered 0..len(slots)-1; overflow rows (tail chunks only) continue the sequence
// from len(slots).
func (c *Chunk) EachIndexed(fn func(slot int, row point.Row) bool) {
	for i := range c.slots {
		row, ok := c.slots[i].load()
		if !ok {
			continue
		}
		if !fn(i, row) {
			return
		}
	}
	c.overflowMu.Lock()
	rows := append([]point.Row(nil), c.overflowRows...)
	c.overflowMu.Unlock()
	base := len(c.slots)
	for j, row := range rows {
		if !fn(base+j, row) {
			return
		}
	}
}

// Get resolves a slot offset (as handed out by EachIndexed) back to its packed row.
// The bool is false if the slot is empty or out of range, which can happen if the
// chunk was mutated between the index being handed out and Get being called.
func (c *Chunk) Get(slot int) (point.Row, bool) {
	if slot < 0 {
		return nil, false
	}
	if slot < len(c.slots) {
		return c.slots[slot].load()
	}
	j := slot - len(c.slots)
	c.overflowMu.Lock()
	defer c.overflowMu.Unlock()
	if j < 0 || j >= len(c.overflowRows) {
		return nil, false
	}
	return c.overflowRows[j], true
}

// Len returns the number of occupied slots, including overflow.
func (c *Chunk) Len() int {
	n := 0
	c.Each(func(point.Row) bool {
		n++
		return true
	})
	return n
}

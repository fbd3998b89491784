package registry

import (
	"github.com/geospine/entwine/chunk"
	"github.com/geospine/entwine/treekey"
)

// Clipper is a per-insertion-thread bookkeeping object recording every chunk key that
// thread currently holds acquired. When an insertion job finishes (or a query narrows
// its working set) the Clipper releases everything it holds, so a caller can never
// leak an acquisition by forgetting to release it explicitly (spec.md §4.4).
//
// held maps each key to the chunk Acquire returned for it, not just a membership
// marker: a Clipper that already holds a key returns the same chunk again without
// touching the registry's refcount at all, since a single insertion job typically
// calls Acquire on the same node many times in a row (once per point that lands
// there) but ReleaseAll/Clip only ever release each held key once. Without this, the
// registry's refcount would run ahead of what Release could ever bring back to zero,
// and the chunk would never become eviction-eligible.
type Clipper struct {
	registry *Registry
	held     map[treekey.Dxyz]*chunk.Chunk
}

func newClipper(r *Registry) *Clipper {
	return &Clipper{registry: r, held: make(map[treekey.Dxyz]*chunk.Chunk)}
}

// chunkFor returns the chunk this clipper already holds for key, if any.
func (c *Clipper) chunkFor(key treekey.Dxyz) (*chunk.Chunk, bool) {
	ch, ok := c.held[key]
	return ch, ok
}

// track records that key (backed by ch) is now held by this clipper. Called by
// Registry.Acquire exactly once per key, the first time this clipper acquires it.
func (c *Clipper) track(key treekey.Dxyz, ch *chunk.Chunk) {
	c.held[key] = ch
}

// forget drops key from this clipper's held set without releasing it in the registry,
// used when Clip narrows a query's working set (the registry-side release already
// happened by the time forget is called).
func (c *Clipper) forget(key treekey.Dxyz) {
	delete(c.held, key)
}

// Clip releases every key this clipper holds that keep does not report true for. The
// builder's queries do not call it: a query's clipper holds every chunk it visited
// until ReleaseAll.
func (c *Clipper) Clip(keep func(treekey.Dxyz) bool) {
	for key := range c.held {
		if keep(key) {
			continue
		}
		c.registry.Release(key, c)
		c.forget(key)
	}
}

// ReleaseAll releases every key still held by this clipper, called once an insertion
// job or query completes.
func (c *Clipper) ReleaseAll() {
	for key := range c.held {
		c.registry.Release(key, c)
	}
	c.held = make(map[treekey.Dxyz]*chunk.Chunk)
}

// Package registry materializes chunks on demand, hands them out to insertion and
// query threads with a refcount, and flushes/evicts them to bound memory (spec.md
// §4.4). It is the only place in the core that blocks: acquirers of a not-yet-resident
// chunk wait on a per-key materialization barrier, and acquirers past the
// resident-chunk high-water mark wait for eviction to make room.
package registry

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/geospine/entwine/chunk"
	"github.com/geospine/entwine/geo"
	"github.com/geospine/entwine/internal/background"
	"github.com/geospine/entwine/logging"
	"github.com/geospine/entwine/metrics"
	"github.com/geospine/entwine/point"
	"github.com/geospine/entwine/source"
	"github.com/geospine/entwine/structure"
	"github.com/geospine/entwine/treekey"
)

const numShards = 64

// DefaultHighWaterMark and DefaultLowWaterMark bound resident tail chunks when a build
// does not configure its own (spec.md §6 doesn't name specific values; SPEC_FULL.md
// exposes them as tuning knobs).
const (
	DefaultHighWaterMark = 4096
	DefaultLowWaterMark  = 2048
)

type shard struct {
	mu      sync.Mutex
	entries map[treekey.Dxyz]*entry
}

// Registry is the chunk cache and I/O boundary described in spec.md §4.4.
type Registry struct {
	root   geo.Bounds
	dims   geo.Dimensions
	st     structure.Structure
	schema *point.Schema
	driver source.Driver
	logger logging.Logger

	shards [numShards]*shard
	group  singleflight.Group

	lruMu sync.Mutex
	lru   *lru.Cache // key treekey.Dxyz, value struct{}; membership == eviction-eligible

	resident chan struct{} // buffered to highWater; a token per resident non-pinned chunk
	lowWater int
	evictCh  chan struct{}
	workers  background.Executor
}

// Config bundles the parameters needed to construct a Registry.
type Config struct {
	Root          geo.Bounds
	Dims          geo.Dimensions
	Structure     structure.Structure
	Schema        *point.Schema
	Driver        source.Driver
	Logger        logging.Logger
	HighWaterMark int
	LowWaterMark  int
}

// New constructs a Registry. It does not itself acquire the base chunk; the builder
// does that once, at construction, since the base chunk is pinned for the whole run.
func New(cfg Config) (*Registry, error) {
	if cfg.HighWaterMark <= 0 {
		cfg.HighWaterMark = DefaultHighWaterMark
	}
	if cfg.LowWaterMark <= 0 || cfg.LowWaterMark >= cfg.HighWaterMark {
		cfg.LowWaterMark = cfg.HighWaterMark / 2
	}

	evictionList, err := lru.New(cfg.HighWaterMark * 2)
	if err != nil {
		return nil, errors.Wrap(err, "constructing eviction list")
	}

	r := &Registry{
		root:     cfg.Root,
		dims:     cfg.Dims,
		st:       cfg.Structure,
		schema:   cfg.Schema,
		driver:   cfg.Driver,
		logger:   cfg.Logger,
		lru:      evictionList,
		resident: make(chan struct{}, cfg.HighWaterMark),
		lowWater: cfg.LowWaterMark,
		evictCh:  make(chan struct{}, 1),
	}
	for i := range r.shards {
		r.shards[i] = &shard{entries: make(map[treekey.Dxyz]*entry)}
	}

	r.workers = background.NewExecutor(r.evictionLoop)
	return r, nil
}

// Close stops the background eviction executor. Call after a final FlushAll.
func (r *Registry) Close() {
	r.workers.Stop()
}

func (r *Registry) shardFor(key treekey.Dxyz) *shard {
	h := key.Depth*31 + key.X*7 + key.Y*13 + key.Z*17
	return r.shards[h%numShards]
}

// Acquire returns a live reference to the chunk identified by key, materializing it
// from the driver (or allocating it fresh, for a never-before-seen key) if it is not
// already resident. The reference is tracked against clipper, so the caller must
// eventually call Release (directly, or via clipper.ReleaseAll/Clip).
func (r *Registry) Acquire(ctx context.Context, key treekey.Dxyz, clipper *Clipper) (*chunk.Chunk, error) {
	// A clipper that already holds key gets the same chunk back with no further
	// registry-side bookkeeping: an insertion job typically calls Acquire on the same
	// node once per point that lands there, but ReleaseAll/Clip only ever release
	// each held key once, so counting every repeat Acquire against refs here would
	// leave the chunk permanently above refcount 0.
	if ch, ok := clipper.chunkFor(key); ok {
		return ch, nil
	}

	sh := r.shardFor(key)

	sh.mu.Lock()
	if e, ok := sh.entries[key]; ok {
		e.refs.Add(1)
		sh.mu.Unlock()
		r.markInUse(key)
		clipper.track(key, e.chunk)
		return e.chunk, nil
	}
	sh.mu.Unlock()

	tier := chunk.TierFor(r.st, key.Depth)
	r.awaitResidentSlot(ctx, tier)

	result, err, _ := r.group.Do(key.String(), func() (interface{}, error) {
		return r.materialize(ctx, key, tier)
	})
	if err != nil {
		return nil, err
	}
	e := result.(*entry)

	sh.mu.Lock()
	if existing, ok := sh.entries[key]; ok {
		existing.refs.Add(1)
		sh.mu.Unlock()
		r.markInUse(key)
		clipper.track(key, existing.chunk)
		return existing.chunk, nil
	}
	e.refs.Add(1)
	sh.entries[key] = e
	sh.mu.Unlock()

	metrics.ResidentChunks.WithLabelValues(tier.String()).Inc()
	r.markInUse(key)
	clipper.track(key, e.chunk)
	return e.chunk, nil
}

// Exists reports whether key is already known to the registry, either resident in
// memory or already persisted by the driver, without acquiring or materializing it.
// Queries use this to prune a tree walk to populated nodes instead of materializing an
// empty chunk at every candidate position.
func (r *Registry) Exists(ctx context.Context, key treekey.Dxyz) (bool, error) {
	sh := r.shardFor(key)
	sh.mu.Lock()
	_, resident := sh.entries[key]
	sh.mu.Unlock()
	if resident {
		return true, nil
	}
	tier := chunk.TierFor(r.st, key.Depth)
	return r.driver.Exists(ctx, storageKey(tier, key))
}

// materialize loads key's bytes from the driver if present, or allocates a fresh
// chunk otherwise; it does not register the entry into its shard, since Acquire does
// that once under the shard's own lock (singleflight only guarantees one execution of
// this function, not exclusion against the shard map).
func (r *Registry) materialize(ctx context.Context, key treekey.Dxyz, tier chunk.Tier) (*entry, error) {
	bounds := treekey.BoundsFor(r.root, r.dims, key)

	var c *chunk.Chunk
	switch tier {
	case chunk.TierBase:
		c = chunk.NewBase(r.root, r.dims, r.st, r.schema)
	case chunk.TierFlat:
		c = chunk.NewFlat(key, bounds, r.dims, r.st, r.schema)
	default:
		c = chunk.NewTail(key, bounds, r.dims, r.st, r.schema)
	}

	data, err := r.driver.Get(ctx, storageKey(tier, key))
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return &entry{chunk: c, pinned: tier != chunk.TierTail}, nil
		}
		return nil, errors.Wrapf(err, "materializing chunk %s", key)
	}
	if err := c.Unmarshal(data); err != nil {
		return nil, errors.Wrapf(err, "decoding chunk %s", key)
	}
	return &entry{chunk: c, pinned: tier != chunk.TierTail}, nil
}

// storageKey computes the persisted key for a chunk. There is exactly one base chunk
// for the whole tree, so it always lands at the fixed key "0"; every flat and tail
// chunk is addressed by its own DXYZ identity, since the byte-addressed Driver has no
// notion of packing several chunks into one object the way a single contiguous file
// on disk would.
func storageKey(tier chunk.Tier, key treekey.Dxyz) string {
	if tier == chunk.TierBase {
		return "0"
	}
	return key.String()
}

// Release drops clipper's hold on key. Once the last reference is released, a
// non-pinned chunk becomes eviction-eligible.
func (r *Registry) Release(key treekey.Dxyz, clipper *Clipper) {
	sh := r.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.entries[key]
	sh.mu.Unlock()
	if !ok {
		return
	}

	if left := e.refs.Add(-1); left == 0 && !e.pinned {
		r.lruMu.Lock()
		r.lru.Add(key, struct{}{})
		r.lruMu.Unlock()
		select {
		case r.evictCh <- struct{}{}:
		default:
		}
	}
}

// markInUse removes key from the eviction candidate list, since it now has at least
// one live acquirer.
func (r *Registry) markInUse(key treekey.Dxyz) {
	r.lruMu.Lock()
	r.lru.Remove(key)
	r.lruMu.Unlock()
}

// awaitResidentSlot blocks until a resident-chunk token is available for a tail
// acquisition, providing the backpressure spec.md §5 describes at the high-water mark.
// Base and flat chunks are pinned for the run and never evicted, so they don't
// participate in this accounting at all.
func (r *Registry) awaitResidentSlot(ctx context.Context, tier chunk.Tier) {
	if tier != chunk.TierTail {
		return
	}
	select {
	case r.resident <- struct{}{}:
	case <-ctx.Done():
	}
}

// evictionLoop runs as a background worker, evicting cold chunks whenever a release
// pushes a candidate onto the LRU and residency is above the low-water mark.
func (r *Registry) evictionLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.evictCh:
			r.evictDown(ctx)
		}
	}
}

func (r *Registry) evictDown(ctx context.Context) {
	for len(r.resident) > r.lowWater {
		r.lruMu.Lock()
		keyIface, _, ok := r.lru.RemoveOldest()
		r.lruMu.Unlock()
		if !ok {
			return
		}
		key := keyIface.(treekey.Dxyz)
		if err := r.evictOne(ctx, key); err != nil {
			r.logger.Warnw("failed to evict chunk", "key", key.String(), "error", err)
		}
	}
}

func (r *Registry) evictOne(ctx context.Context, key treekey.Dxyz) error {
	sh := r.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.entries[key]
	if !ok || e.refs.Load() != 0 || e.pinned {
		sh.mu.Unlock()
		return nil
	}
	delete(sh.entries, key)
	sh.mu.Unlock()
	metrics.ResidentChunks.WithLabelValues(e.chunk.Tier().String()).Dec()

	if e.chunk.Dirty() {
		if err := r.flush(ctx, e.chunk.Tier(), key, e.chunk); err != nil {
			return err
		}
	}

	select {
	case <-r.resident:
	default:
	}
	return nil
}

func (r *Registry) flush(ctx context.Context, tier chunk.Tier, key treekey.Dxyz, c *chunk.Chunk) error {
	defer metrics.TimeFlush(time.Now())

	data, err := c.Marshal()
	if err != nil {
		return errors.Wrapf(err, "marshaling chunk %s", key)
	}
	if err := r.driver.Put(ctx, storageKey(tier, key), data); err != nil {
		return errors.Wrapf(err, "flushing chunk %s", key)
	}
	c.ClearDirty()
	return nil
}

// FlushAll drains every dirty resident chunk to the driver, pinned or not. Used by
// Builder.Save and at build end.
func (r *Registry) FlushAll(ctx context.Context) error {
	var errs error
	for _, sh := range r.shards {
		sh.mu.Lock()
		snapshot := make(map[treekey.Dxyz]*entry, len(sh.entries))
		for k, v := range sh.entries {
			snapshot[k] = v
		}
		sh.mu.Unlock()

		for key, e := range snapshot {
			if !e.chunk.Dirty() {
				continue
			}
			if err := r.flush(ctx, e.chunk.Tier(), key, e.chunk); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}

// NewClipper returns a fresh Clipper bound to this registry.
func (r *Registry) NewClipper() *Clipper {
	return newClipper(r)
}

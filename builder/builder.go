// Package builder is the top-level orchestrator matching the original tree Builder's
// role (original_source/entwine/tree/builder.hpp): it owns the schema and bounds for
// one build, drives insertion across a worker pool, and delegates all chunk storage
// concerns to registry.Registry.
package builder

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/geospine/entwine/geo"
	"github.com/geospine/entwine/logging"
	"github.com/geospine/entwine/point"
	"github.com/geospine/entwine/pool"
	"github.com/geospine/entwine/registry"
	"github.com/geospine/entwine/source"
	"github.com/geospine/entwine/structure"
	"github.com/geospine/entwine/treekey"
)

// Builder drives one index build: it assigns origins to inserted files, streams their
// points through the worker pool, and tracks the running point counters that end up in
// the saved Metadata document.
type Builder struct {
	schema         *point.Schema
	originalBounds geo.Bounds
	bounds         geo.Bounds
	dims           geo.Dimensions
	st             structure.Structure
	driver         source.Driver
	logger         logging.Logger

	reg         *registry.Registry
	pool        *pool.Pool
	baseClipper *registry.Clipper
	threads     int

	mu         sync.Mutex
	origins    []string
	numPoints  uint64
	numDeduped uint64
	numTossed  uint64
}

// FreshConfig configures a brand-new build (original_source's fresh-build
// constructor: buildPath/tmpPath/reprojection/bbox/dimList/numThreads/
// numDimensions/baseDepth/flatDepth/diskDepth/arbiter).
type FreshConfig struct {
	Driver        source.Driver
	Logger        logging.Logger
	Threads       int
	Bbox          geo.Bounds
	Dims          geo.Dimensions
	SchemaDims    []point.Dimension
	Structure     structure.Structure
	HighWaterMark int
	LowWaterMark  int
}

// ResumeConfig configures a build resumed from a previously saved Metadata document
// (original_source's resume constructor: buildPath/tmpPath/reprojection/numThreads/
// arbiter — everything else is read back out of the saved meta).
type ResumeConfig struct {
	Driver        source.Driver
	Logger        logging.Logger
	Threads       int
	HighWaterMark int
	LowWaterMark  int
}

// IsResumable reports whether driver already holds a metadata document, the same test
// the CLI kernel runs against `<buildPath>/meta` to choose fresh vs. resume.
func IsResumable(ctx context.Context, driver source.Driver) (bool, error) {
	return driver.Exists(ctx, MetaKey)
}

// Fresh constructs a Builder for a new build and materializes its base chunk, which is
// pinned for the run's entire lifetime.
func Fresh(ctx context.Context, cfg FreshConfig) (*Builder, error) {
	schema, err := point.NewSchema(cfg.SchemaDims)
	if err != nil {
		return nil, errors.Wrap(err, "building schema")
	}
	schema, err = schema.WithOriginID()
	if err != nil {
		return nil, errors.Wrap(err, "appending origin dimension")
	}

	scaled := geo.ScaledCubic(cfg.Bbox, cfg.Dims)

	reg, err := registry.New(registry.Config{
		Root:          scaled,
		Dims:          cfg.Dims,
		Structure:     cfg.Structure,
		Schema:        schema,
		Driver:        cfg.Driver,
		Logger:        cfg.Logger,
		HighWaterMark: cfg.HighWaterMark,
		LowWaterMark:  cfg.LowWaterMark,
	})
	if err != nil {
		return nil, errors.Wrap(err, "constructing registry")
	}

	p, err := pool.New(ctx, cfg.Threads)
	if err != nil {
		return nil, errors.Wrap(err, "constructing worker pool")
	}

	b := &Builder{
		schema:         schema,
		originalBounds: cfg.Bbox,
		bounds:         scaled,
		dims:           cfg.Dims,
		st:             cfg.Structure,
		driver:         cfg.Driver,
		logger:         cfg.Logger,
		reg:            reg,
		pool:           p,
		threads:        cfg.Threads,
	}
	if err := b.pinBase(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Resume reconstructs a Builder from a previously saved Metadata document.
func Resume(ctx context.Context, cfg ResumeConfig) (*Builder, error) {
	data, err := cfg.Driver.Get(ctx, MetaKey)
	if err != nil {
		return nil, errors.Wrap(err, "reading metadata")
	}
	meta, err := UnmarshalMetadata(data)
	if err != nil {
		return nil, err
	}

	schema, err := point.NewSchema(meta.Schema)
	if err != nil {
		return nil, errors.Wrap(err, "rebuilding schema from metadata")
	}

	reg, err := registry.New(registry.Config{
		Root:          meta.Bounds,
		Dims:          meta.Dims,
		Structure:     meta.Structure,
		Schema:        schema,
		Driver:        cfg.Driver,
		Logger:        cfg.Logger,
		HighWaterMark: cfg.HighWaterMark,
		LowWaterMark:  cfg.LowWaterMark,
	})
	if err != nil {
		return nil, errors.Wrap(err, "constructing registry")
	}

	p, err := pool.New(ctx, cfg.Threads)
	if err != nil {
		return nil, errors.Wrap(err, "constructing worker pool")
	}

	b := &Builder{
		schema:         schema,
		originalBounds: meta.OriginalBounds,
		bounds:         meta.Bounds,
		dims:           meta.Dims,
		st:             meta.Structure,
		driver:         cfg.Driver,
		logger:         cfg.Logger,
		reg:            reg,
		pool:           p,
		threads:        cfg.Threads,
		origins:        append([]string(nil), meta.Origins...),
		numPoints:      meta.NumPoints,
		numDeduped:     meta.NumDeduped,
		numTossed:      meta.NumTossed,
	}
	if err := b.pinBase(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// pinBase acquires the tree's single base chunk and never releases it, since the base
// chunk is resident for the whole run regardless of eviction pressure (spec.md §4.4).
func (b *Builder) pinBase(ctx context.Context) error {
	b.baseClipper = b.reg.NewClipper()
	_, err := b.reg.Acquire(ctx, treekey.Dxyz{}, b.baseClipper)
	if err != nil {
		return errors.Wrap(err, "materializing base chunk")
	}
	return nil
}

// Close stops the registry's background eviction worker. Call after a final Save.
func (b *Builder) Close() {
	b.reg.Close()
}

// Schema returns the build's point schema, including the appended OriginId dimension.
func (b *Builder) Schema() *point.Schema { return b.schema }

// Bounds returns the scaled-cubic bounds descent runs against.
func (b *Builder) Bounds() geo.Bounds { return b.bounds }

// OriginalBounds returns the bounds as configured, before cubic scaling.
func (b *Builder) OriginalBounds() geo.Bounds { return b.originalBounds }

// Structure returns the build's tier boundaries.
func (b *Builder) Structure() structure.Structure { return b.st }

// NumPoints reports the count of points successfully inserted so far.
func (b *Builder) NumPoints() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.numPoints
}

// NumTossed reports the count of points discarded (out-of-bounds or overflow
// exhaustion) so far.
func (b *Builder) NumTossed() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.numTossed
}

// NumDeduped reports the count of exact-coordinate duplicates discarded so far.
func (b *Builder) NumDeduped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.numDeduped
}

// Origins returns the input file paths inserted so far, in insertion order.
func (b *Builder) Origins() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.origins...)
}

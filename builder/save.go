package builder

import (
	"context"

	"github.com/pkg/errors"
)

// Join awaits every submitted Insert job's completion without flushing anything to
// storage (spec.md §4.5: "join() awaits the pool drain; does not flush").
func (b *Builder) Join() error {
	return b.pool.Join()
}

// Save drains the worker pool, flushes every dirty resident chunk to the driver, and
// atomically rewrites the metadata document. It is safe to call repeatedly (e.g. every
// tuning.snapshot input files) to make a build resumable partway through.
func (b *Builder) Save(ctx context.Context) error {
	if err := b.Join(); err != nil {
		return errors.Wrap(err, "draining worker pool")
	}
	if err := b.reg.FlushAll(ctx); err != nil {
		return errors.Wrap(err, "flushing resident chunks")
	}
	return b.saveMetadata(ctx)
}

func (b *Builder) saveMetadata(ctx context.Context) error {
	b.mu.Lock()
	meta := Metadata{
		Schema:         b.schema.Dims,
		OriginalBounds: b.originalBounds,
		Bounds:         b.bounds,
		Dims:           b.dims,
		Structure:      b.st,
		Origins:        append([]string(nil), b.origins...),
		NumPoints:      b.numPoints,
		NumDeduped:     b.numDeduped,
		NumTossed:      b.numTossed,
	}
	b.mu.Unlock()

	data, err := meta.Marshal()
	if err != nil {
		return err
	}
	if err := b.driver.Put(ctx, MetaKey, data); err != nil {
		return errors.Wrap(err, "writing metadata")
	}
	return nil
}

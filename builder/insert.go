package builder

import (
	"context"

	"github.com/pkg/errors"

	"github.com/geospine/entwine/chunk"
	"github.com/geospine/entwine/metrics"
	"github.com/geospine/entwine/point"
	"github.com/geospine/entwine/registry"
	"github.com/geospine/entwine/source"
	"github.com/geospine/entwine/treekey"

	"github.com/golang/geo/r3"
)

// Insert assigns path a fresh origin ID and submits a job that streams its points into
// the tree. It does not block on the file finishing: use Join or Save to wait for
// submitted work to drain (spec.md §4.5).
//
// A source-unreadable file — one that cannot be opened or decoded — is logged and
// skipped rather than failing the build (spec.md §7): Insert itself never returns an
// error for that condition, and neither does the submitted job, so one bad file never
// aborts the files after it or poisons the pool's shared error state for later
// Insert calls.
func (b *Builder) Insert(ctx context.Context, path string) error {
	reader, err := source.OpenReader(path)
	if err != nil {
		b.skipFile(path, errors.Wrapf(err, "opening %s", path))
		return nil
	}

	b.mu.Lock()
	origin := uint64(len(b.origins))
	b.origins = append(b.origins, path)
	b.mu.Unlock()

	return b.pool.Submit(func(ctx context.Context) error {
		defer reader.Close()
		clipper := b.reg.NewClipper()
		defer clipper.ReleaseAll()

		for {
			vals, done, err := reader.Next()
			if err != nil {
				b.skipFile(path, errors.Wrapf(err, "reading %s", path))
				return nil
			}
			if done {
				return nil
			}

			row, err := b.schema.Pack(vals)
			if err != nil {
				b.skipFile(path, errors.Wrapf(err, "packing point from %s", path))
				return nil
			}
			if err := b.schema.SetOriginID(row, origin); err != nil {
				return err
			}
			p, err := b.schema.Vector(row)
			if err != nil {
				return err
			}

			if err := b.insertOne(ctx, row, p, clipper); err != nil {
				return errors.Wrapf(err, "inserting point from %s", path)
			}
		}
	})
}

// skipFile logs and counts an input file abandoned mid-read because it could not be
// opened or decoded, per spec.md §7's source-unreadable handling.
func (b *Builder) skipFile(path string, err error) {
	b.logger.Warnw("skipping unreadable input file", "path", path, "error", err)
	metrics.FilesSkipped.Inc()
}

// insertOne descends row/p through the tree, acquiring chunks from the registry one
// tier at a time, until it lands (Inserted/Deduped) or is fatally lost
// (Overflowed, or an out-of-bounds coordinate; spec.md §7).
func (b *Builder) insertOne(ctx context.Context, row point.Row, p r3.Vector, clipper *registry.Clipper) error {
	if !b.bounds.Contains(p) {
		b.toss(metrics.TossOutOfBounds)
		return nil
	}

	key := treekey.NewChunkKey(b.bounds, b.dims, b.st)
	for {
		if !b.st.InRange(key.Depth) {
			b.toss(metrics.TossOverflowExhaustion)
			return nil
		}

		dxyz := key.Dxyz()
		c, err := b.reg.Acquire(ctx, dxyz, clipper)
		if err != nil {
			return err
		}

		res, err := c.Insert(row, p, key)
		if err != nil {
			return err
		}

		switch res.Outcome {
		case chunk.Inserted:
			b.mu.Lock()
			b.numPoints++
			b.mu.Unlock()
			metrics.PointsInserted.Inc()
			return nil
		case chunk.Deduped:
			b.mu.Lock()
			b.numDeduped++
			b.mu.Unlock()
			metrics.PointsDeduped.Inc()
			return nil
		case chunk.Overflowed:
			b.toss(metrics.TossOverflowExhaustion)
			b.logger.Warnw("tail chunk overflowed, point dropped", "key", dxyz.String())
			return nil
		case chunk.Descend:
			row, p, key = res.Row, res.Point, res.Next
		default:
			return errors.Errorf("builder: unknown insert outcome %d", res.Outcome)
		}
	}
}

func (b *Builder) toss(reason metrics.TossReason) {
	b.mu.Lock()
	b.numTossed++
	b.mu.Unlock()
	metrics.PointsTossed.WithLabelValues(string(reason)).Inc()
}

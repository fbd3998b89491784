// Package pool runs one job per input file across a fixed number of workers, a
// bounded, joinable job queue (spec.md §4.5, §5).
package pool

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Job is one unit of work submitted to the pool: typically "stream this input file's
// points into the tree." Jobs run one at a time per worker; a worker never begins a
// second job until its current one returns. A job shares its errgroup with every other
// job the pool ever runs, so an error a job returns cancels the pool's context and
// prevents every future Submit from acquiring a worker — a job should swallow (log and
// return nil for) anything recoverable at the single-input granularity, like a
// source-unreadable or undecodable file, and reserve a returned error for a failure
// that should legitimately stop the whole build (spec.md §7).
type Job func(ctx context.Context) error

// Pool runs up to n jobs concurrently and reports the first error any of them return.
type Pool struct {
	ctx  context.Context
	grp  *errgroup.Group
	sema *semaphore.Weighted
	n    int64
}

// New returns a Pool bounded to n concurrent workers. n must be positive.
func New(ctx context.Context, n int) (*Pool, error) {
	if n <= 0 {
		return nil, errors.Errorf("pool: thread count must be positive, got %d", n)
	}
	grp, gctx := errgroup.WithContext(ctx)
	return &Pool{
		ctx:  gctx,
		grp:  grp,
		sema: semaphore.NewWeighted(int64(n)),
		n:    int64(n),
	}, nil
}

// Submit schedules job to run on the next available worker. Submit itself does not
// block past acquiring a worker slot; the job's completion is observed via Join.
func (p *Pool) Submit(job Job) error {
	if err := p.sema.Acquire(p.ctx, 1); err != nil {
		return err
	}
	p.grp.Go(func() error {
		defer p.sema.Release(1)
		return job(p.ctx)
	})
	return nil
}

// Join awaits every submitted job's completion and returns the first error
// encountered, if any (spec.md §4.5: "join() awaits the pool drain; does not flush").
func (p *Pool) Join() error {
	return p.grp.Wait()
}

// Context is the pool's shared context, canceled as soon as any job returns an error.
func (p *Pool) Context() context.Context {
	return p.ctx
}

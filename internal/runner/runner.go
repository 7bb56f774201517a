// Package runner orchestrates a verification run: it feeds chunks to a worker
// pool, merges the workers' private accumulator sets, and checkpoints the
// merged state on a wall-clock cadence so interrupted runs resume where they
// left off.
package runner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lox/gridverify/internal/checkpoint"
	"github.com/lox/gridverify/internal/metrics"
	"github.com/lox/gridverify/internal/router"
	"github.com/lox/gridverify/internal/verify"
)

// Source yields gridded chunks one at a time. Next returns (nil, nil) when the
// source is exhausted.
type Source interface {
	Next() (*router.Chunk, error)
}

type Runner struct {
	router   *router.Router
	ckpt     *checkpoint.Store
	clock    clockwork.Clock
	workers  int
	interval time.Duration
}

// Options configures a Runner. Checkpoints may be nil for one-shot runs that
// never need resume.
type Options struct {
	Checkpoints        *checkpoint.Store
	Clock              clockwork.Clock
	Workers            int
	CheckpointInterval time.Duration
}

func New(rt *router.Router, opts Options) *Runner {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = 5 * time.Minute
	}
	return &Runner{
		router:   rt,
		ckpt:     opts.Checkpoints,
		clock:    opts.Clock,
		workers:  opts.Workers,
		interval: opts.CheckpointInterval,
	}
}

// Result is the final merged state of a run.
type Result struct {
	Set             verify.Set
	Accepted        int
	Rejected        int
	ChunksProcessed int
	ChunksSkipped   int
	Resumed         bool
}

// workerState is one worker's private accumulator set plus its tallies. No
// accumulator is ever shared between live workers; sharing happens only by
// merge after quiesce.
type workerState struct {
	set      verify.Set
	accepted int
	rejected int
	err      error
}

// chunksPerWorkerRound bounds how many chunks a round dispatches per worker
// between checkpoint opportunities.
const chunksPerWorkerRound = 8

// Run drains the source through the worker pool. Processing happens in
// rounds: dispatch a bounded batch, quiesce, merge worker sets into the
// master set, then checkpoint if the interval has elapsed. Chunks recorded as
// completed in a restored checkpoint are skipped.
func (r *Runner) Run(ctx context.Context, src Source) (*Result, error) {
	res := &Result{Set: verify.Set{}}
	completed := make(map[string]struct{})

	if r.ckpt != nil {
		sn, err := r.ckpt.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		if sn != nil {
			res.Set, completed = sn.Restore()
			res.Resumed = true
			log.Printf("runner: resuming from checkpoint seq %d: %d accumulators, %d chunks done",
				sn.Sequence, len(res.Set), len(completed))
		}
	}

	lastCheckpoint := r.clock.Now()
	roundSize := r.workers * chunksPerWorkerRound

	for {
		batch, err := r.nextBatch(src, completed, roundSize, res)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		states, err := r.processRound(ctx, batch)
		if err != nil {
			return nil, err
		}

		sets := make([]verify.Set, 0, len(states)+1)
		sets = append(sets, res.Set)
		for _, ws := range states {
			sets = append(sets, ws.set)
			res.Accepted += ws.accepted
			res.Rejected += ws.rejected
		}
		merged, err := verify.MergeSets(sets...)
		if err != nil {
			return nil, fmt.Errorf("merge worker sets: %w", err)
		}
		res.Set = merged

		for _, c := range batch {
			completed[c.ID] = struct{}{}
		}
		res.ChunksProcessed += len(batch)

		if r.ckpt != nil && r.clock.Since(lastCheckpoint) >= r.interval {
			if err := r.saveCheckpoint(ctx, res.Set, completed); err != nil {
				return nil, err
			}
			lastCheckpoint = r.clock.Now()
		}
	}

	if r.ckpt != nil && res.ChunksProcessed > 0 {
		if err := r.saveCheckpoint(ctx, res.Set, completed); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *Runner) nextBatch(src Source, completed map[string]struct{}, max int, res *Result) ([]*router.Chunk, error) {
	var batch []*router.Chunk
	for len(batch) < max {
		c, err := src.Next()
		if err != nil {
			return nil, fmt.Errorf("read chunk: %w", err)
		}
		if c == nil {
			break
		}
		if _, done := completed[c.ID]; done {
			res.ChunksSkipped++
			continue
		}
		batch = append(batch, c)
	}
	return batch, nil
}

// processRound fans the batch across the worker pool and waits for quiesce.
func (r *Runner) processRound(ctx context.Context, batch []*router.Chunk) ([]*workerState, error) {
	feed := make(chan *router.Chunk)
	states := make([]*workerState, r.workers)

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		ws := &workerState{set: verify.Set{}}
		states[w] = ws
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range feed {
				// Keep draining after an error so the dispatcher never blocks.
				if ws.err != nil {
					continue
				}
				a, rej, err := r.router.Route(c, ws.set)
				if err != nil {
					ws.err = fmt.Errorf("chunk %s: %w", c.ID, err)
					continue
				}
				ws.accepted += a
				ws.rejected += rej
				metrics.ChunksProcessed.WithLabelValues(c.Variable).Inc()
				metrics.SamplesAccepted.WithLabelValues(c.Variable).Add(float64(a))
				metrics.SamplesRejected.WithLabelValues(c.Variable).Add(float64(rej))
			}
		}()
	}

dispatch:
	for _, c := range batch {
		select {
		case feed <- c:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(feed)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, ws := range states {
		if ws.err != nil {
			return nil, ws.err
		}
	}
	return states, nil
}

func (r *Runner) saveCheckpoint(ctx context.Context, set verify.Set, completed map[string]struct{}) error {
	start := time.Now()
	seq, err := r.ckpt.Save(ctx, set, completed)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	metrics.CheckpointSaves.Inc()
	metrics.CheckpointDuration.Observe(time.Since(start).Seconds())
	log.Printf("runner: checkpoint seq %d: %d accumulators, %d chunks done", seq, len(set), len(completed))
	return nil
}

// RunStations folds station chunks into the result set. Station batches are
// small relative to gridded chunks, so they are processed serially after the
// gridded pass.
func (r *Runner) RunStations(ctx context.Context, res *Result, chunks []router.StationChunk) error {
	for i := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		a, rej, err := r.router.RouteStations(&chunks[i], res.Set)
		if err != nil {
			return fmt.Errorf("station chunk %s: %w", chunks[i].ID, err)
		}
		res.Accepted += a
		res.Rejected += rej
		res.ChunksProcessed++
	}
	return nil
}

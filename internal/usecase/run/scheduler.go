package run

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/evidencelab/heatgrid/internal/metrics"
	"github.com/evidencelab/heatgrid/internal/usecase/aggregate"
	"github.com/evidencelab/heatgrid/internal/usecase/query"
)

// Scheduling defaults, tuned to stay within backend rate limits.
const (
	DefaultBatchSize        = 4
	DefaultBatchInterval    = 500 * time.Millisecond
	DefaultCutoffPercentile = 0.20
)

// Report summarizes one completed (or aborted) run.
type Report struct {
	Generation uint64
	Total      int
	Completed  int
	Failed     int
	Skipped    int
}

// Warning returns the non-fatal, once-per-run warning text, or "" when
// every cell succeeded.
func (r Report) Warning() string {
	if r.Failed == 0 {
		return ""
	}
	return fmt.Sprintf("%d of %d cell requests failed; their cells are shown empty", r.Failed, r.Total)
}

// Scheduler executes the full cartesian product of cell requests under
// a concurrency cap with inter-batch pacing. Individual failures never
// abort the run; they become empty cells plus a failure count.
type Scheduler struct {
	searcher         Searcher
	batchSize        int
	batchInterval    time.Duration
	cutoffPercentile float64
	logger           *zap.Logger
}

// New creates a batch scheduler.
func New(searcher Searcher, batchSize int, batchInterval time.Duration, logger *zap.Logger) *Scheduler {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchInterval <= 0 {
		batchInterval = DefaultBatchInterval
	}
	return &Scheduler{
		searcher:         searcher,
		batchSize:        batchSize,
		batchInterval:    batchInterval,
		cutoffPercentile: DefaultCutoffPercentile,
		logger:           logger,
	}
}

// WithCutoffPercentile configures the automatic cutoff estimate (the
// kept top fraction of the observed score range).
func (s *Scheduler) WithCutoffPercentile(p float64) *Scheduler {
	if p > 0 && p < 1 {
		s.cutoffPercentile = p
	}
	return s
}

// ErrSuperseded reports that a newer run claimed the aggregator before
// or while this one executed; none of this run's writes survive.
var ErrSuperseded = errors.New("run superseded by a newer run")

// Execute runs all cell requests for one grid under the generation
// claimed by the caller (aggregate.Grid.BeginRun). Claiming the
// generation before Execute pins the supersession order: whichever run
// claimed last owns the cells, no matter how its goroutine is
// scheduled. Each completed cell streams into the aggregator, and a
// fresh automatic cutoff is derived once the run finishes, unless the
// user touched the cutoff after the claim.
//
// A returned error means the run was cut short (context canceled) or
// superseded; cells written by the still-live generation remain usable.
func (s *Scheduler) Execute(
	ctx context.Context, cfg CutoffState, g *aggregate.Grid, gen uint64, reqs []query.CellRequest,
) (Report, error) {
	defer g.FinishRun(gen)

	metrics.RunCells.Observe(float64(len(reqs)))

	report := Report{Generation: gen, Total: len(reqs)}
	var completed, failed, skipped atomic.Int64

	// Burst 1: the first batch starts immediately, each following batch
	// waits out the pacing interval.
	pace := rate.NewLimiter(rate.Every(s.batchInterval), 1)

	for start := 0; start < len(reqs); start += s.batchSize {
		if g.Generation() != gen {
			report.Completed = int(completed.Load())
			report.Failed = int(failed.Load())
			report.Skipped = int(skipped.Load())
			metrics.RunsTotal.WithLabelValues("superseded").Inc()
			return report, ErrSuperseded
		}
		if err := pace.Wait(ctx); err != nil {
			report.Completed = int(completed.Load())
			report.Failed = int(failed.Load())
			report.Skipped = int(skipped.Load())
			metrics.RunsTotal.WithLabelValues("canceled").Inc()
			return report, fmt.Errorf("run canceled: %w", err)
		}

		end := min(start+s.batchSize, len(reqs))

		eg := &errgroup.Group{}
		eg.SetLimit(s.batchSize)
		for _, req := range reqs[start:end] {
			if req.Skip {
				// Blank free-text row: recorded as empty, no round-trip.
				if g.StoreCell(gen, req.Key, nil) {
					skipped.Add(1)
					metrics.CellRequestsTotal.WithLabelValues("skipped").Inc()
				}
				continue
			}

			eg.Go(func() error {
				started := time.Now()
				recs, err := s.searcher.Search(ctx, req.Params)
				metrics.CellRequestDuration.Observe(time.Since(started).Seconds())
				if err != nil {
					if g.FailCell(gen, req.Key) {
						failed.Add(1)
						metrics.CellRequestsTotal.WithLabelValues("failed").Inc()
					}
					s.logger.Warn("cell request failed",
						zap.String("row", req.Key.Row),
						zap.String("col", req.Key.Col),
						zap.Error(err),
					)
					return nil
				}
				if g.StoreCell(gen, req.Key, recs) {
					completed.Add(1)
					metrics.CellRequestsTotal.WithLabelValues("ok").Inc()
				}
				return nil
			})
		}
		_ = eg.Wait()
	}

	report.Completed = int(completed.Load())
	report.Failed = int(failed.Load())
	report.Skipped = int(skipped.Load())

	// One automatic cutoff estimate per run, only while this run is
	// still the live one and the cutoff is untouched.
	if g.Generation() == gen && !cfg.CutoffTouched() {
		if b := g.Bounds(); b.HasScores {
			cfg.ResetCutoff(aggregate.AutoCutoff(b, s.cutoffPercentile))
		}
	}

	if report.Failed > 0 {
		metrics.RunsTotal.WithLabelValues("partial").Inc()
		s.logger.Warn("run completed with failures",
			zap.Int("failed", report.Failed),
			zap.Int("total", report.Total),
		)
	} else {
		metrics.RunsTotal.WithLabelValues("ok").Inc()
	}
	return report, nil
}

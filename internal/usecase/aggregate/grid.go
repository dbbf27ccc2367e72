package aggregate

import (
	"slices"
	"sync"

	"github.com/evidencelab/heatgrid/internal/domain/grid"
	"github.com/evidencelab/heatgrid/internal/domain/grid/metric"
	"github.com/evidencelab/heatgrid/internal/domain/record"
)

// Grid owns the raw per-cell result sets of one grid session. It is
// the only writer-facing store of cell data: the batch scheduler writes
// cells, everything else derives read-only views.
//
// Every run is tagged with a generation token. Writes carrying a stale
// generation are discarded, so late responses from a superseded run can
// never overwrite fresh cells.
type Grid struct {
	mu         sync.Mutex
	generation uint64
	running    bool
	cells      map[grid.CellKey][]record.Record
	failed     map[grid.CellKey]bool
	failures   int
}

// NewGrid creates an empty aggregator.
func NewGrid() *Grid {
	return &Grid{
		cells:  map[grid.CellKey][]record.Record{},
		failed: map[grid.CellKey]bool{},
	}
}

// BeginRun clears all cells and the failure counter, bumps the
// generation, and marks the run in flight. Returns the new generation.
func (g *Grid) BeginRun() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.generation++
	g.running = true
	g.cells = map[grid.CellKey][]record.Record{}
	g.failed = map[grid.CellKey]bool{}
	g.failures = 0
	return g.generation
}

// FinishRun marks the run complete if the generation is still current.
func (g *Grid) FinishRun(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen == g.generation {
		g.running = false
	}
}

// StoreCell records the raw results for one cell. Returns false when
// the write belonged to a superseded generation and was discarded.
func (g *Grid) StoreCell(gen uint64, key grid.CellKey, recs []record.Record) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.generation {
		return false
	}
	g.cells[key] = recs
	return true
}

// FailCell records a failed cell request as an empty result and
// increments the failure counter.
func (g *Grid) FailCell(gen uint64, key grid.CellKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.generation {
		return false
	}
	g.cells[key] = nil
	g.failed[key] = true
	g.failures++
	return true
}

// Clear invalidates all cells outside a run (axis or filter change).
// The generation bump also retires any still-in-flight writes.
func (g *Grid) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.generation++
	g.running = false
	g.cells = map[grid.CellKey][]record.Record{}
	g.failed = map[grid.CellKey]bool{}
	g.failures = 0
}

// Generation returns the current generation token.
func (g *Grid) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generation
}

// Running reports whether a run is in flight.
func (g *Grid) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Failures returns the failed-cell count of the current run.
func (g *Grid) Failures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures
}

// Bounds computes the observed score range over every loaded cell.
func (g *Grid) Bounds() record.ScoreBounds {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.boundsLocked()
}

func (g *Grid) boundsLocked() record.ScoreBounds {
	b := record.DefaultBounds()
	for _, recs := range g.cells {
		for i := range recs {
			b = b.Observe(recs[i].Score())
		}
	}
	return b
}

// CellRecords returns the cutoff-filtered records of one cell. The
// second return is false when the cell was never populated.
func (g *Grid) CellRecords(key grid.CellKey, cutoff float64) ([]record.Record, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	recs, ok := g.cells[key]
	if !ok {
		return nil, false
	}
	return ApplyCutoff(recs, cutoff), true
}

// CellFailed reports whether the cell's request failed in the current run.
func (g *Grid) CellFailed(key grid.CellKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failed[key]
}

// Snapshot derives the display state under the given cutoff and metric:
// per-cell counts, score bounds, and the maximum cell count used for
// relative intensity scaling. Counts are recomputed from raw data on
// every call, so cutoff and metric changes never require a re-query.
func (g *Grid) Snapshot(cutoff float64, m metric.Mode) grid.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := grid.Snapshot{
		Cells:      make(map[grid.CellKey]grid.CellResult, len(g.cells)),
		Bounds:     g.boundsLocked(),
		Cutoff:     cutoff,
		Failures:   g.failures,
		Running:    g.running,
		Generation: g.generation,
	}
	for key, recs := range g.cells {
		filtered := ApplyCutoff(recs, cutoff)
		count := Count(filtered, m)
		snap.Cells[key] = grid.CellResult{
			Key:    key,
			Count:  count,
			Items:  len(recs),
			Failed: g.failed[key],
		}
		if count > snap.MaxCellCount {
			snap.MaxCellCount = count
		}
	}
	return snap
}

// ApplyCutoff keeps records whose score meets the cutoff. Records with
// score 0 are filter-only matches with no ranking signal and are always
// kept. The orientation is ascending: raising the cutoff is strictly
// more selective and never adds a record back.
func ApplyCutoff(recs []record.Record, cutoff float64) []record.Record {
	out := make([]record.Record, 0, len(recs))
	for _, r := range recs {
		if r.Score() == 0 || r.Score() >= cutoff {
			out = append(out, r)
		}
	}
	return slices.Clip(out)
}

// Count computes the cell metric over already-filtered records.
func Count(recs []record.Record, m metric.Mode) int {
	if m == metric.Items {
		return len(recs)
	}
	return countDocuments(recs)
}

// countDocuments counts distinct (title, year, organization) keys.
// Records blank on all three are excluded entirely rather than
// collapsed into a single shared bucket.
func countDocuments(recs []record.Record) int {
	seen := make(map[record.DocKey]struct{}, len(recs))
	for i := range recs {
		key := recs[i].DocKey()
		if key.IsBlank() {
			continue
		}
		seen[key] = struct{}{}
	}
	return len(seen)
}

// AutoCutoff derives the automatic cutoff estimate: the value keeping
// the top fraction of the observed score range.
func AutoCutoff(b record.ScoreBounds, topFraction float64) float64 {
	if !b.HasScores {
		return grid.DefaultCutoff
	}
	return b.Max - topFraction*(b.Max-b.Min)
}

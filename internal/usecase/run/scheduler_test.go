package run

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/evidencelab/heatgrid/internal/domain/grid"
	"github.com/evidencelab/heatgrid/internal/domain/record"
	"github.com/evidencelab/heatgrid/internal/domain/search"
	"github.com/evidencelab/heatgrid/internal/usecase/aggregate"
	"github.com/evidencelab/heatgrid/internal/usecase/query"
)

// --- Mocks ---

type mockSearcher struct {
	mu      sync.Mutex
	calls   int
	queries []string

	inFlight      atomic.Int64
	maxInFlight   atomic.Int64
	failQueries   map[string]bool
	perCallHook   func(p search.Params)
	results       []record.Record
	blockDuration time.Duration
}

func (m *mockSearcher) Search(_ context.Context, p search.Params) ([]record.Record, error) {
	cur := m.inFlight.Add(1)
	for {
		max := m.maxInFlight.Load()
		if cur <= max || m.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	defer m.inFlight.Add(-1)

	if m.blockDuration > 0 {
		time.Sleep(m.blockDuration)
	}

	m.mu.Lock()
	m.calls++
	m.queries = append(m.queries, p.Query())
	hook := m.perCallHook
	m.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	if m.failQueries[p.Query()] {
		return nil, errors.New("backend down")
	}
	return m.results, nil
}

func testRequests(t *testing.T, cfg *grid.Configuration, rows, cols []string) []query.CellRequest {
	t.Helper()
	return query.New().BuildAll(cfg, rows, cols)
}

// beginRun claims a generation the way a caller does before Execute:
// the manual-cutoff flag re-arms and the cells clear.
func beginRun(cfg *grid.Configuration, g *aggregate.Grid) uint64 {
	cfg.ClearCutoffTouched()
	return g.BeginRun()
}

// --- Tests ---

func TestExecuteStoresEveryCell(t *testing.T) {
	cfg := grid.NewConfiguration("document_type", "published_year")
	cfg.SetQuery("climate")
	searcher := &mockSearcher{results: []record.Record{
		record.New("a", "d", 0.8, "T", "O", "2022", ""),
	}}
	g := aggregate.NewGrid()

	sched := New(searcher, 2, time.Millisecond, zap.NewNop())
	report, err := sched.Execute(context.Background(), cfg, g, beginRun(cfg, g),
		testRequests(t, cfg, []string{"Report", "Brief"}, []string{"2022", "2023"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Total != 4 || report.Completed != 4 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	if searcher.calls != 4 {
		t.Errorf("backend calls = %d, want 4", searcher.calls)
	}
	for _, key := range []grid.CellKey{
		{Row: "Report", Col: "2022"}, {Row: "Report", Col: "2023"},
		{Row: "Brief", Col: "2022"}, {Row: "Brief", Col: "2023"},
	} {
		if recs, ok := g.CellRecords(key, 0); !ok || len(recs) != 1 {
			t.Errorf("cell %+v not populated", key)
		}
	}
	if report.Warning() != "" {
		t.Errorf("unexpected warning %q", report.Warning())
	}
}

func TestExecuteConcurrencyCap(t *testing.T) {
	cfg := grid.NewConfiguration("document_type", "published_year")
	cfg.SetQuery("q")
	searcher := &mockSearcher{blockDuration: 10 * time.Millisecond}
	g := aggregate.NewGrid()

	rows := []string{"a", "b", "c"}
	cols := []string{"1", "2", "3"}
	sched := New(searcher, 2, time.Millisecond, zap.NewNop())
	if _, err := sched.Execute(context.Background(), cfg, g, beginRun(cfg, g),
		testRequests(t, cfg, rows, cols)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if max := searcher.maxInFlight.Load(); max > 2 {
		t.Errorf("max in-flight = %d, want <= batch size 2", max)
	}
}

func TestExecuteFailureDoesNotAbortRun(t *testing.T) {
	cfg := grid.NewConfiguration(grid.FieldQueries, "organization")
	cfg.SetRowQueries([]string{"climate finance", "food security"})
	searcher := &mockSearcher{
		failQueries: map[string]bool{"food security": true},
		results:     []record.Record{record.New("a", "d", 0.6, "T", "O", "2022", "")},
	}
	g := aggregate.NewGrid()

	sched := New(searcher, 4, time.Millisecond, zap.NewNop())
	report, err := sched.Execute(context.Background(), cfg, g, beginRun(cfg, g),
		testRequests(t, cfg, cfg.RowQueries(), []string{"UNDP", "WFP"}))
	if err != nil {
		t.Fatalf("per-cell failures must not fail the run: %v", err)
	}

	if report.Failed != 2 || report.Completed != 2 {
		t.Errorf("report = %+v, want 2 failed and 2 completed", report)
	}
	if !strings.Contains(report.Warning(), "2 of 4") {
		t.Errorf("warning = %q", report.Warning())
	}

	// Failed cells are recorded as empty and flagged; good cells survive.
	failedKey := grid.CellKey{Row: "row-1", Col: "UNDP"}
	if recs, ok := g.CellRecords(failedKey, 0); !ok || len(recs) != 0 {
		t.Errorf("failed cell should exist with zero records, got ok=%v len=%d", ok, len(recs))
	}
	if !g.CellFailed(failedKey) {
		t.Error("failed cell should be flagged")
	}
	if recs, _ := g.CellRecords(grid.CellKey{Row: "row-0", Col: "WFP"}, 0); len(recs) != 1 {
		t.Error("successful cell lost its records")
	}
}

func TestExecuteBlankQueryRowNeverHitsBackend(t *testing.T) {
	cfg := grid.NewConfiguration(grid.FieldQueries, "organization")
	cfg.SetRowQueries([]string{"climate", ""})
	searcher := &mockSearcher{results: []record.Record{record.New("a", "d", 0.5, "T", "O", "2022", "")}}
	g := aggregate.NewGrid()

	sched := New(searcher, 4, time.Millisecond, zap.NewNop())
	report, err := sched.Execute(context.Background(), cfg, g, beginRun(cfg, g),
		testRequests(t, cfg, cfg.RowQueries(), []string{"UNDP"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if searcher.calls != 1 {
		t.Errorf("backend calls = %d, want only the non-blank row", searcher.calls)
	}
	if report.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", report.Skipped)
	}
	if recs, ok := g.CellRecords(grid.CellKey{Row: "row-1", Col: "UNDP"}, 0); !ok || len(recs) != 0 {
		t.Error("blank row cell should resolve to an empty result immediately")
	}
}

func TestExecuteAutoCutoff(t *testing.T) {
	cfg := grid.NewConfiguration("document_type", "published_year")
	cfg.SetQuery("q")
	cfg.SetCutoff(0.42) // pre-run manual value; claiming a new run re-arms the estimate
	searcher := &mockSearcher{results: []record.Record{
		record.New("a", "d", 0.5, "T", "O", "2022", ""),
		record.New("b", "d", 1.0, "T2", "O", "2022", ""),
	}}
	g := aggregate.NewGrid()

	sched := New(searcher, 2, time.Millisecond, zap.NewNop())
	if _, err := sched.Execute(context.Background(), cfg, g, beginRun(cfg, g),
		testRequests(t, cfg, []string{"Report"}, []string{"2022"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := 1.0 - 0.2*(1.0-0.5)
	if cfg.Cutoff() != want {
		t.Errorf("cutoff = %v, want automatic estimate %v", cfg.Cutoff(), want)
	}
	if cfg.CutoffTouched() {
		t.Error("automatic estimate must not mark the cutoff as touched")
	}
}

func TestExecuteAutoCutoffSkippedWhenTouchedMidRun(t *testing.T) {
	cfg := grid.NewConfiguration("document_type", "published_year")
	cfg.SetQuery("q")
	searcher := &mockSearcher{results: []record.Record{record.New("a", "d", 0.9, "T", "O", "2022", "")}}
	searcher.perCallHook = func(search.Params) { cfg.SetCutoff(0.77) }
	g := aggregate.NewGrid()

	sched := New(searcher, 1, time.Millisecond, zap.NewNop())
	if _, err := sched.Execute(context.Background(), cfg, g, beginRun(cfg, g),
		testRequests(t, cfg, []string{"Report"}, []string{"2022"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Cutoff() != 0.77 {
		t.Errorf("cutoff = %v, manual mid-run value must win over the estimate", cfg.Cutoff())
	}
}

func TestExecuteNoScoresLeavesCutoffDisabled(t *testing.T) {
	cfg := grid.NewConfiguration("document_type", "published_year")
	// No shared query: document-level cells, score 0 everywhere.
	searcher := &mockSearcher{results: []record.Record{record.New("a", "d", 0, "T", "O", "2022", "")}}
	g := aggregate.NewGrid()

	sched := New(searcher, 2, time.Millisecond, zap.NewNop())
	if _, err := sched.Execute(context.Background(), cfg, g, beginRun(cfg, g),
		testRequests(t, cfg, []string{"Report", "Brief"}, []string{"2022", "2023"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b := g.Bounds(); b.HasScores {
		t.Error("document-level run must report HasScores=false")
	}
	if cfg.Cutoff() != grid.DefaultCutoff {
		t.Errorf("cutoff = %v, want untouched default", cfg.Cutoff())
	}
}

func TestExecuteCanceledContext(t *testing.T) {
	cfg := grid.NewConfiguration("document_type", "published_year")
	cfg.SetQuery("q")
	searcher := &mockSearcher{results: []record.Record{record.New("a", "d", 0.9, "T", "O", "2022", "")}}
	g := aggregate.NewGrid()

	ctx, cancel := context.WithCancel(context.Background())
	searcher.perCallHook = func(search.Params) { cancel() }

	// Many batches so the cancellation lands before the run drains.
	rows := []string{"a", "b", "c", "d"}
	sched := New(searcher, 1, 5*time.Millisecond, zap.NewNop())
	_, err := sched.Execute(ctx, cfg, g, beginRun(cfg, g), testRequests(t, cfg, rows, []string{"1"}))
	if err == nil {
		t.Fatal("expected a run-level error after context cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}

	// Cells completed before cancellation stay visible.
	if recs, ok := g.CellRecords(grid.CellKey{Row: "a", Col: "1"}, 0); !ok || len(recs) != 1 {
		t.Error("partial data written before cancellation must remain usable")
	}
	if g.Running() {
		t.Error("aborted run must not stay marked as running")
	}
}

func TestExecuteSupersededMidRunDiscardsLateWrites(t *testing.T) {
	cfg := grid.NewConfiguration("document_type", "published_year")
	cfg.SetQuery("q")
	g := aggregate.NewGrid()

	started := make(chan struct{})
	release := make(chan struct{})
	slow := &mockSearcher{results: []record.Record{record.New("old", "d", 0.5, "T", "O", "2022", "")}}
	slow.perCallHook = func(search.Params) { close(started); <-release }

	sched := New(slow, 1, time.Millisecond, zap.NewNop())
	reqs := testRequests(t, cfg, []string{"Report"}, []string{"2022"})
	gen := beginRun(cfg, g)

	done := make(chan struct{})
	var report Report
	go func() {
		defer close(done)
		report, _ = sched.Execute(context.Background(), cfg, g, gen, reqs)
	}()

	// Wait for the slow run to be in flight, then supersede it.
	<-started
	fresh := g.BeginRun()
	close(release)
	<-done

	if _, ok := g.CellRecords(grid.CellKey{Row: "Report", Col: "2022"}, 0); ok {
		t.Error("late write from the superseded run leaked into the fresh generation")
	}
	if report.Completed != 0 {
		t.Errorf("completed = %d, discarded writes must not count", report.Completed)
	}
	if g.Generation() != fresh {
		t.Errorf("generation = %d, want %d", g.Generation(), fresh)
	}
}

func TestExecuteSupersededBeforeStartLeavesLiveGeneration(t *testing.T) {
	cfg := grid.NewConfiguration("document_type", "published_year")
	cfg.SetQuery("q")
	g := aggregate.NewGrid()
	searcher := &mockSearcher{results: []record.Record{record.New("old", "d", 0.5, "T", "O", "2022", "")}}

	sched := New(searcher, 2, time.Millisecond, zap.NewNop())
	reqs := testRequests(t, cfg, []string{"Report"}, []string{"2022"})

	// The first run claims its generation but a second run claims the
	// aggregator before the first gets to execute.
	stale := beginRun(cfg, g)
	live := g.BeginRun()

	_, err := sched.Execute(context.Background(), cfg, g, stale, reqs)
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", err)
	}
	if searcher.calls != 0 {
		t.Errorf("backend calls = %d, superseded run must not issue requests", searcher.calls)
	}
	if g.Generation() != live {
		t.Errorf("generation = %d, want live run's %d", g.Generation(), live)
	}
	if !g.StoreCell(live, grid.CellKey{Row: "Report", Col: "2022"},
		[]record.Record{record.New("new", "d", 0.9, "T", "O", "2022", "")}) {
		t.Error("live run write was discarded after a stale run executed")
	}
}

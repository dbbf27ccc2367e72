// Package heatgrid drives a heatmap grid session in-process: axis
// resolution from a facet catalog, concurrent per-cell search fan-out,
// score-cutoff filtering with automatic estimation, cell detail views,
// CSV export, and URL round-tripping of the full grid state.
package heatgrid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/evidencelab/heatgrid/internal/debounce"
	"github.com/evidencelab/heatgrid/internal/domain"
	"github.com/evidencelab/heatgrid/internal/domain/grid"
	"github.com/evidencelab/heatgrid/internal/domain/grid/metric"
	"github.com/evidencelab/heatgrid/internal/repository/catalog"
	"github.com/evidencelab/heatgrid/internal/transport/searchapi"
	"github.com/evidencelab/heatgrid/internal/urlstate"
	"github.com/evidencelab/heatgrid/internal/usecase/aggregate"
	"github.com/evidencelab/heatgrid/internal/usecase/detail"
	"github.com/evidencelab/heatgrid/internal/usecase/dimension"
	"github.com/evidencelab/heatgrid/internal/usecase/export"
	"github.com/evidencelab/heatgrid/internal/usecase/query"
	"github.com/evidencelab/heatgrid/internal/usecase/run"
)

// Reserved row dimensions whose values are user-entered rather than
// catalog-derived.
const (
	FieldQueries = grid.FieldQueries
	FieldTitle   = grid.FieldTitle
)

// Metric selects what a cell count measures.
type Metric string

// Supported metrics.
const (
	MetricDocuments Metric = "documents"
	MetricItems     Metric = "items"
)

const defaultURLSyncDelay = 300 * time.Millisecond

// ErrNotFound reports an unknown cell or session.
var ErrNotFound = domain.ErrNotFound

// Controller owns one grid session: its configuration, the raw cell
// results, and the URL synchronization lifecycle. All methods are safe
// for concurrent use; a run executes on the calling goroutine while
// mutators from other goroutines stay responsive.
type Controller struct {
	mu       sync.Mutex
	cfg      *grid.Configuration
	agg      *aggregate.Grid
	cat      grid.Catalog
	narrow   detail.Narrow
	selected *grid.CellKey
	decoded  bool
	onURL    func(url.Values)

	dims      *dimension.Service
	queries   *query.Builder
	details   *detail.Service
	exports   *export.Service
	scheduler *run.Scheduler
	catalogs  *catalog.Repo
	debouncer *debounce.Debouncer

	dataSource string
	logger     *zap.Logger
}

// New creates a grid controller. Either WithBackend or both
// WithSearcher and WithCatalogFetcher must be provided.
func New(opts ...Option) (*Controller, error) {
	cfg := &controllerConfig{
		urlSyncDelay: defaultURLSyncDelay,
		logger:       zap.NewNop(),
	}
	for _, o := range opts {
		o(cfg)
	}

	searcher := cfg.searcher
	fetcher := cfg.fetcher
	if searcher == nil || fetcher == nil {
		if cfg.backendURL == "" {
			return nil, errors.New("heatgrid: backend URL required (use WithBackend)")
		}
		client, err := searchapi.NewClient(searchapi.Config{
			BaseURL: cfg.backendURL,
			Timeout: cfg.backendTimeout,
			Logger:  cfg.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("heatgrid: create backend client: %w", err)
		}
		if searcher == nil {
			searcher = client
		}
		if fetcher == nil {
			fetcher = client
		}
	}

	gridCfg := grid.NewConfiguration(grid.FieldQueries, "")
	ranking := gridCfg.Ranking()
	if cfg.resultsPerCell > 0 {
		ranking.ResultsPerCell = cfg.resultsPerCell
	}
	ranking.DataSource = cfg.dataSource
	gridCfg.SetRanking(ranking)

	c := &Controller{
		cfg:        gridCfg,
		agg:        aggregate.NewGrid(),
		dims:       dimension.New(cfg.maxAxisValues),
		queries:    query.New(),
		details:    detail.New(),
		exports:    export.New(),
		catalogs:   catalog.New(fetcher, nil, 0, cfg.logger),
		debouncer:  debounce.New(cfg.urlSyncDelay),
		dataSource: cfg.dataSource,
		logger:     cfg.logger,
	}
	c.scheduler = run.New(searcher, cfg.batchSize, cfg.batchInterval, cfg.logger).
		WithCutoffPercentile(cfg.cutoffPercentile)
	return c, nil
}

// Close stops pending debounced callbacks.
func (c *Controller) Close() {
	c.debouncer.Stop()
}

// LoadCatalog fetches the facet catalog and repairs axes that the
// catalog cannot serve: an unknown column falls back to the first
// catalog field, an unknown row dimension to free-text queries.
func (c *Controller) LoadCatalog(ctx context.Context) error {
	cat, err := c.catalogs.Catalog(ctx, c.dataSource)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cat = cat
	if !grid.IsPseudoField(c.cfg.RowField()) && !cat.HasField(c.cfg.RowField()) {
		c.cfg.SetRowField(grid.FieldQueries)
	}
	if !cat.HasField(c.cfg.ColField()) {
		if fields := cat.Fields(); len(fields) > 0 {
			c.cfg.SetColField(fields[0].Name())
		}
	}
	return nil
}

// Catalog returns the loaded facet catalog fields.
func (c *Controller) Catalog() []CatalogField {
	c.mu.Lock()
	defer c.mu.Unlock()
	fields := c.cat.Fields()
	out := make([]CatalogField, 0, len(fields))
	for _, f := range fields {
		cf := CatalogField{Name: f.Name(), Label: f.Label()}
		for _, v := range f.Values() {
			cf.Values = append(cf.Values, FieldValue{Value: v.Value, Count: v.Count})
		}
		out = append(out, cf)
	}
	return out
}

// LoadURL overlays a deep-link query string onto the current state and
// opens the URL-encode gate. It returns whether the one-shot run flag
// was set; the flag is consumed here, so a later re-encode or repeated
// load never re-triggers the run.
func (c *Controller) LoadURL(values url.Values) (autoRun bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = urlstate.Decode(values, c.cat, c.cfg)
	c.decoded = true
	c.agg.Clear()
	return c.cfg.ConsumeAutoRun()
}

// ApplyConfiguration replaces the grid state from a fluent build and
// opens the URL-encode gate, the programmatic twin of LoadURL.
func (c *Controller) ApplyConfiguration(b *Builder) (autoRun bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg := b.build()
	ranking := cfg.Ranking()
	ranking.DataSource = c.dataSource
	if ranking.ResultsPerCell <= 0 {
		ranking.ResultsPerCell = c.cfg.Ranking().ResultsPerCell
	}
	cfg.SetRanking(ranking)
	c.cfg = cfg
	c.decoded = true
	c.agg.Clear()
	return c.cfg.ConsumeAutoRun()
}

// URL returns the canonical deep-link query values for the current state.
func (c *Controller) URL() url.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return urlstate.Encode(c.cfg)
}

// OnURLChange registers the debounced URL listener. It fires after
// state mutations once a quiet period passes, never before the first
// LoadURL/ApplyConfiguration, and is deferred past an executing run.
func (c *Controller) OnURLChange(fn func(url.Values)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onURL = fn
}

// scheduleURLSync arms the debounced URL notification. Callers hold c.mu.
func (c *Controller) scheduleURLSync() {
	if !c.decoded || c.onURL == nil {
		return
	}
	c.debouncer.Trigger("url", c.emitURL)
}

func (c *Controller) emitURL() {
	c.mu.Lock()
	if c.agg.Running() {
		// Re-arm: URL churn during a run is suppressed until it settles.
		c.debouncer.Trigger("url", c.emitURL)
		c.mu.Unlock()
		return
	}
	fn := c.onURL
	values := urlstate.Encode(c.cfg)
	c.mu.Unlock()
	if fn != nil {
		fn(values)
	}
}

// PendingRun is a claimed run: its generation and cell requests were
// snapshotted by PrepareRun. Execute it exactly once.
type PendingRun struct {
	c    *Controller
	gen  uint64
	reqs []query.CellRequest
}

// PrepareRun claims the next run generation and snapshots the cell
// requests for it. Cells clear immediately and the manual-cutoff flag
// re-arms. Claim order defines supersession: a run prepared later owns
// the cells, and an earlier pending run's writes are discarded even if
// its goroutine happens to execute afterwards.
func (c *Controller) PrepareRun() *PendingRun {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := c.dims.Rows(c.cat, c.cfg)
	cols := c.dims.Columns(c.cat, c.cfg)
	reqs := c.queries.BuildAll(c.cfg, rows, cols)
	c.cfg.ClearCutoffTouched()
	gen := c.agg.BeginRun()
	return &PendingRun{c: c, gen: gen, reqs: reqs}
}

// Execute fans out the prepared cell requests under the concurrency
// cap and derives the automatic cutoff when the run completes. Cells
// stream into the snapshot as they land. Returns run.ErrSuperseded
// (wrapped) when a run prepared later has taken over.
func (p *PendingRun) Execute(ctx context.Context) (RunReport, error) {
	c := p.c
	report, err := c.scheduler.Execute(ctx, (*lockedCutoff)(c), c.agg, p.gen, p.reqs)
	out := RunReport{
		Total:     report.Total,
		Completed: report.Completed,
		Failed:    report.Failed,
		Skipped:   report.Skipped,
		Warning:   report.Warning(),
	}
	if err != nil {
		return out, fmt.Errorf("heatgrid: %w", err)
	}

	c.mu.Lock()
	c.scheduleURLSync()
	c.mu.Unlock()
	return out, nil
}

// Run executes the full grid in one call, the blocking form of
// PrepareRun followed by Execute.
func (c *Controller) Run(ctx context.Context) (RunReport, error) {
	return c.PrepareRun().Execute(ctx)
}

// lockedCutoff adapts the controller's mutex around the cutoff state
// the scheduler touches when a run finishes.
type lockedCutoff Controller

func (l *lockedCutoff) CutoffTouched() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg.CutoffTouched()
}

func (l *lockedCutoff) ResetCutoff(v float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.ResetCutoff(v)
}

// Rows returns the resolved, ordered row values.
func (c *Controller) Rows() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dims.Rows(c.cat, c.cfg)
}

// Columns returns the resolved, ordered column values.
func (c *Controller) Columns() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dims.Columns(c.cat, c.cfg)
}

// Snapshot derives the current display state under the active cutoff
// and metric. Safe to call mid-run; completed cells appear as they land.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := c.dims.Rows(c.cat, c.cfg)
	cols := c.dims.Columns(c.cat, c.cfg)
	snap := c.agg.Snapshot(c.cfg.Cutoff(), c.cfg.Metric())

	out := Snapshot{
		RowField:     c.cfg.RowField(),
		ColField:     c.cfg.ColField(),
		Rows:         rows,
		Columns:      cols,
		Metric:       Metric(c.cfg.Metric()),
		Cutoff:       snap.Cutoff,
		MinScore:     snap.Bounds.Min,
		MaxScore:     snap.Bounds.Max,
		HasScores:    snap.Bounds.HasScores,
		MaxCellCount: snap.MaxCellCount,
		Failures:     snap.Failures,
		Running:      snap.Running,
	}
	if snap.Failures > 0 {
		total := len(rows) * len(cols)
		out.Warning = fmt.Sprintf(
			"%d of %d cell requests failed; their cells are shown empty", snap.Failures, total)
	}
	for ri, row := range rows {
		for _, col := range cols {
			key := grid.NewCellKey(c.cfg.RowField(), row, ri, col)
			if cell, ok := snap.Cells[key]; ok {
				out.Cells = append(out.Cells, Cell{
					Row:    key.Row,
					Col:    key.Col,
					Count:  cell.Count,
					Items:  cell.Items,
					Failed: cell.Failed,
				})
			}
		}
	}
	return out
}

// SetRowField switches the row dimension and invalidates all cells.
func (c *Controller) SetRowField(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !grid.IsPseudoField(name) && !c.cat.HasField(name) {
		return fmt.Errorf("row field %q: %w", name, domain.ErrFieldUnknown)
	}
	c.cfg.SetRowField(name)
	c.invalidateLocked()
	return nil
}

// SetColField switches the column dimension and invalidates all cells.
func (c *Controller) SetColField(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cat.HasField(name) {
		return fmt.Errorf("column field %q: %w", name, domain.ErrFieldUnknown)
	}
	c.cfg.SetColField(name)
	c.invalidateLocked()
	return nil
}

// SetMetric switches the cell metric. Counts recompute from raw data;
// no re-query happens.
func (c *Controller) SetMetric(m Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.SetMetric(metric.Mode(m))
	c.scheduleURLSync()
}

// SetCutoff records a user-driven cutoff move. Counts recompute from
// raw data; no re-query happens, and the pending run's automatic
// estimate is disarmed.
func (c *Controller) SetCutoff(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.SetCutoff(v)
	c.scheduleURLSync()
}

// SetQuery sets the shared free-text query and invalidates all cells.
func (c *Controller) SetQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.SetQuery(q)
	c.invalidateLocked()
}

// SetRowQueries replaces the per-row texts for free-text/title rows and
// invalidates all cells.
func (c *Controller) SetRowQueries(qs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.SetRowQueries(qs)
	c.invalidateLocked()
}

// SetFilter stores a global filter (empty values remove it) and
// invalidates all cells.
func (c *Controller) SetFilter(field string, values []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cat.HasField(field) {
		return fmt.Errorf("filter field %q: %w", field, domain.ErrFieldUnknown)
	}
	c.cfg.SetFilter(field, values)
	c.invalidateLocked()
	return nil
}

// SetSelection stores an axis selection and invalidates all cells. An
// empty non-nil selection means "use none"; ClearSelection reverts to
// every catalog value.
func (c *Controller) SetSelection(field string, values []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cat.HasField(field) {
		return fmt.Errorf("selection field %q: %w", field, domain.ErrFieldUnknown)
	}
	c.cfg.SetSelection(field, values)
	c.invalidateLocked()
	return nil
}

// ClearSelection removes the axis selection for a field and invalidates
// all cells.
func (c *Controller) ClearSelection(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.ClearSelection(field)
	c.invalidateLocked()
}

// invalidateLocked clears cells after a state change that makes raw
// results stale. Callers hold c.mu.
func (c *Controller) invalidateLocked() {
	c.agg.Clear()
	c.selected = nil
	c.narrow = detail.Narrow{}
	c.scheduleURLSync()
}

// SelectCell marks one cell as selected and resets any narrowing from
// the previously selected cell.
func (c *Controller) SelectCell(rowKey, col string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := grid.CellKey{Row: rowKey, Col: col}
	c.selected = &key
	c.narrow = detail.Narrow{}
}

// NarrowOrganization restricts the selected cell's detail to one
// organization.
func (c *Controller) NarrowOrganization(org string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.narrow = detail.Narrow{Organization: org}
}

// NarrowDocument restricts the selected cell's detail to one document.
func (c *Controller) NarrowDocument(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.narrow = detail.Narrow{DocumentID: id}
}

// SelectedCell returns the detail view of the selected cell, applying
// the active narrowing. ErrNotFound when no cell is selected or the
// cell was never populated.
func (c *Controller) SelectedCell() (CellDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return CellDetail{}, fmt.Errorf("no cell selected: %w", domain.ErrNotFound)
	}
	return c.cellDetailLocked(*c.selected, c.narrow)
}

// CellDetail returns the detail view of an arbitrary cell with explicit
// narrowing, without changing the selection.
func (c *Controller) CellDetail(rowKey, col, narrowOrg, narrowDoc string) (CellDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := grid.CellKey{Row: rowKey, Col: col}
	return c.cellDetailLocked(key, detail.Narrow{Organization: narrowOrg, DocumentID: narrowDoc})
}

func (c *Controller) cellDetailLocked(key grid.CellKey, narrow detail.Narrow) (CellDetail, error) {
	view, err := c.details.Cell(c.agg, key, c.cfg.Cutoff(), narrow)
	if err != nil {
		return CellDetail{}, err
	}

	out := CellDetail{Row: view.Key.Row, Col: view.Key.Col, Failed: view.Failed}
	for i := range view.Records {
		r := &view.Records[i]
		out.Results = append(out.Results, Result{
			ID:           r.ID(),
			DocumentID:   r.DocumentID(),
			Score:        r.Score(),
			Title:        r.Title(),
			Organization: r.Organization(),
			Year:         r.Year(),
			Excerpt:      r.Excerpt(),
			SourceURL:    r.SourceURL(),
			Page:         r.Page(),
		})
	}
	for _, d := range view.Documents {
		out.Documents = append(out.Documents, DocumentCount{
			Title:        d.Key.Title,
			Year:         d.Key.Year,
			Organization: d.Key.Organization,
			Count:        d.Count,
		})
	}
	return out, nil
}

// Suggest returns facet values of one field matching a typed fragment.
func (c *Controller) Suggest(ctx context.Context, field, fragment string, limit int) ([]FieldValue, error) {
	values, err := c.catalogs.Suggest(ctx, c.dataSource, field, fragment, limit)
	if err != nil {
		return nil, err
	}
	out := make([]FieldValue, 0, len(values))
	for _, v := range values {
		out = append(out, FieldValue{Value: v.Value, Count: v.Count})
	}
	return out, nil
}

// SuggestDebounced schedules a suggestion lookup after the typing quiet
// period, replacing any pending lookup. fn runs on a timer goroutine.
func (c *Controller) SuggestDebounced(field, fragment string, limit int, fn func([]FieldValue, error)) {
	c.debouncer.Trigger("suggest", func() {
		fn(c.Suggest(context.Background(), field, fragment, limit))
	})
}

// ExportSummary writes the count table as CSV: one header row of column
// values, one row per row value with cell counts under the current
// cutoff and metric.
func (c *Controller) ExportSummary(w io.Writer) error {
	c.mu.Lock()
	rows := c.dims.Rows(c.cat, c.cfg)
	cols := c.dims.Columns(c.cat, c.cfg)
	snap := c.agg.Snapshot(c.cfg.Cutoff(), c.cfg.Metric())
	table := c.exports.Summary(snap, c.cfg, rows, cols)
	c.mu.Unlock()
	return c.exports.WriteCSV(w, table)
}

// ExportDetail writes the flat per-result extract as CSV across all
// cells in row-major order, after cutoff filtering.
func (c *Controller) ExportDetail(w io.Writer) error {
	c.mu.Lock()
	rows := c.dims.Rows(c.cat, c.cfg)
	cols := c.dims.Columns(c.cat, c.cfg)
	table := c.exports.Detail(c.agg, c.cfg, rows, cols)
	c.mu.Unlock()
	return c.exports.WriteCSV(w, table)
}

// Running reports whether a run is in flight.
func (c *Controller) Running() bool {
	return c.agg.Running()
}

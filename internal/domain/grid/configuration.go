package grid

import (
	"slices"

	"github.com/evidencelab/heatgrid/internal/domain/grid/metric"
)

// DefaultCutoff is the cutoff before any scores have been observed.
const DefaultCutoff = 0

// Configuration is the serializable grid snapshot: everything needed to
// replay a grid deterministically. All mutation goes through methods so
// axis/selection invariants hold at every point; there is deliberately
// no shared global state behind it.
type Configuration struct {
	rowField      string
	colField      string
	metricMode    metric.Mode
	cutoff        float64
	cutoffTouched bool
	query         string
	rowQueries    []string
	selections    map[string][]string
	filters       map[string][]string
	ranking       Ranking
	autoRun       bool
}

// NewConfiguration creates a configuration with the given axes and
// default metric, cutoff, and ranking.
func NewConfiguration(rowField, colField string) *Configuration {
	return &Configuration{
		rowField:   rowField,
		colField:   colField,
		metricMode: metric.Documents,
		cutoff:     DefaultCutoff,
		selections: map[string][]string{},
		filters:    map[string][]string{},
		ranking:    DefaultRanking(),
	}
}

// RowField returns the row dimension field name.
func (c *Configuration) RowField() string { return c.rowField }

// ColField returns the column dimension field name.
func (c *Configuration) ColField() string { return c.colField }

// SetRowField changes the row dimension. Selecting a field for an axis
// removes it from the global filter set: a field cannot filter against
// itself.
func (c *Configuration) SetRowField(name string) {
	c.rowField = name
	delete(c.filters, name)
}

// SetColField changes the column dimension.
func (c *Configuration) SetColField(name string) {
	c.colField = name
	delete(c.filters, name)
}

// Metric returns the current metric mode.
func (c *Configuration) Metric() metric.Mode { return c.metricMode }

// SetMetric changes the metric mode. Invalid modes are ignored.
func (c *Configuration) SetMetric(m metric.Mode) {
	if m.IsValid() {
		c.metricMode = m
	}
}

// Cutoff returns the current similarity cutoff.
func (c *Configuration) Cutoff() float64 { return c.cutoff }

// CutoffTouched reports whether the user moved the cutoff since the
// last run started.
func (c *Configuration) CutoffTouched() bool { return c.cutoffTouched }

// SetCutoff records a user-driven cutoff change.
func (c *Configuration) SetCutoff(v float64) {
	c.cutoff = v
	c.cutoffTouched = true
}

// ResetCutoff applies an automatic cutoff estimate without marking the
// cutoff as user-touched.
func (c *Configuration) ResetCutoff(v float64) {
	c.cutoff = v
	c.cutoffTouched = false
}

// ClearCutoffTouched re-arms automatic cutoff estimation for a new run.
func (c *Configuration) ClearCutoffTouched() { c.cutoffTouched = false }

// Query returns the shared free-text query.
func (c *Configuration) Query() string { return c.query }

// SetQuery sets the shared free-text query.
func (c *Configuration) SetQuery(q string) { c.query = q }

// RowQueries returns the per-row texts for the queries/title row
// dimensions, in insertion order.
func (c *Configuration) RowQueries() []string {
	return slices.Clone(c.rowQueries)
}

// SetRowQueries replaces the per-row texts.
func (c *Configuration) SetRowQueries(qs []string) {
	c.rowQueries = slices.Clone(qs)
}

// AddRowQuery appends a row.
func (c *Configuration) AddRowQuery(q string) {
	c.rowQueries = append(c.rowQueries, q)
}

// RemoveRowQuery deletes the row at index i. Positional row keys are
// recomputed on the next resolve, so remaining indices shift down.
func (c *Configuration) RemoveRowQuery(i int) {
	if i < 0 || i >= len(c.rowQueries) {
		return
	}
	c.rowQueries = append(c.rowQueries[:i], c.rowQueries[i+1:]...)
}

// Selection returns the axis selection for a field. ok=false means no
// selection was made (use all values); ok=true with an empty slice
// means the user explicitly deselected everything (use none).
func (c *Configuration) Selection(field string) (values []string, ok bool) {
	v, ok := c.selections[field]
	return slices.Clone(v), ok
}

// SetSelection stores an axis selection for a field.
func (c *Configuration) SetSelection(field string, values []string) {
	c.selections[field] = slices.Clone(values)
}

// ClearSelection removes the selection for a field, reverting the axis
// to all catalog values.
func (c *Configuration) ClearSelection(field string) {
	delete(c.selections, field)
}

// Selections returns all per-field axis selections.
func (c *Configuration) Selections() map[string][]string {
	out := make(map[string][]string, len(c.selections))
	for k, v := range c.selections {
		out[k] = slices.Clone(v)
	}
	return out
}

// Filters returns the global field-level filters, including any that
// collide with the current axes. Axis exclusion happens when cell
// requests are built, not here, so switching an axis back restores the
// filter.
func (c *Configuration) Filters() map[string][]string {
	out := make(map[string][]string, len(c.filters))
	for k, v := range c.filters {
		out[k] = slices.Clone(v)
	}
	return out
}

// SetFilter stores a global filter for a field. An empty value list
// removes the filter.
func (c *Configuration) SetFilter(field string, values []string) {
	if len(values) == 0 {
		delete(c.filters, field)
		return
	}
	c.filters[field] = slices.Clone(values)
}

// Ranking returns the ranking configuration.
func (c *Configuration) Ranking() Ranking { return c.ranking }

// SetRanking replaces the ranking configuration.
func (c *Configuration) SetRanking(r Ranking) { c.ranking = r }

// SetAutoRun arms the one-shot run flag.
func (c *Configuration) SetAutoRun(v bool) { c.autoRun = v }

// AutoRunPending reports whether a decoded run flag has not been
// consumed yet.
func (c *Configuration) AutoRunPending() bool { return c.autoRun }

// ConsumeAutoRun returns the run flag and clears it, so a later
// re-encode or refresh never re-triggers the run.
func (c *Configuration) ConsumeAutoRun() bool {
	v := c.autoRun
	c.autoRun = false
	return v
}

// Clone returns a deep copy of the configuration.
func (c *Configuration) Clone() *Configuration {
	out := &Configuration{
		rowField:      c.rowField,
		colField:      c.colField,
		metricMode:    c.metricMode,
		cutoff:        c.cutoff,
		cutoffTouched: c.cutoffTouched,
		query:         c.query,
		rowQueries:    slices.Clone(c.rowQueries),
		selections:    make(map[string][]string, len(c.selections)),
		filters:       make(map[string][]string, len(c.filters)),
		ranking:       c.ranking,
		autoRun:       c.autoRun,
	}
	for k, v := range c.selections {
		out.selections[k] = slices.Clone(v)
	}
	for k, v := range c.filters {
		out.filters[k] = slices.Clone(v)
	}
	out.ranking.SectionTypes = slices.Clone(c.ranking.SectionTypes)
	if c.ranking.FieldBoosts != nil {
		out.ranking.FieldBoosts = make(map[string]float64, len(c.ranking.FieldBoosts))
		for k, v := range c.ranking.FieldBoosts {
			out.ranking.FieldBoosts[k] = v
		}
	}
	return out
}

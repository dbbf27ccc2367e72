package heatgrid

import (
	"github.com/evidencelab/heatgrid/internal/domain/grid"
	"github.com/evidencelab/heatgrid/internal/domain/grid/metric"
)

// Builder assembles a grid configuration fluently. Apply it with
// Controller.ApplyConfiguration.
type Builder struct {
	rowField   string
	colField   string
	query      string
	rowQueries []string
	selections map[string][]string
	filters    map[string][]string
	metricMode Metric
	cutoff     *float64
	ranking    grid.Ranking
	autoRun    bool
}

// NewBuilder creates a grid builder with free-text query rows and
// default ranking.
func NewBuilder() *Builder {
	return &Builder{
		rowField:   FieldQueries,
		selections: map[string][]string{},
		filters:    map[string][]string{},
		ranking:    grid.DefaultRanking(),
	}
}

// Rows sets the row dimension: a catalog field name, FieldQueries, or
// FieldTitle.
func (b *Builder) Rows(field string) *Builder {
	b.rowField = field
	return b
}

// Columns sets the column dimension to a catalog field name.
func (b *Builder) Columns(field string) *Builder {
	b.colField = field
	return b
}

// Query sets the shared free-text query used when rows come from a
// catalog field.
func (b *Builder) Query(q string) *Builder {
	b.query = q
	return b
}

// RowQueries sets the per-row texts for FieldQueries or FieldTitle rows.
func (b *Builder) RowQueries(qs ...string) *Builder {
	b.rowQueries = qs
	return b
}

// Filter adds a global equality filter on a field.
func (b *Builder) Filter(field string, values ...string) *Builder {
	b.filters[field] = values
	return b
}

// Select restricts an axis to the given values. Selecting none keeps
// the axis empty; omitting Select uses every catalog value.
func (b *Builder) Select(field string, values ...string) *Builder {
	b.selections[field] = values
	return b
}

// Metric sets the cell metric.
func (b *Builder) Metric(m Metric) *Builder {
	b.metricMode = m
	return b
}

// Cutoff sets a manual score cutoff, disarming automatic estimation
// for the next run.
func (b *Builder) Cutoff(v float64) *Builder {
	b.cutoff = &v
	return b
}

// ResultsPerCell sets the backend result limit per cell.
func (b *Builder) ResultsPerCell(n int) *Builder {
	b.ranking.ResultsPerCell = n
	return b
}

// DenseWeight sets the dense/sparse blend weight for hybrid ranking.
func (b *Builder) DenseWeight(w float64) *Builder {
	b.ranking.DenseWeight = w
	return b
}

// Rerank enables cross-encoder reranking with the given model.
func (b *Builder) Rerank(model string) *Builder {
	b.ranking.Rerank = true
	b.ranking.RerankModel = model
	return b
}

// RecencyBoost weights recent documents up with the given decay scale.
func (b *Builder) RecencyBoost(weight float64, scaleDays int) *Builder {
	b.ranking.RecencyBoost = true
	b.ranking.RecencyWeight = weight
	b.ranking.RecencyScaleDays = scaleDays
	return b
}

// SectionTypes restricts matching to the given document section types.
func (b *Builder) SectionTypes(types ...string) *Builder {
	b.ranking.SectionTypes = types
	return b
}

// AutoRun arms the one-shot run flag, the programmatic twin of the
// hm_run URL parameter.
func (b *Builder) AutoRun() *Builder {
	b.autoRun = true
	return b
}

func (b *Builder) build() *grid.Configuration {
	cfg := grid.NewConfiguration(b.rowField, b.colField)
	cfg.SetQuery(b.query)
	cfg.SetRowQueries(b.rowQueries)
	for field, values := range b.selections {
		cfg.SetSelection(field, values)
	}
	for field, values := range b.filters {
		cfg.SetFilter(field, values)
	}
	if b.metricMode != "" {
		cfg.SetMetric(metric.Mode(b.metricMode))
	}
	if b.cutoff != nil {
		cfg.SetCutoff(*b.cutoff)
	}
	cfg.SetRanking(b.ranking)
	cfg.SetAutoRun(b.autoRun)
	return cfg
}

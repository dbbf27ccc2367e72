package query

import (
	"strings"

	"github.com/evidencelab/heatgrid/internal/domain/grid"
	"github.com/evidencelab/heatgrid/internal/domain/search"
)

// CellRequest is one scheduled backend request for a single cell.
// Skip marks cells that must be recorded as empty immediately, with no
// backend round-trip (a queries row with blank text).
type CellRequest struct {
	Key    grid.CellKey
	Params search.Params
	Skip   bool
}

// Builder assembles per-cell request parameter sets from the grid
// configuration.
type Builder struct{}

// New creates a cell query builder.
func New() *Builder { return &Builder{} }

// Build assembles the request for one (row value, column value) pair.
func (b *Builder) Build(cfg *grid.Configuration, rowValue string, rowIndex int, colValue string) CellRequest {
	key := grid.NewCellKey(cfg.RowField(), rowValue, rowIndex, colValue)

	queryText := cfg.Query()
	if cfg.RowField() == grid.FieldQueries {
		queryText = rowValue
		if strings.TrimSpace(queryText) == "" {
			return CellRequest{Key: key, Skip: true}
		}
	}

	filters := cfg.Filters()
	// A field cannot filter against itself: active filters on either
	// axis field would double-constrain the cell.
	delete(filters, cfg.RowField())
	delete(filters, cfg.ColField())

	// The row dimension becomes an equality filter except for free-text
	// rows; title rows constrain the title field. The column dimension
	// is always an equality filter.
	switch cfg.RowField() {
	case grid.FieldQueries:
	case grid.FieldTitle:
		filters[grid.FieldTitle] = []string{rowValue}
	default:
		filters[cfg.RowField()] = []string{rowValue}
	}
	filters[cfg.ColField()] = []string{colValue}

	limit := cfg.Ranking().ResultsPerCell

	// Without a text query no meaningful ranking exists, so the
	// document-level endpoint variant is targeted instead.
	if strings.TrimSpace(queryText) == "" {
		return CellRequest{
			Key:    key,
			Params: search.NewDocumentParams(limit, filters, cfg.Ranking()),
		}
	}
	return CellRequest{
		Key:    key,
		Params: search.NewParams(queryText, limit, filters, cfg.Ranking()),
	}
}

// BuildAll assembles the full cartesian product of cell requests in
// row-major order.
func (b *Builder) BuildAll(cfg *grid.Configuration, rows, cols []string) []CellRequest {
	out := make([]CellRequest, 0, len(rows)*len(cols))
	for ri, row := range rows {
		for _, col := range cols {
			out = append(out, b.Build(cfg, row, ri, col))
		}
	}
	return out
}

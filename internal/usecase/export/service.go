package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/evidencelab/heatgrid/internal/domain/grid"
	"github.com/evidencelab/heatgrid/internal/usecase/aggregate"
)

// Service renders the current filtered grid state as tabular extracts.
// Both extracts are pure functions of the aggregator's filtered state:
// they reflect exactly what is on screen, nothing is re-queried.
type Service struct{}

// New creates an export service.
func New() *Service { return &Service{} }

// Summary produces the count table: one header row of column values,
// then one row per row value with the cell counts under the current
// cutoff and metric.
func (s *Service) Summary(
	snap grid.Snapshot, cfg *grid.Configuration, rows, cols []string,
) [][]string {
	header := make([]string, 0, len(cols)+1)
	header = append(header, cfg.RowField())
	header = append(header, cols...)

	table := make([][]string, 0, len(rows)+1)
	table = append(table, header)

	for ri, row := range rows {
		line := make([]string, 0, len(cols)+1)
		line = append(line, row)
		for _, col := range cols {
			key := grid.NewCellKey(cfg.RowField(), row, ri, col)
			line = append(line, strconv.Itoa(snap.Cells[key].Count))
		}
		table = append(table, line)
	}
	return table
}

// Detail produces the flat per-result extract across all cells in
// row-major order, after cutoff filtering.
func (s *Service) Detail(
	g *aggregate.Grid, cfg *grid.Configuration, rows, cols []string,
) [][]string {
	table := [][]string{{
		"row", "column", "document_id", "title", "organization", "year", "score", "excerpt",
	}}

	for ri, row := range rows {
		for _, col := range cols {
			key := grid.NewCellKey(cfg.RowField(), row, ri, col)
			recs, ok := g.CellRecords(key, cfg.Cutoff())
			if !ok {
				continue
			}
			for i := range recs {
				r := &recs[i]
				table = append(table, []string{
					row, col,
					r.DocumentID(), r.Title(), r.Organization(), r.Year(),
					strconv.FormatFloat(r.Score(), 'f', -1, 64),
					r.Excerpt(),
				})
			}
		}
	}
	return table
}

// WriteCSV writes a table as CSV.
func (s *Service) WriteCSV(w io.Writer, table [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(table); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

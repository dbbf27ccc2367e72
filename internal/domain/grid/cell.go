package grid

import (
	"fmt"

	"github.com/evidencelab/heatgrid/internal/domain/record"
)

// CellKey identifies one row×column intersection of the grid.
// Row is the row value itself for catalog-derived row dimensions, or a
// synthetic positional key for free-text/title rows (free text is not a
// stable dictionary key).
type CellKey struct {
	Row string
	Col string
}

// RowKey derives the row component of a CellKey. Positional keys are
// recomputed whenever the row list mutates, so they are stable only
// within one resolved render of the grid.
func RowKey(rowField, rowValue string, rowIndex int) string {
	if IsPseudoField(rowField) {
		return fmt.Sprintf("row-%d", rowIndex)
	}
	return rowValue
}

// NewCellKey builds the key for a (row value, column value) pair.
func NewCellKey(rowField, rowValue string, rowIndex int, colValue string) CellKey {
	return CellKey{Row: RowKey(rowField, rowValue, rowIndex), Col: colValue}
}

// CellResult is the derived view of one cell: its cutoff-filtered
// count under the current metric plus run status. Raw records stay
// owned by the aggregator; this is what the presentation layer sees.
type CellResult struct {
	Key    CellKey
	Count  int
	Items  int // raw record count before cutoff, for diagnostics
	Failed bool
}

// Snapshot is a consistent read of the aggregator's display state.
type Snapshot struct {
	Cells        map[CellKey]CellResult
	Bounds       record.ScoreBounds
	Cutoff       float64
	MaxCellCount int
	Failures     int
	Running      bool
	Generation   uint64
}

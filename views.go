package heatgrid

// CatalogField is one filterable field of the loaded facet catalog.
type CatalogField struct {
	Name   string
	Label  string
	Values []FieldValue
}

// FieldValue is one distinct field value with its document count.
type FieldValue struct {
	Value string
	Count int
}

// Cell is one populated grid cell in a snapshot.
type Cell struct {
	Row    string
	Col    string
	Count  int // metric count under the active cutoff
	Items  int // raw result count before cutoff filtering
	Failed bool
}

// Snapshot is the derived display state of the grid at one instant.
// Counts reflect the active cutoff and metric; intensity scaling uses
// MaxCellCount.
type Snapshot struct {
	RowField     string
	ColField     string
	Rows         []string
	Columns      []string
	Cells        []Cell
	Metric       Metric
	Cutoff       float64
	MinScore     float64
	MaxScore     float64
	HasScores    bool
	MaxCellCount int
	Failures     int
	Running      bool
	Warning      string
}

// RunReport summarizes one completed (or aborted) run.
type RunReport struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
	Warning   string
}

// Result is one search result within a cell.
type Result struct {
	ID           string
	DocumentID   string
	Score        float64
	Title        string
	Organization string
	Year         string
	Excerpt      string
	SourceURL    string
	Page         int
}

// DocumentCount is one distinct document within a cell with its in-cell
// result frequency.
type DocumentCount struct {
	Title        string
	Year         string
	Organization string
	Count        int
}

// CellDetail is the cutoff-filtered, optionally narrowed view of one
// selected cell.
type CellDetail struct {
	Row       string
	Col       string
	Results   []Result
	Documents []DocumentCount
	Failed    bool
}

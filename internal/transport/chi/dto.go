package chi

import (
	heatgrid "github.com/evidencelab/heatgrid"
	"github.com/evidencelab/heatgrid/internal/domain/grid"
)

type createGridRequest struct {
	// URL is a raw deep-link query string ("hm_row=...&hm_col=...").
	// Takes precedence over Config when both are present.
	URL    string         `json:"url,omitempty"`
	Config *gridConfigDTO `json:"config,omitempty"`
}

type gridConfigDTO struct {
	RowField   string              `json:"row_field,omitempty"`
	ColField   string              `json:"col_field,omitempty"`
	Metric     string              `json:"metric,omitempty"`
	Cutoff     *float64            `json:"cutoff,omitempty"`
	Query      string              `json:"query,omitempty"`
	RowQueries []string            `json:"row_queries,omitempty"`
	Selections map[string][]string `json:"selections,omitempty"`
	Filters    map[string][]string `json:"filters,omitempty"`
	AutoRun    bool                `json:"auto_run,omitempty"`
}

func (d *gridConfigDTO) toBuilder() *heatgrid.Builder {
	b := heatgrid.NewBuilder()
	if d.RowField != "" {
		b.Rows(d.RowField)
	}
	if d.ColField != "" {
		b.Columns(d.ColField)
	}
	if d.Metric != "" {
		b.Metric(heatgrid.Metric(d.Metric))
	}
	if d.Cutoff != nil {
		b.Cutoff(*d.Cutoff)
	}
	if d.Query != "" {
		b.Query(d.Query)
	}
	if len(d.RowQueries) > 0 {
		b.RowQueries(d.RowQueries...)
	}
	for field, values := range d.Selections {
		b.Select(field, values...)
	}
	for field, values := range d.Filters {
		b.Filter(field, values...)
	}
	if d.AutoRun {
		b.AutoRun()
	}
	return b
}

type patchGridRequest struct {
	RowField   *string  `json:"row_field,omitempty"`
	ColField   *string  `json:"col_field,omitempty"`
	Metric     *string  `json:"metric,omitempty"`
	Cutoff     *float64 `json:"cutoff,omitempty"`
	Query      *string  `json:"query,omitempty"`
	RowQueries *[]string `json:"row_queries,omitempty"`
	// Filters/Selections replace the named fields only; an empty value
	// list removes the filter or empties the selection.
	Filters         map[string][]string `json:"filters,omitempty"`
	Selections      map[string][]string `json:"selections,omitempty"`
	ClearSelections []string            `json:"clear_selections,omitempty"`
}

type cellDTO struct {
	Row    string `json:"row"`
	Col    string `json:"col"`
	Count  int    `json:"count"`
	Items  int    `json:"items"`
	Failed bool   `json:"failed,omitempty"`
}

type snapshotDTO struct {
	RowField     string    `json:"row_field"`
	ColField     string    `json:"col_field"`
	Rows         []string  `json:"rows"`
	Columns      []string  `json:"columns"`
	Cells        []cellDTO `json:"cells"`
	Metric       string    `json:"metric"`
	Cutoff       float64   `json:"cutoff"`
	MinScore     float64   `json:"min_score"`
	MaxScore     float64   `json:"max_score"`
	HasScores    bool      `json:"has_scores"`
	MaxCellCount int       `json:"max_cell_count"`
	Failures     int       `json:"failures"`
	Running      bool      `json:"running"`
	Warning      string    `json:"warning,omitempty"`
}

type gridResponse struct {
	ID       string      `json:"id"`
	Snapshot snapshotDTO `json:"snapshot"`
	URL      string      `json:"url"`
}

func snapshotToDTO(snap heatgrid.Snapshot) snapshotDTO {
	out := snapshotDTO{
		RowField:     snap.RowField,
		ColField:     snap.ColField,
		Rows:         snap.Rows,
		Columns:      snap.Columns,
		Cells:        make([]cellDTO, 0, len(snap.Cells)),
		Metric:       string(snap.Metric),
		Cutoff:       snap.Cutoff,
		MinScore:     snap.MinScore,
		MaxScore:     snap.MaxScore,
		HasScores:    snap.HasScores,
		MaxCellCount: snap.MaxCellCount,
		Failures:     snap.Failures,
		Running:      snap.Running,
		Warning:      snap.Warning,
	}
	for _, c := range snap.Cells {
		out.Cells = append(out.Cells, cellDTO(c))
	}
	return out
}

type resultDTO struct {
	ID           string  `json:"id"`
	DocumentID   string  `json:"document_id"`
	Score        float64 `json:"score"`
	Title        string  `json:"title"`
	Organization string  `json:"organization"`
	Year         string  `json:"year"`
	Excerpt      string  `json:"excerpt"`
	SourceURL    string  `json:"source_url,omitempty"`
	Page         int     `json:"page,omitempty"`
}

type documentDTO struct {
	Title        string `json:"title"`
	Year         string `json:"year"`
	Organization string `json:"organization"`
	Count        int    `json:"count"`
}

type cellDetailResponse struct {
	Row       string        `json:"row"`
	Col       string        `json:"col"`
	Results   []resultDTO   `json:"results"`
	Documents []documentDTO `json:"documents"`
	Failed    bool          `json:"failed,omitempty"`
}

func cellDetailToDTO(view heatgrid.CellDetail) cellDetailResponse {
	out := cellDetailResponse{
		Row:       view.Row,
		Col:       view.Col,
		Results:   make([]resultDTO, 0, len(view.Results)),
		Documents: make([]documentDTO, 0, len(view.Documents)),
		Failed:    view.Failed,
	}
	for _, r := range view.Results {
		out.Results = append(out.Results, resultDTO(r))
	}
	for _, d := range view.Documents {
		out.Documents = append(out.Documents, documentDTO(d))
	}
	return out
}

type fieldValueDTO struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type catalogFieldDTO struct {
	Name   string          `json:"name"`
	Label  string          `json:"label"`
	Values []fieldValueDTO `json:"values"`
}

type catalogResponse struct {
	DataSource string            `json:"data_source"`
	Fields     []catalogFieldDTO `json:"fields"`
}

func catalogToDTO(cat grid.Catalog) catalogResponse {
	out := catalogResponse{DataSource: cat.DataSource()}
	for _, f := range cat.Fields() {
		fd := catalogFieldDTO{Name: f.Name(), Label: f.Label()}
		for _, v := range f.Values() {
			fd.Values = append(fd.Values, fieldValueDTO(v))
		}
		out.Fields = append(out.Fields, fd)
	}
	return out
}

type suggestResponse struct {
	Values []fieldValueDTO `json:"values"`
}

type runResponse struct {
	ID      string `json:"id"`
	Running bool   `json:"running"`
}

type urlResponse struct {
	Query string `json:"query"`
}

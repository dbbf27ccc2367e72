package search

import (
	"slices"

	"github.com/evidencelab/heatgrid/internal/domain/grid"
)

// Params is the fully-formed request parameter set for one cell,
// ready to be encoded against the backend search endpoint.
type Params struct {
	query         string
	limit         int
	filters       map[string][]string
	ranking       grid.Ranking
	documentLevel bool
}

// NewParams creates a ranked-search parameter set.
func NewParams(query string, limit int, filters map[string][]string, ranking grid.Ranking) Params {
	if limit <= 0 {
		limit = grid.DefaultResultsPerCell
	}
	return Params{query: query, limit: limit, filters: cloneFilters(filters), ranking: ranking}
}

// NewDocumentParams creates a parameter set for the document-level
// (query-less) endpoint variant, used when no meaningful ranking exists.
func NewDocumentParams(limit int, filters map[string][]string, ranking grid.Ranking) Params {
	p := NewParams("", limit, filters, ranking)
	p.documentLevel = true
	return p
}

// Query returns the free-text query ("" for document-level requests).
func (p *Params) Query() string { return p.query }

// Limit returns the pagination limit.
func (p *Params) Limit() int { return p.limit }

// Filters returns the field=value equality filters.
func (p *Params) Filters() map[string][]string { return p.filters }

// Ranking returns the ranking knobs.
func (p *Params) Ranking() grid.Ranking { return p.ranking }

// DocumentLevel reports whether the document-level endpoint variant
// should be targeted instead of the relevance-search endpoint.
func (p *Params) DocumentLevel() bool { return p.documentLevel }

func cloneFilters(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = slices.Clone(v)
	}
	return out
}

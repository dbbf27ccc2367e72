package dimension

import (
	"sort"
	"strconv"

	"github.com/evidencelab/heatgrid/internal/domain/grid"
)

// DefaultMaxAxisValues bounds grid size for high-cardinality fields.
const DefaultMaxAxisValues = 40

// Service resolves the ordered row and column value lists from the
// facet catalog, the current axis choice, and per-field selections.
type Service struct {
	maxAxisValues int
}

// New creates a dimension resolver.
func New(maxAxisValues int) *Service {
	if maxAxisValues <= 0 {
		maxAxisValues = DefaultMaxAxisValues
	}
	return &Service{maxAxisValues: maxAxisValues}
}

// Rows resolves the ordered row values. For the queries/title row
// dimensions the values are the user-entered texts in insertion order;
// otherwise they come from the catalog with selection and sorting
// applied.
func (s *Service) Rows(cat grid.Catalog, cfg *grid.Configuration) []string {
	if grid.IsPseudoField(cfg.RowField()) {
		return cfg.RowQueries()
	}
	return s.resolveAxis(cat, cfg.RowField(), cfg)
}

// Columns resolves the ordered column values.
func (s *Service) Columns(cat grid.Catalog, cfg *grid.Configuration) []string {
	return s.resolveAxis(cat, cfg.ColField(), cfg)
}

func (s *Service) resolveAxis(cat grid.Catalog, field string, cfg *grid.Configuration) []string {
	f, ok := cat.FieldByName(field)
	if !ok {
		return nil
	}

	all := make([]string, 0, len(f.Values()))
	for _, v := range f.Values() {
		all = append(all, v.Value)
	}

	// nil selection means "no selection made": use every value.
	// An explicitly empty selection means "use none".
	if selected, made := cfg.Selection(field); made {
		keep := make(map[string]struct{}, len(selected))
		for _, v := range selected {
			keep[v] = struct{}{}
		}
		filtered := all[:0]
		for _, v := range all {
			if _, ok := keep[v]; ok {
				filtered = append(filtered, v)
			}
		}
		all = filtered
	}

	sortValues(all)

	if len(all) > s.maxAxisValues {
		all = all[:s.maxAxisValues]
	}
	return all
}

// sortValues orders numerically when every value parses as a number,
// lexicographically otherwise.
func sortValues(values []string) {
	numeric := make([]float64, len(values))
	allNumeric := true
	for i, v := range values {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			allNumeric = false
			break
		}
		numeric[i] = n
	}

	if allNumeric {
		sort.Slice(values, func(i, j int) bool {
			ni, _ := strconv.ParseFloat(values[i], 64)
			nj, _ := strconv.ParseFloat(values[j], 64)
			return ni < nj
		})
		return
	}
	sort.Strings(values)
}

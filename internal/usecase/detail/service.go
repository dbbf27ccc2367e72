package detail

import (
	"fmt"
	"sort"

	"github.com/evidencelab/heatgrid/internal/domain"
	"github.com/evidencelab/heatgrid/internal/domain/grid"
	"github.com/evidencelab/heatgrid/internal/domain/record"
	"github.com/evidencelab/heatgrid/internal/usecase/aggregate"
)

// Narrow restricts a cell's detail view to one organization or one
// document. Zero value means no narrowing.
type Narrow struct {
	Organization string
	DocumentID   string
}

// Document is one distinct document within a cell with its in-cell
// record frequency.
type Document struct {
	Key   record.DocKey
	Count int
}

// View is the read-only detail of one selected cell.
type View struct {
	Key       grid.CellKey
	Records   []record.Record
	Documents []Document
	Failed    bool
}

// Service derives per-cell detail views from the aggregator. It never
// mutates raw results.
type Service struct{}

// New creates a detail view adapter.
func New() *Service { return &Service{} }

// Cell returns the cutoff-filtered, optionally narrowed view of one
// cell. Unknown cells return domain.ErrNotFound.
func (s *Service) Cell(g *aggregate.Grid, key grid.CellKey, cutoff float64, narrow Narrow) (View, error) {
	recs, ok := g.CellRecords(key, cutoff)
	if !ok {
		return View{}, fmt.Errorf("cell %s/%s: %w", key.Row, key.Col, domain.ErrNotFound)
	}

	if narrow.Organization != "" {
		kept := recs[:0]
		for _, r := range recs {
			if r.Organization() == narrow.Organization {
				kept = append(kept, r)
			}
		}
		recs = kept
	}
	if narrow.DocumentID != "" {
		kept := recs[:0]
		for _, r := range recs {
			if r.DocumentID() == narrow.DocumentID {
				kept = append(kept, r)
			}
		}
		recs = kept
	}

	return View{
		Key:       key,
		Records:   recs,
		Documents: documentsOf(recs),
		Failed:    g.CellFailed(key),
	}, nil
}

// documentsOf deduplicates records into documents sorted by descending
// in-cell frequency, ties broken by title for a deterministic order.
func documentsOf(recs []record.Record) []Document {
	counts := make(map[record.DocKey]int, len(recs))
	for i := range recs {
		key := recs[i].DocKey()
		if key.IsBlank() {
			continue
		}
		counts[key]++
	}

	docs := make([]Document, 0, len(counts))
	for key, n := range counts {
		docs = append(docs, Document{Key: key, Count: n})
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Count != docs[j].Count {
			return docs[i].Count > docs[j].Count
		}
		return docs[i].Key.Title < docs[j].Key.Title
	})
	return docs
}

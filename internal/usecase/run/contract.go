package run

import (
	"context"

	"github.com/evidencelab/heatgrid/internal/domain/record"
	"github.com/evidencelab/heatgrid/internal/domain/search"
)

// Searcher executes one cell request against the search backend.
type Searcher interface {
	Search(ctx context.Context, p search.Params) ([]record.Record, error)
}

// CutoffState is the cutoff view the scheduler touches when a run
// finishes. *grid.Configuration satisfies it directly; callers that
// mutate the configuration from other goroutines pass a locked wrapper.
type CutoffState interface {
	CutoffTouched() bool
	ResetCutoff(v float64)
}

package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/evidencelab/heatgrid/internal/domain/grid"
	"github.com/evidencelab/heatgrid/internal/domain/grid/metric"
	"github.com/evidencelab/heatgrid/internal/domain/record"
	"github.com/evidencelab/heatgrid/internal/usecase/aggregate"
)

func exportFixture(t *testing.T) (*aggregate.Grid, *grid.Configuration, []string, []string) {
	t.Helper()
	cfg := grid.NewConfiguration("document_type", "published_year")
	cfg.SetQuery("q")

	g := aggregate.NewGrid()
	gen := g.BeginRun()
	g.StoreCell(gen, grid.CellKey{Row: "Report", Col: "2022"}, []record.Record{
		record.New("r1", "doc-a", 0.9, "Alpha", "UNDP", "2022", "first excerpt"),
		record.New("r2", "doc-b", 0.3, "Beta", "WFP", "2022", "below cutoff"),
	})
	g.StoreCell(gen, grid.CellKey{Row: "Brief", Col: "2022"}, nil)
	g.FinishRun(gen)

	return g, cfg, []string{"Report", "Brief"}, []string{"2022"}
}

func TestSummaryTable(t *testing.T) {
	g, cfg, rows, cols := exportFixture(t)
	cfg.SetCutoff(0.5)

	snap := g.Snapshot(cfg.Cutoff(), metric.Documents)
	table := New().Summary(snap, cfg, rows, cols)

	if len(table) != 3 {
		t.Fatalf("table rows = %d, want header + 2", len(table))
	}
	if table[0][0] != "document_type" || table[0][1] != "2022" {
		t.Errorf("header = %v", table[0])
	}
	if table[1][0] != "Report" || table[1][1] != "1" {
		t.Errorf("Report row = %v, want count 1 under cutoff", table[1])
	}
	if table[2][0] != "Brief" || table[2][1] != "0" {
		t.Errorf("Brief row = %v", table[2])
	}
}

func TestDetailReflectsCutoff(t *testing.T) {
	g, cfg, rows, cols := exportFixture(t)
	cfg.SetCutoff(0.5)

	table := New().Detail(g, cfg, rows, cols)

	if len(table) != 2 {
		t.Fatalf("detail rows = %d, want header + 1 surviving record", len(table))
	}
	line := table[1]
	if line[0] != "Report" || line[1] != "2022" || line[3] != "Alpha" {
		t.Errorf("detail line = %v", line)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := New().WriteCSV(&buf, [][]string{{"a", "b"}, {"1", "with,comma"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "\"with,comma\"") {
		t.Errorf("csv output %q should quote embedded commas", out)
	}
}

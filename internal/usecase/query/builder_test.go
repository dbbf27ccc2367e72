package query

import (
	"testing"

	"github.com/evidencelab/heatgrid/internal/domain/grid"
)

func TestBuildCatalogRowAppendsBothDimensionFilters(t *testing.T) {
	cfg := grid.NewConfiguration("document_type", "published_year")
	cfg.SetQuery("climate")

	req := New().Build(cfg, "Report", 0, "2023")

	if req.Skip {
		t.Fatal("unexpected skip")
	}
	if req.Key != (grid.CellKey{Row: "Report", Col: "2023"}) {
		t.Errorf("key = %+v", req.Key)
	}
	if got := req.Params.Query(); got != "climate" {
		t.Errorf("query = %q, want shared query text", got)
	}
	f := req.Params.Filters()
	if len(f["document_type"]) != 1 || f["document_type"][0] != "Report" {
		t.Errorf("row filter = %v", f["document_type"])
	}
	if len(f["published_year"]) != 1 || f["published_year"][0] != "2023" {
		t.Errorf("column filter = %v", f["published_year"])
	}
}

func TestBuildExcludesSelfFilteringFields(t *testing.T) {
	cfg := grid.NewConfiguration("document_type", "published_year")
	cfg.SetQuery("health")
	// Filters colliding with the axes must not survive into the request.
	cfg.SetFilter("language", []string{"en"})
	cfg.SetFilter("published_year", []string{"2019"})

	req := New().Build(cfg, "Brief", 0, "2022")

	f := req.Params.Filters()
	if f["published_year"][0] != "2022" {
		t.Errorf("column filter must win over a stale global filter, got %v", f["published_year"])
	}
	if f["language"][0] != "en" {
		t.Errorf("non-axis filter should pass through, got %v", f["language"])
	}
}

func TestBuildQueriesRowUsesRowText(t *testing.T) {
	cfg := grid.NewConfiguration(grid.FieldQueries, "organization")

	req := New().Build(cfg, "food security", 1, "WFP")

	if req.Key != (grid.CellKey{Row: "row-1", Col: "WFP"}) {
		t.Errorf("key = %+v, want synthetic positional row key", req.Key)
	}
	if req.Params.Query() != "food security" {
		t.Errorf("query = %q, want the row text", req.Params.Query())
	}
	if _, ok := req.Params.Filters()[grid.FieldQueries]; ok {
		t.Error("queries pseudo-field must not become an equality filter")
	}
	if req.Params.Filters()["organization"][0] != "WFP" {
		t.Error("column filter missing")
	}
}

func TestBuildBlankQueriesRowSkips(t *testing.T) {
	cfg := grid.NewConfiguration(grid.FieldQueries, "organization")

	req := New().Build(cfg, "   ", 0, "UNDP")

	if !req.Skip {
		t.Fatal("blank queries row must not produce a backend request")
	}
	if req.Key != (grid.CellKey{Row: "row-0", Col: "UNDP"}) {
		t.Errorf("key = %+v", req.Key)
	}
}

func TestBuildTitleRowFiltersOnTitle(t *testing.T) {
	cfg := grid.NewConfiguration(grid.FieldTitle, "organization")
	cfg.SetQuery("")

	req := New().Build(cfg, "Annual Report", 0, "UNDP")

	if !req.Params.DocumentLevel() {
		t.Error("title row without shared query should target the document-level variant")
	}
	if req.Params.Filters()[grid.FieldTitle][0] != "Annual Report" {
		t.Errorf("title filter = %v", req.Params.Filters()[grid.FieldTitle])
	}
}

func TestBuildNoQueryTargetsDocumentLevel(t *testing.T) {
	cfg := grid.NewConfiguration("document_type", "published_year")

	req := New().Build(cfg, "Report", 0, "2023")

	if !req.Params.DocumentLevel() {
		t.Error("no query and non-queries row dimension should use the document-level variant")
	}
	if req.Params.Query() != "" {
		t.Errorf("document-level query = %q, want empty", req.Params.Query())
	}
}

func TestBuildAllRowMajorOrder(t *testing.T) {
	cfg := grid.NewConfiguration("document_type", "published_year")
	cfg.SetQuery("q")

	reqs := New().BuildAll(cfg, []string{"Report", "Brief"}, []string{"2022", "2023"})

	if len(reqs) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(reqs))
	}
	wantKeys := []grid.CellKey{
		{Row: "Report", Col: "2022"},
		{Row: "Report", Col: "2023"},
		{Row: "Brief", Col: "2022"},
		{Row: "Brief", Col: "2023"},
	}
	for i, k := range wantKeys {
		if reqs[i].Key != k {
			t.Errorf("reqs[%d].Key = %+v, want %+v", i, reqs[i].Key, k)
		}
	}
}

func TestBuildDoesNotMutateConfiguration(t *testing.T) {
	cfg := grid.NewConfiguration("document_type", "published_year")
	cfg.SetQuery("q")
	cfg.SetFilter("document_type", []string{"Stale"})

	_ = New().Build(cfg, "Report", 0, "2023")

	// The axis-collision exclusion happens on a copy.
	if cfg.Filters()["document_type"][0] != "Stale" {
		t.Error("builder must not mutate the configuration's filter map")
	}
}

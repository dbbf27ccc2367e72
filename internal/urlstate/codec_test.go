package urlstate

import (
	"net/url"
	"testing"

	"github.com/evidencelab/heatgrid/internal/domain/grid"
	"github.com/evidencelab/heatgrid/internal/domain/grid/metric"
)

func testCatalog() grid.Catalog {
	return grid.NewCatalog("docs", []grid.Field{
		grid.NewField("document_type", "Type", []grid.Value{{Value: "Report"}, {Value: "Brief"}}),
		grid.NewField("published_year", "Year", []grid.Value{{Value: "2022"}, {Value: "2023"}}),
		grid.NewField("organization", "Organization", []grid.Value{{Value: "UNDP"}, {Value: "WFP"}}),
	})
}

func defaults() *grid.Configuration {
	return grid.NewConfiguration("document_type", "published_year")
}

func TestRoundTrip(t *testing.T) {
	cfg := grid.NewConfiguration("organization", "published_year")
	cfg.SetMetric(metric.Items)
	cfg.ResetCutoff(0.65)
	cfg.SetQuery("climate finance")
	cfg.SetSelection("published_year", []string{"2022", "2023"})
	cfg.SetFilter("document_type", []string{"Report"})

	decoded := Decode(Encode(cfg), testCatalog(), defaults())

	if decoded.RowField() != "organization" || decoded.ColField() != "published_year" {
		t.Errorf("axes = %s/%s", decoded.RowField(), decoded.ColField())
	}
	if decoded.Metric() != metric.Items {
		t.Errorf("metric = %s", decoded.Metric())
	}
	if decoded.Cutoff() != 0.65 {
		t.Errorf("cutoff = %v", decoded.Cutoff())
	}
	if decoded.Query() != "climate finance" {
		t.Errorf("query = %q", decoded.Query())
	}
	if sel, ok := decoded.Selection("published_year"); !ok || len(sel) != 2 {
		t.Errorf("selection = %v, %v", sel, ok)
	}
	if f := decoded.Filters()["document_type"]; len(f) != 1 || f[0] != "Report" {
		t.Errorf("filter = %v", f)
	}
}

func TestRoundTripRowQueries(t *testing.T) {
	cfg := grid.NewConfiguration(grid.FieldQueries, "organization")
	cfg.SetRowQueries([]string{"climate finance", "", "food security"})

	decoded := Decode(Encode(cfg), testCatalog(), defaults())

	got := decoded.RowQueries()
	// Blank rows are dropped on encode; non-empty ones keep their order.
	want := []string{"climate finance", "food security"}
	if len(got) != len(want) {
		t.Fatalf("row queries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row query %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEncodeIsIdempotent(t *testing.T) {
	cfg := grid.NewConfiguration("organization", "published_year")
	cfg.SetQuery("health")
	cfg.SetFilter("document_type", []string{"Report", "Brief"})

	first := Encode(cfg).Encode()
	second := Encode(Decode(Encode(cfg), testCatalog(), defaults())).Encode()
	if first != second {
		t.Errorf("encode not stable across a round trip:\n%s\n%s", first, second)
	}
}

func TestDecodeIgnoresInvalidValues(t *testing.T) {
	v := url.Values{}
	v.Set(ParamRow, "no_such_field")
	v.Set(ParamCol, "also_missing")
	v.Set(ParamMetric, "bogus")
	v.Set(ParamCutoff, "not-a-number")
	v.Set("sel_unknown", "a,b")
	v.Set("f_unknown", "x")

	decoded := Decode(v, testCatalog(), defaults())

	if decoded.RowField() != "document_type" || decoded.ColField() != "published_year" {
		t.Errorf("invalid axes should fall back to defaults, got %s/%s",
			decoded.RowField(), decoded.ColField())
	}
	if decoded.Metric() != metric.Documents {
		t.Errorf("metric = %s, want default", decoded.Metric())
	}
	if decoded.Cutoff() != grid.DefaultCutoff {
		t.Errorf("cutoff = %v, want default", decoded.Cutoff())
	}
	if len(decoded.Selections()) != 0 || len(decoded.Filters()) != 0 {
		t.Error("unknown fields must be dropped")
	}
}

func TestDecodeNegativeCutoffIgnored(t *testing.T) {
	v := url.Values{}
	v.Set(ParamCutoff, "-0.5")

	if got := Decode(v, testCatalog(), defaults()).Cutoff(); got != grid.DefaultCutoff {
		t.Errorf("cutoff = %v, out-of-range value should be ignored", got)
	}
}

func TestRunFlagIsOneShotAndNeverReencoded(t *testing.T) {
	v := url.Values{}
	v.Set(ParamRun, "1")

	decoded := Decode(v, testCatalog(), defaults())
	if !decoded.AutoRunPending() {
		t.Fatal("run flag should decode to a pending auto-run")
	}

	// While pending the flag survives a re-encode (link sharing before load).
	if Encode(decoded).Get(ParamRun) != "1" {
		t.Error("pending run flag should encode")
	}

	if !decoded.ConsumeAutoRun() {
		t.Fatal("consume should fire exactly once")
	}
	if Encode(decoded).Get(ParamRun) != "" {
		t.Error("consumed run flag must be stripped from the URL")
	}
	if decoded.ConsumeAutoRun() {
		t.Error("run flag must not re-arm")
	}
}

func TestRoundTripExplicitEmptySelection(t *testing.T) {
	cfg := grid.NewConfiguration("organization", "published_year")
	cfg.SetSelection("published_year", []string{})

	decoded := Decode(Encode(cfg), testCatalog(), defaults())

	sel, ok := decoded.Selection("published_year")
	if !ok {
		t.Fatal("explicit empty selection lost in the round trip")
	}
	if len(sel) != 0 {
		t.Errorf("selection = %v, want empty", sel)
	}
}

func TestDecodePseudoFieldRowAllowed(t *testing.T) {
	v := url.Values{}
	v.Set(ParamRow, grid.FieldQueries)
	v.Add(ParamRowQuery, "climate")

	decoded := Decode(v, testCatalog(), defaults())
	if decoded.RowField() != grid.FieldQueries {
		t.Errorf("row = %s, pseudo-fields are valid row dimensions", decoded.RowField())
	}
	if qs := decoded.RowQueries(); len(qs) != 1 || qs[0] != "climate" {
		t.Errorf("row queries = %v", qs)
	}
}

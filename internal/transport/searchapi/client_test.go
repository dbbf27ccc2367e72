package searchapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/evidencelab/heatgrid/internal/domain"
	"github.com/evidencelab/heatgrid/internal/domain/grid"
	"github.com/evidencelab/heatgrid/internal/domain/search"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func rankedParams(query string) search.Params {
	ranking := grid.DefaultRanking()
	ranking.Rerank = true
	ranking.RerankModel = "cross-encoder-v2"
	ranking.SectionTypes = []string{"body", "summary"}
	ranking.DataSource = "docs"
	return search.NewParams(query, 50, map[string][]string{
		"organization":   {"UNDP"},
		"published_year": {"2022"},
	}, ranking)
}

func TestSearchEncodesRankedRequest(t *testing.T) {
	var got url.Values
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		got = r.URL.Query()
		_, _ = w.Write([]byte(`{"results":[
			{"id":"r1","document_id":"d1","score":0.92,"title":"T","organization":"UNDP","year":"2022","excerpt":"x","source_url":"http://u","page":3}
		]}`))
	})

	recs, err := c.Search(context.Background(), rankedParams("climate finance"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if path != "/search" {
		t.Errorf("path = %q, want /search", path)
	}
	if got.Get("query") != "climate finance" {
		t.Errorf("query param = %q", got.Get("query"))
	}
	if got.Get("limit") != "50" {
		t.Errorf("limit = %q", got.Get("limit"))
	}
	if got.Get("organization") != "UNDP" || got.Get("published_year") != "2022" {
		t.Errorf("filters missing: %v", got)
	}
	if got.Get("rerank") != "true" || got.Get("rerank_model") != "cross-encoder-v2" {
		t.Errorf("rerank params: %v", got)
	}
	if got.Get("section_types") != "body,summary" {
		t.Errorf("section_types = %q", got.Get("section_types"))
	}
	if got.Get("data_source") != "docs" {
		t.Errorf("data_source = %q", got.Get("data_source"))
	}

	if len(recs) != 1 {
		t.Fatalf("records = %d", len(recs))
	}
	r := recs[0]
	if r.ID() != "r1" || r.Score() != 0.92 || r.SourceURL() != "http://u" || r.Page() != 3 {
		t.Errorf("record = %+v", r)
	}
}

func TestSearchDocumentLevelVariant(t *testing.T) {
	var got url.Values
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		got = r.URL.Query()
		_, _ = w.Write([]byte(`{"results":[]}`))
	})

	p := search.NewDocumentParams(30, map[string][]string{"document_type": {"Report"}}, grid.DefaultRanking())
	if _, err := c.Search(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if path != "/documents" {
		t.Errorf("path = %q, want the document-level variant", path)
	}
	if got.Has("query") {
		t.Error("document-level request must not carry a query")
	}
	if got.Has("dense_weight") || got.Has("rerank") {
		t.Error("ranking knobs are meaningless without a query")
	}
	if got.Get("document_type") != "Report" {
		t.Errorf("filter missing: %v", got)
	}
}

func TestSearchNon2xx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.Search(context.Background(), rankedParams("q"))
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestCatalog(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/filters" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("data_source") != "docs" {
			t.Errorf("data_source = %q", r.URL.Query().Get("data_source"))
		}
		_, _ = w.Write([]byte(`{"fields":{
			"published_year":{"label":"Year","values":[{"value":"2022","count":10}]},
			"organization":{"label":"Organization","values":[{"value":"UNDP","count":4}]}
		}}`))
	})

	cat, err := c.Catalog(context.Background(), "docs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fields := cat.Fields()
	if len(fields) != 2 {
		t.Fatalf("fields = %d", len(fields))
	}
	// Normalized by name for determinism.
	if fields[0].Name() != "organization" || fields[1].Name() != "published_year" {
		t.Errorf("field order = %s, %s", fields[0].Name(), fields[1].Name())
	}
	if fields[1].Label() != "Year" || fields[1].Values()[0].Count != 10 {
		t.Errorf("field = %+v", fields[1])
	}
}

func TestCatalogUnavailable(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := c.Catalog(context.Background(), "docs"); !errors.Is(err, domain.ErrCatalogUnavailable) {
		t.Errorf("err = %v, want ErrCatalogUnavailable", err)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected an error for a missing base url")
	}
}

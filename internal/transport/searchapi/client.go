// Package searchapi is the HTTP client for the backend search service:
// the ranked-search endpoint, its document-level (query-less) variant,
// and the facet catalog endpoint.
package searchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/evidencelab/heatgrid/internal/domain"
	"github.com/evidencelab/heatgrid/internal/domain/grid"
	"github.com/evidencelab/heatgrid/internal/domain/record"
	"github.com/evidencelab/heatgrid/internal/domain/search"
)

// DefaultTimeout bounds one backend request.
const DefaultTimeout = 30 * time.Second

// Client talks to the search backend over HTTP.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *zap.Logger
}

// Config holds the backend connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a search backend client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

type resultsResponse struct {
	Results []recordDTO `json:"results"`
}

type recordDTO struct {
	ID           string  `json:"id"`
	DocumentID   string  `json:"document_id"`
	Score        float64 `json:"score"`
	Title        string  `json:"title"`
	Organization string  `json:"organization"`
	Year         string  `json:"year"`
	Excerpt      string  `json:"excerpt"`
	SourceURL    string  `json:"source_url"`
	Page         int     `json:"page"`
}

// Search executes one cell request. Ranked requests hit /search;
// document-level requests hit /documents and come back with score 0.
func (c *Client) Search(ctx context.Context, p search.Params) ([]record.Record, error) {
	path := "/search"
	if p.DocumentLevel() {
		path = "/documents"
	}

	var resp resultsResponse
	if err := c.getJSON(ctx, path, encodeParams(p), &resp); err != nil {
		return nil, err
	}

	recs := make([]record.Record, 0, len(resp.Results))
	for _, dto := range resp.Results {
		r := record.New(
			dto.ID, dto.DocumentID, dto.Score,
			dto.Title, dto.Organization, dto.Year, dto.Excerpt,
		)
		recs = append(recs, r.WithSource(dto.SourceURL, dto.Page))
	}
	return recs, nil
}

type catalogResponse struct {
	Fields map[string]catalogFieldDTO `json:"fields"`
}

type catalogFieldDTO struct {
	Label  string `json:"label"`
	Values []struct {
		Value string `json:"value"`
		Count int    `json:"count"`
	} `json:"values"`
}

// Catalog fetches the facet catalog for one data source. Field order is
// normalized by name so callers see a deterministic catalog.
func (c *Client) Catalog(ctx context.Context, dataSource string) (grid.Catalog, error) {
	q := url.Values{}
	if dataSource != "" {
		q.Set("data_source", dataSource)
	}

	var resp catalogResponse
	if err := c.getJSON(ctx, "/filters", q, &resp); err != nil {
		return grid.Catalog{}, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}

	names := make([]string, 0, len(resp.Fields))
	for name := range resp.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]grid.Field, 0, len(names))
	for _, name := range names {
		dto := resp.Fields[name]
		values := make([]grid.Value, 0, len(dto.Values))
		for _, v := range dto.Values {
			values = append(values, grid.Value{Value: v.Value, Count: v.Count})
		}
		fields = append(fields, grid.NewField(name, dto.Label, values))
	}
	return grid.NewCatalog(dataSource, fields), nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("backend returned non-2xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: %s returned %d", domain.ErrBackendUnavailable, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// encodeParams flattens a cell request into backend query parameters.
// Filter values repeat as field=value pairs; ranking knobs ride along
// only on ranked requests.
func encodeParams(p search.Params) url.Values {
	q := url.Values{}
	if p.Query() != "" {
		q.Set("query", p.Query())
	}
	q.Set("limit", strconv.Itoa(p.Limit()))

	for field, values := range p.Filters() {
		for _, v := range values {
			q.Add(field, v)
		}
	}

	r := p.Ranking()
	if r.DataSource != "" {
		q.Set("data_source", r.DataSource)
	}
	if p.DocumentLevel() {
		return q
	}

	q.Set("dense_weight", strconv.FormatFloat(r.DenseWeight, 'f', -1, 64))
	q.Set("rerank", strconv.FormatBool(r.Rerank))
	if r.Rerank && r.RerankModel != "" {
		q.Set("rerank_model", r.RerankModel)
	}
	q.Set("recency_boost", strconv.FormatBool(r.RecencyBoost))
	if r.RecencyBoost {
		q.Set("recency_weight", strconv.FormatFloat(r.RecencyWeight, 'f', -1, 64))
		q.Set("recency_scale_days", strconv.Itoa(r.RecencyScaleDays))
	}
	if len(r.SectionTypes) > 0 {
		q.Set("section_types", strings.Join(r.SectionTypes, ","))
	}
	q.Set("keyword_boost_short_queries", strconv.FormatBool(r.KeywordBoostShortQueries))
	if r.MinChunkSize > 0 {
		q.Set("min_chunk_size", strconv.Itoa(r.MinChunkSize))
	}
	if r.Dedup {
		q.Set("dedup", "true")
	}
	if len(r.FieldBoosts) > 0 {
		boosts := make([]string, 0, len(r.FieldBoosts))
		for field, w := range r.FieldBoosts {
			boosts = append(boosts, field+":"+strconv.FormatFloat(w, 'f', -1, 64))
		}
		sort.Strings(boosts)
		q.Set("field_boosts", strings.Join(boosts, ","))
	}
	if r.Model != "" {
		q.Set("model", r.Model)
	}
	return q
}

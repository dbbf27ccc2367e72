package heatgrid

import (
	"time"

	"go.uber.org/zap"

	"github.com/evidencelab/heatgrid/internal/repository/catalog"
	"github.com/evidencelab/heatgrid/internal/usecase/run"
)

// Option configures a Controller.
type Option func(*controllerConfig)

type controllerConfig struct {
	backendURL       string
	backendTimeout   time.Duration
	dataSource       string
	batchSize        int
	batchInterval    time.Duration
	cutoffPercentile float64
	maxAxisValues    int
	resultsPerCell   int
	urlSyncDelay     time.Duration
	logger           *zap.Logger

	// Injection points, primarily for embedding and tests.
	searcher run.Searcher
	fetcher  catalog.Fetcher
}

// WithBackend sets the search backend base URL.
func WithBackend(baseURL string) Option {
	return func(c *controllerConfig) { c.backendURL = baseURL }
}

// WithBackendTimeout sets the per-request backend timeout.
func WithBackendTimeout(d time.Duration) Option {
	return func(c *controllerConfig) { c.backendTimeout = d }
}

// WithDataSource selects the backend data source.
func WithDataSource(name string) Option {
	return func(c *controllerConfig) { c.dataSource = name }
}

// WithBatchSize caps the number of in-flight cell requests.
func WithBatchSize(n int) Option {
	return func(c *controllerConfig) { c.batchSize = n }
}

// WithBatchInterval sets the pause between request batches.
func WithBatchInterval(d time.Duration) Option {
	return func(c *controllerConfig) { c.batchInterval = d }
}

// WithCutoffPercentile sets the kept top fraction of the observed score
// range for automatic cutoff estimation.
func WithCutoffPercentile(p float64) Option {
	return func(c *controllerConfig) { c.cutoffPercentile = p }
}

// WithMaxAxisValues bounds the number of values per grid axis.
func WithMaxAxisValues(n int) Option {
	return func(c *controllerConfig) { c.maxAxisValues = n }
}

// WithResultsPerCell sets the backend result limit per cell.
func WithResultsPerCell(n int) Option {
	return func(c *controllerConfig) { c.resultsPerCell = n }
}

// WithURLSyncDelay sets the debounce delay for URL change notifications.
func WithURLSyncDelay(d time.Duration) Option {
	return func(c *controllerConfig) { c.urlSyncDelay = d }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *controllerConfig) { c.logger = l }
}

// WithSearcher injects a custom cell searcher, bypassing the HTTP
// backend client.
func WithSearcher(s run.Searcher) Option {
	return func(c *controllerConfig) { c.searcher = s }
}

// WithCatalogFetcher injects a custom facet catalog source.
func WithCatalogFetcher(f catalog.Fetcher) Option {
	return func(c *controllerConfig) { c.fetcher = f }
}

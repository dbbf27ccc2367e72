// Package catalog loads and caches the facet catalog: per data source,
// the filterable fields with their display labels and value/count lists.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/evidencelab/heatgrid/internal/db"
	"github.com/evidencelab/heatgrid/internal/domain"
	"github.com/evidencelab/heatgrid/internal/domain/grid"
	"github.com/evidencelab/heatgrid/internal/metrics"
)

// DefaultTTL is how long a cached catalog stays fresh.
const DefaultTTL = 15 * time.Minute

// DefaultSuggestLimit caps the suggestion list per request.
const DefaultSuggestLimit = 10

const cacheKeyPrefix = "heatgrid:catalog:"

// Fetcher loads the catalog from the backend.
type Fetcher interface {
	Catalog(ctx context.Context, dataSource string) (grid.Catalog, error)
}

// Repo serves catalogs with an optional Redis cache in front of the
// backend fetch.
type Repo struct {
	fetcher Fetcher
	kv      db.KVStore // nil disables caching
	ttl     time.Duration
	logger  *zap.Logger
}

// New creates a catalog repository.
func New(fetcher Fetcher, kv db.KVStore, ttl time.Duration, logger *zap.Logger) *Repo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Repo{fetcher: fetcher, kv: kv, ttl: ttl, logger: logger}
}

// Catalog returns the facet catalog for a data source, preferring the
// cache. Cache failures are logged and fall through to the backend.
func (r *Repo) Catalog(ctx context.Context, dataSource string) (grid.Catalog, error) {
	key := cacheKeyPrefix + dataSource

	if r.kv != nil {
		data, err := r.kv.Get(ctx, key)
		switch {
		case err == nil:
			if cat, uerr := unmarshalCatalog(data); uerr == nil {
				metrics.CatalogCacheTotal.WithLabelValues("hit").Inc()
				return cat, nil
			}
			// Corrupt entry: drop and refetch.
			_ = r.kv.Del(ctx, key)
		case !errors.Is(err, db.ErrKeyNotFound):
			r.logger.Warn("catalog cache read failed", zap.Error(err))
		}
		metrics.CatalogCacheTotal.WithLabelValues("miss").Inc()
	}

	cat, err := r.fetcher.Catalog(ctx, dataSource)
	if err != nil {
		return grid.Catalog{}, fmt.Errorf("fetch catalog: %w", err)
	}

	if r.kv != nil {
		if data, merr := marshalCatalog(cat); merr == nil {
			if serr := r.kv.SetWithTTL(ctx, key, data, r.ttl); serr != nil {
				r.logger.Warn("catalog cache write failed", zap.Error(serr))
			}
		}
	}
	return cat, nil
}

// Invalidate discards the cached catalog for a data source, used when a
// dimension mismatch against the active data source is detected.
func (r *Repo) Invalidate(ctx context.Context, dataSource string) {
	if r.kv == nil {
		return
	}
	if err := r.kv.Del(ctx, cacheKeyPrefix+dataSource); err != nil {
		r.logger.Warn("catalog cache invalidate failed", zap.Error(err))
	}
}

// Suggest returns facet values of one field matching a typed fragment,
// ordered by descending document count (value as tiebreak).
func (r *Repo) Suggest(
	ctx context.Context, dataSource, field, fragment string, limit int,
) ([]grid.Value, error) {
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}

	cat, err := r.Catalog(ctx, dataSource)
	if err != nil {
		return nil, err
	}
	f, ok := cat.FieldByName(field)
	if !ok {
		return nil, fmt.Errorf("field %q: %w", field, domain.ErrFieldUnknown)
	}

	needle := strings.ToLower(fragment)
	matched := make([]grid.Value, 0, limit)
	for _, v := range f.Values() {
		if needle == "" || strings.Contains(strings.ToLower(v.Value), needle) {
			matched = append(matched, v)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Count != matched[j].Count {
			return matched[i].Count > matched[j].Count
		}
		return matched[i].Value < matched[j].Value
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

type catalogDTO struct {
	DataSource string     `json:"data_source"`
	Fields     []fieldDTO `json:"fields"`
}

type fieldDTO struct {
	Name   string       `json:"name"`
	Label  string       `json:"label"`
	Values []grid.Value `json:"values"`
}

func marshalCatalog(cat grid.Catalog) ([]byte, error) {
	dto := catalogDTO{DataSource: cat.DataSource()}
	for _, f := range cat.Fields() {
		dto.Fields = append(dto.Fields, fieldDTO{Name: f.Name(), Label: f.Label(), Values: f.Values()})
	}
	return json.Marshal(dto)
}

func unmarshalCatalog(data []byte) (grid.Catalog, error) {
	var dto catalogDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return grid.Catalog{}, fmt.Errorf("unmarshal catalog: %w", err)
	}
	fields := make([]grid.Field, 0, len(dto.Fields))
	for _, f := range dto.Fields {
		fields = append(fields, grid.NewField(f.Name, f.Label, f.Values))
	}
	return grid.NewCatalog(dto.DataSource, fields), nil
}

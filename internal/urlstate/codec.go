// Package urlstate serializes the full grid configuration to and from
// a URL query string, so a grid can be bookmarked, shared, and replayed
// deterministically.
//
// Decoding is forgiving by design: structurally invalid parameters
// (unknown fields, unparseable numbers) are silently dropped in favor
// of the provided defaults — a bad deep link must never block the
// initial render.
package urlstate

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/evidencelab/heatgrid/internal/domain/grid"
	"github.com/evidencelab/heatgrid/internal/domain/grid/metric"
)

// Query parameters owned by this subsystem. Per-field axis selections
// and global filters use the sel_/f_ prefixes with comma-joined values.
const (
	ParamRow      = "hm_row"
	ParamCol      = "hm_col"
	ParamMetric   = "hm_metric"
	ParamCutoff   = "hm_sens"
	ParamQuery    = "hm_q"
	ParamRowQuery = "hm_row_q" // repeatable
	ParamRun      = "hm_run"

	filterPrefix = "f_"
	selectPrefix = "sel_"
)

// Encode serializes a configuration into URL query values. The one-shot
// run flag is included only while it is still pending, so a URL
// re-encoded after the run starts never re-triggers it.
func Encode(cfg *grid.Configuration) url.Values {
	v := url.Values{}
	v.Set(ParamRow, cfg.RowField())
	v.Set(ParamCol, cfg.ColField())
	v.Set(ParamMetric, string(cfg.Metric()))
	v.Set(ParamCutoff, strconv.FormatFloat(cfg.Cutoff(), 'f', -1, 64))

	if grid.IsPseudoField(cfg.RowField()) {
		for _, q := range cfg.RowQueries() {
			if strings.TrimSpace(q) != "" {
				v.Add(ParamRowQuery, q)
			}
		}
	} else if cfg.Query() != "" {
		v.Set(ParamQuery, cfg.Query())
	}

	for field, values := range cfg.Selections() {
		v.Set(selectPrefix+field, strings.Join(values, ","))
	}
	for field, values := range cfg.Filters() {
		v.Set(filterPrefix+field, strings.Join(values, ","))
	}

	if cfg.AutoRunPending() {
		v.Set(ParamRun, "1")
	}
	return v
}

// Decode overlays URL query values onto a copy of the defaults,
// validating every parameter against the loaded facet catalog.
func Decode(values url.Values, cat grid.Catalog, defaults *grid.Configuration) *grid.Configuration {
	cfg := defaults.Clone()

	if row := values.Get(ParamRow); row != "" {
		if grid.IsPseudoField(row) || cat.HasField(row) {
			cfg.SetRowField(row)
		}
	}
	if col := values.Get(ParamCol); col != "" && cat.HasField(col) {
		cfg.SetColField(col)
	}
	if m := metric.Mode(values.Get(ParamMetric)); m.IsValid() {
		cfg.SetMetric(m)
	}
	if raw := values.Get(ParamCutoff); raw != "" {
		if cutoff, err := strconv.ParseFloat(raw, 64); err == nil && cutoff >= 0 {
			// A deep-linked cutoff does not count as a manual move: a
			// subsequent run may still re-estimate it from fresh data.
			cfg.ResetCutoff(cutoff)
		}
	}

	if grid.IsPseudoField(cfg.RowField()) {
		if qs := values[ParamRowQuery]; len(qs) > 0 {
			cfg.SetRowQueries(qs)
		}
	} else if q := values.Get(ParamQuery); q != "" {
		cfg.SetQuery(q)
	}

	for key := range values {
		field, ok := strings.CutPrefix(key, selectPrefix)
		if !ok || !cat.HasField(field) {
			continue
		}
		cfg.SetSelection(field, splitList(values.Get(key)))
	}
	for key := range values {
		field, ok := strings.CutPrefix(key, filterPrefix)
		if !ok || !cat.HasField(field) {
			continue
		}
		if list := splitList(values.Get(key)); len(list) > 0 {
			cfg.SetFilter(field, list)
		}
	}

	if run := values.Get(ParamRun); run == "1" || run == "true" {
		cfg.SetAutoRun(true)
	}
	return cfg
}

// splitList parses a comma-joined value list, dropping empty entries.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

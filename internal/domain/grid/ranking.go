package grid

// Ranking defaults.
const (
	DefaultDenseWeight      = 0.5
	DefaultRecencyWeight    = 0.3
	DefaultRecencyScaleDays = 365
	DefaultMinChunkSize     = 100
	DefaultResultsPerCell   = 100
)

// Ranking holds the per-request ranking knobs forwarded to the search
// backend. All cells of one run share the same ranking configuration.
type Ranking struct {
	DenseWeight              float64            `json:"dense_weight"`
	Rerank                   bool               `json:"rerank"`
	RerankModel              string             `json:"rerank_model,omitempty"`
	RecencyBoost             bool               `json:"recency_boost"`
	RecencyWeight            float64            `json:"recency_weight"`
	RecencyScaleDays         int                `json:"recency_scale_days"`
	SectionTypes             []string           `json:"section_types,omitempty"`
	KeywordBoostShortQueries bool               `json:"keyword_boost_short_queries"`
	MinChunkSize             int                `json:"min_chunk_size"`
	Dedup                    bool               `json:"dedup"`
	FieldBoosts              map[string]float64 `json:"field_boosts,omitempty"`
	Model                    string             `json:"model,omitempty"`
	DataSource               string             `json:"data_source,omitempty"`
	ResultsPerCell           int                `json:"results_per_cell"`
}

// DefaultRanking returns the ranking configuration used when the URL
// or the caller specifies nothing.
func DefaultRanking() Ranking {
	return Ranking{
		DenseWeight:      DefaultDenseWeight,
		RecencyWeight:    DefaultRecencyWeight,
		RecencyScaleDays: DefaultRecencyScaleDays,
		MinChunkSize:     DefaultMinChunkSize,
		ResultsPerCell:   DefaultResultsPerCell,
	}
}

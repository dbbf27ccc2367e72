package record

// Record is a single search hit returned by the backend for one cell.
// A score of 0 means the hit came from a filter-only (query-less) match
// and carries no ranking signal.
type Record struct {
	id           string
	documentID   string
	score        float64
	title        string
	organization string
	year         string
	excerpt      string
	sourceURL    string
	page         int
}

// New creates a search hit.
func New(
	id, documentID string, score float64,
	title, organization, year, excerpt string,
) Record {
	return Record{
		id: id, documentID: documentID, score: score,
		title: title, organization: organization, year: year, excerpt: excerpt,
	}
}

// WithSource attaches source location metadata to the record.
func (r Record) WithSource(url string, page int) Record {
	r.sourceURL = url
	r.page = page
	return r
}

// ID returns the unique hit identifier.
func (r *Record) ID() string { return r.id }

// DocumentID returns the owning document identifier.
func (r *Record) DocumentID() string { return r.documentID }

// Score returns the relevance score (0 for filter-only matches).
func (r *Record) Score() float64 { return r.score }

// Title returns the document title.
func (r *Record) Title() string { return r.title }

// Organization returns the publishing organization.
func (r *Record) Organization() string { return r.organization }

// Year returns the publication year as reported by the backend.
func (r *Record) Year() string { return r.year }

// Excerpt returns the matched text excerpt.
func (r *Record) Excerpt() string { return r.excerpt }

// SourceURL returns the source document URL.
func (r *Record) SourceURL() string { return r.sourceURL }

// Page returns the page number of the excerpt within the document.
func (r *Record) Page() int { return r.page }

// DocKey is the composite distinct-document key.
// Known approximation: two genuinely different documents sharing
// title, year, and organization collapse into one.
type DocKey struct {
	Title        string
	Year         string
	Organization string
}

// DocKey returns the record's composite document key.
func (r *Record) DocKey() DocKey {
	return DocKey{Title: r.title, Year: r.year, Organization: r.organization}
}

// IsBlank reports whether every component of the key is empty.
// Blank-key records are never counted as documents: collapsing
// unrelated records with missing metadata into one bucket would
// undercount, and counting each would overcount.
func (k DocKey) IsBlank() bool {
	return k.Title == "" && k.Year == "" && k.Organization == ""
}

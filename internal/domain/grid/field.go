package grid

// Reserved pseudo-fields for the row axis. Their row values are entered
// by the user (free-text queries or chosen document titles), not drawn
// from the facet catalog.
const (
	// FieldQueries makes each row a free-text search query.
	FieldQueries = "queries"
	// FieldTitle makes each row a document title chosen from a title search.
	FieldTitle = "title"
)

// IsPseudoField reports whether the field's row values are user-entered
// rather than catalog-derived.
func IsPseudoField(name string) bool {
	return name == FieldQueries || name == FieldTitle
}

// Value is one distinct value of a categorical field with its document count.
type Value struct {
	Value string
	Count int
}

// Field is a filterable categorical field from the facet catalog.
type Field struct {
	name   string
	label  string
	values []Value
}

// NewField creates a catalog field.
func NewField(name, label string, values []Value) Field {
	return Field{name: name, label: label, values: values}
}

// Name returns the field identifier.
func (f *Field) Name() string { return f.name }

// Label returns the human-readable field label.
func (f *Field) Label() string { return f.label }

// Values returns the distinct values with counts, in catalog order.
func (f *Field) Values() []Value { return f.values }

// Catalog is the facet catalog for one data source.
type Catalog struct {
	dataSource string
	fields     []Field
}

// NewCatalog creates a facet catalog.
func NewCatalog(dataSource string, fields []Field) Catalog {
	return Catalog{dataSource: dataSource, fields: fields}
}

// DataSource returns the data source the catalog was loaded for.
func (c *Catalog) DataSource() string { return c.dataSource }

// Fields returns all filterable fields in catalog order.
func (c *Catalog) Fields() []Field { return c.fields }

// FieldByName looks up a field by identifier.
func (c *Catalog) FieldByName(name string) (Field, bool) {
	for _, f := range c.fields {
		if f.name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasField reports whether the catalog contains the field. Pseudo-fields
// never appear in a catalog; row-dimension callers accept them via
// IsPseudoField before consulting the catalog.
func (c *Catalog) HasField(name string) bool {
	_, ok := c.FieldByName(name)
	return ok
}

// IsEmpty reports whether the catalog has no fields (not loaded yet).
func (c *Catalog) IsEmpty() bool { return len(c.fields) == 0 }

package metric

// Mode selects how a cell's displayed count is computed.
type Mode string

// Metric mode constants.
const (
	// Documents counts distinct documents by (title, year, organization).
	Documents Mode = "documents"
	// Items counts filtered records directly, without deduplication.
	Items Mode = "items"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Documents || m == Items
}

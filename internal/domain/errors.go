package domain

import "errors"

var (
	// ErrNotFound signals a missing resource (grid session, cell).
	ErrNotFound = errors.New("not found")
	// ErrFieldUnknown signals a field name absent from the facet catalog.
	ErrFieldUnknown = errors.New("unknown field")
	// ErrCatalogUnavailable signals that the facet catalog could not be loaded.
	ErrCatalogUnavailable = errors.New("facet catalog unavailable")
	// ErrBackendUnavailable signals a search backend failure.
	ErrBackendUnavailable = errors.New("search backend unavailable")
	// ErrInvalidConfig signals an invalid grid configuration.
	ErrInvalidConfig = errors.New("invalid grid configuration")
)

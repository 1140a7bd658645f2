package domain

import "errors"

// KeyPrefix namespaces every key taxdex writes to the shared key-value store.
const KeyPrefix = "taxdex:"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery signals a query that failed compilation.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrUnknownField signals a field that is not declared in the schema.
	ErrUnknownField = errors.New("unknown field")
	// ErrUnknownSummary signals an unsupported summary function.
	ErrUnknownSummary = errors.New("unknown summary function")
	// ErrSchemaUnavailable signals that no schema could be fetched or served from cache.
	ErrSchemaUnavailable = errors.New("schema unavailable")
	// ErrInvalidRequest signals request parameters that failed validation.
	ErrInvalidRequest = errors.New("invalid request")
)

// File path: internal/context/errors.go
package context

import "fmt"

// EmbeddingError wraps a failure of the embedding provider. Fatal to the
// assembly call and never retried here; retry policy belongs to the caller.
type EmbeddingError struct {
	Provider string
	Err      error
}

func (e EmbeddingError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e EmbeddingError) Unwrap() error { return e.Err }

// StorageError wraps an unreachable or failing store. A half-available
// context is worse than a loud failure, so no partial bundle is ever
// returned in its place.
type StorageError struct {
	Store string
	Err   error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("%s store: %v", e.Store, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }

// InvalidOptionsError reports an assembly parameter outside its allowed
// range.
type InvalidOptionsError struct {
	Field  string
	Value  any
	Reason string
}

func (e InvalidOptionsError) Error() string {
	return fmt.Sprintf("invalid option %s=%v: %s", e.Field, e.Value, e.Reason)
}

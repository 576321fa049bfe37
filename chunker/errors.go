package chunker

import (
	"errors"
	"fmt"
)

// Sentinel errors for chunk source failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrSourceUnavailable indicates the source file could not be opened.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceRead indicates a read fault after the source was opened;
	// the chunk sequence terminates early.
	ErrSourceRead = errors.New("source read fault")

	errInvalidChunkSize = errors.New("chunk size must be positive")
)

// SourceError wraps an underlying error with source failure classification.
type SourceError struct {
	// Kind is the sentinel error for classification.
	Kind error
	// Op is the operation that failed (e.g. "open", "read").
	Op string
	// Path is the source file path.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *SourceError) Error() string {
	if e.Kind != nil {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *SourceError) Is(target error) bool {
	return e.Kind != nil && errors.Is(e.Kind, target)
}

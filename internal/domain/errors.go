package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnmappedValue signals a catalog attribute value with no bucket mapping.
	// Fatal for the ranking run: a candidate that cannot be normalized cannot
	// be scored, and dropping it silently would corrupt tier sizes.
	ErrUnmappedValue = errors.New("unmapped category value")
	// ErrEmptyCatalog signals a scoring attempt against an empty catalog.
	ErrEmptyCatalog = errors.New("plant catalog is empty")
	// ErrQueryKind signals a query variant handed to the wrong scorer.
	ErrQueryKind = errors.New("query kind not supported by scorer")
	// ErrSubmissionNotFound signals an unknown submission id.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrPlantNotFound signals an unknown plant id.
	ErrPlantNotFound = errors.New("plant not found")
	// ErrAnswerNotFound signals a questionnaire selection referencing an
	// unknown question or answer id.
	ErrAnswerNotFound = errors.New("answer option not found")
	// ErrInvalidRating signals a rating outside the accepted 1-5 range.
	ErrInvalidRating = errors.New("rating out of range")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrPartialWrite signals that a recommendation batch was only partially
	// persisted.
	ErrPartialWrite = errors.New("partial recommendation write")
)

// PartialWriteError wraps ErrPartialWrite with how far the batch got before
// failing. The caller decides whether the durable prefix is kept or the
// whole submission rolled back.
type PartialWriteError struct {
	Recorded int
	Total    int
	Err      error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s: %d of %d recorded: %v", ErrPartialWrite.Error(), e.Recorded, e.Total, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return ErrPartialWrite }

// NewPartialWrite creates a partial write error.
func NewPartialWrite(recorded, total int, err error) error {
	return &PartialWriteError{Recorded: recorded, Total: total, Err: err}
}

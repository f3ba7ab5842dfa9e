package docstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the document, or every candidate of a lookup, is absent.
	ErrNotFound = errors.New("not found")
	// ErrStore wraps transport and backend failures. Callers may retry.
	ErrStore = errors.New("document store failure")
	// ErrValidation is returned before any network call when input is invalid.
	ErrValidation = errors.New("validation failed")
	// ErrConflict means a guarded write found the document changed.
	ErrConflict = errors.New("document changed")
	// ErrDecoding means a stored document does not match the expected shape.
	ErrDecoding = errors.New("document decoding failed")
)

// StoreError wraps err as an ErrStore for op. Not-found, validation and
// conflict errors pass through unchanged so callers can still tell them apart.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict) || errors.Is(err, ErrStore) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// Invalid builds an ErrValidation with a message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

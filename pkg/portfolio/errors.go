package portfolio

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrNotFound indicates an object is absent from the store.
	// Registry.Load turns it into an empty document; everywhere else it is an error.
	ErrNotFound = errors.New("object not found")

	// ErrConditionFailed is returned by stores when a conditional write does not match
	ErrConditionFailed = errors.New("precondition failed")

	// ErrDecodeFailure indicates a stored registry document is corrupt
	ErrDecodeFailure = errors.New("registry document could not be decoded")

	// ErrDuplicateID indicates a record id is already present in the document
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrConflict indicates a concurrent writer committed first
	ErrConflict = errors.New("registry document was modified concurrently")

	// ErrTooManyConflicts indicates the retry budget was exhausted
	ErrTooManyConflicts = errors.New("too many concurrent modifications")

	// ErrStorageUnavailable indicates a transient failure of the backing store
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidInput indicates a malformed caller-supplied value
	ErrInvalidInput = errors.New("invalid input")

	// ErrItemNotFound indicates no record with the requested id exists
	ErrItemNotFound = errors.New("item not found")

	// ErrUnknownCollection indicates the collection is not configured
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrURLsUnsupported indicates a store cannot issue delegated URLs
	ErrURLsUnsupported = errors.New("store does not issue delegated URLs")
)

// RegistryError represents an error related to a registry operation on one collection
type RegistryError struct {
	Collection string
	Op         string
	Err        error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry operation %s failed for collection %s: %v", e.Op, e.Collection, e.Err)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// InvalidInputf builds an error wrapping ErrInvalidInput.
func InvalidInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Unavailable wraps err so that errors.Is(err, ErrStorageUnavailable) holds.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

package blobstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a store file or an entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEntryNotFound is returned by Lookup when no index line carries the requested name.
	ErrEntryNotFound = fmt.Errorf("entry %w", ErrNotFound)

	// ErrBadRequest is returned when a caller supplies missing or invalid input.
	ErrBadRequest = errors.New("bad request")
)

// FormatError reports a malformed header or index line.
// The store is corrupt or was built incorrectly.
type FormatError struct {
	Reason string
	Line   string
}

func (e *FormatError) Error() string {
	if e.Line == "" {
		return "blobstore: " + e.Reason
	}
	return fmt.Sprintf("blobstore: %s: %q", e.Reason, e.Line)
}

// IOError reports a failed seek, a short read or an unusable scratch file.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("blobstore: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func formatErr(reason string) error {
	return &FormatError{Reason: reason}
}

func ioErr(op string, err error) error {
	return &IOError{Op: op, Err: err}
}

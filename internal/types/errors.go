package types

import (
	"fmt"
)

// ErrFileNotExists is an error when a record does not exist in the store
type ErrFileNotExists struct {
	ID ID
}

func (e ErrFileNotExists) Error() string {
	return fmt.Sprintf("No record found ID %v", e.ID)
}

// ErrValidation is returned by Put when the input is malformed
type ErrValidation struct {
	Field  string
	Reason string
}

func (e ErrValidation) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrStorageFull is returned when the quota or the medium itself rejects a write.
// Available is -1 when the medium did not report how much room is left.
type ErrStorageFull struct {
	Requested int64
	Available int64
	Err       error
}

func (e ErrStorageFull) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage full: requested %d bytes: %v", e.Requested, e.Err)
	}
	return fmt.Sprintf("storage full: requested %d bytes, %d available", e.Requested, e.Available)
}

func (e ErrStorageFull) Unwrap() error {
	return e.Err
}

// ErrStorageUnavailable is returned when the underlying medium cannot be opened
type ErrStorageUnavailable struct {
	Path string
	Err  error
}

func (e ErrStorageUnavailable) Error() string {
	return fmt.Sprintf("storage unavailable at %s: %v", e.Path, e.Err)
}

func (e ErrStorageUnavailable) Unwrap() error {
	return e.Err
}

// Package apperr defines the error kinds shared by the storage and index layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrParse            = errors.New("parse error")
	ErrCorrupt          = errors.New("corrupt")
	ErrStorageIO        = errors.New("storage i/o error")
	ErrInvalidPath      = errors.New("invalid path")
	ErrStorageNotLoaded = errors.New("storage not loaded")
)

// ParseError reports a malformed token in structured input.
type ParseError struct {
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s: %q", e.Reason, e.Token)
}

// Unwrap lets errors.Is(err, ErrParse) match.
func (e *ParseError) Unwrap() error { return ErrParse }

// IO wraps a filesystem failure so that both ErrStorageIO and the
// underlying error are visible to errors.Is.
func IO(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageIO, err)
}

// Known reports whether err already carries one of the taxonomy kinds.
func Known(err error) bool {
	for _, k := range []error{ErrNotFound, ErrConflict, ErrParse, ErrCorrupt, ErrStorageIO, ErrInvalidPath, ErrStorageNotLoaded} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

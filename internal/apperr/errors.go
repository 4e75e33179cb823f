// Package apperr defines sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// Extraction failures. Each aborts extraction of a single note.
	ErrFileUnreadable     = errors.New("file unreadable")
	ErrMalformedMetadata  = errors.New("malformed metadata")
	ErrNoteNameUnreadable = errors.New("note name cannot be read")
	ErrUnhandledFiletype  = errors.New("unhandled filetype")
)

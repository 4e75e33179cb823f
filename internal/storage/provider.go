// Package storage gives read access to the note files of a vault.
package storage

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/starford/marginalia/internal/models"
)

// Provider is the interface for vault file access. Paths are relative to
// the vault root.
type Provider interface {
	// List returns metadata for every note file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Abs resolves path to an absolute path inside the vault.
	Abs(path string) (string, error)
	// Handles reports whether path is a note file: its extension is one of
	// the vault's note extensions and no ignore pattern matches it.
	Handles(path string) bool
	// SkipDir reports whether the directory at path is excluded from the
	// vault by an ignore pattern.
	SkipDir(path string) bool
}

// Checksum returns the hex-encoded SHA-256 digest of a note's content. The
// index compares it against List results to find changed notes.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

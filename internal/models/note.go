// Package models defines the domain types for marginalia.
package models

import "time"

// Note is the metadata extracted from one note file. It is a point-in-time
// snapshot: it keeps no reference to the file and is never mutated.
type Note struct {
	// DisplayName is the front matter title, or the file stem without one.
	DisplayName string `json:"display_name"`
	// Name is the file stem. It is never canonicalized.
	Name string `json:"name"`
	// Tags found in the body followed by tags from the front matter.
	Tags []string `json:"tags"`
	// Links to other notes, no external (e.g. web) links.
	Links      []string `json:"links"`
	Words      int      `json:"words"`
	Characters int      `json:"characters"`
	Path       string   `json:"path"`
}

// NoteMetadata is a lightweight representation returned by vault listings.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

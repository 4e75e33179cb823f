package api

import (
	"github.com/starford/marginalia/internal/index"
	"github.com/starford/marginalia/internal/noteservice"
)

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path        string `json:"path" example:"biology/Birds.md" validate:"required"`
	ID          string `json:"id" example:"birds" validate:"required"`
	DisplayName string `json:"display_name" example:"Birds" validate:"required"`
	Snippet     string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// GraphResponse wraps the link graph.
type GraphResponse struct {
	Nodes []index.GraphNode `json:"nodes" validate:"required"`
	Links []index.GraphLink `json:"links" validate:"required"`
}

// BacklinksResponse lists the vault paths of linking notes.
type BacklinksResponse struct {
	Backlinks []string `json:"backlinks" validate:"required"`
}

// ExportResponse is returned after a document was built.
type ExportResponse struct {
	Path string `json:"path" example:"/vault/.pdf/birds.pdf" validate:"required"`
}

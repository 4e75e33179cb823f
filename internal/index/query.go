package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/noteid"
)

// Sort keys accepted by ListNotes.
const (
	SortName       = "name"
	SortWords      = "words"
	SortCharacters = "characters"
	SortUpdatedAt  = "updated_at"
)

var sortColumns = map[string]string{
	SortName:       "name COLLATE NOCASE",
	SortWords:      "words",
	SortCharacters: "characters",
	SortUpdatedAt:  "updated_at",
}

// Page size bounds for ListNotes.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ListQuery filters and orders ListNotes.
type ListQuery struct {
	// Tag keeps notes carrying the tag itself or any tag below it in the
	// hierarchy: "#biology" matches "#biology/birds". The '#' is optional.
	Tag    string
	Sort   string
	Desc   bool
	Limit  int
	Offset int
}

// GraphNode is a note in the link graph.
type GraphNode struct {
	ID          string   `json:"id"`
	Path        string   `json:"path"`
	DisplayName string   `json:"display_name"`
	Tags        []string `json:"tags"`
}

// GraphLink is an edge from a note to a canonical id. The target need not
// be an indexed note.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

const noteColumns = `path, id, name, display_name, tags, words, characters, checksum, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*NoteRow, error) {
	var (
		n    NoteRow
		tags string
	)
	if err := s.Scan(&n.Path, &n.ID, &n.Name, &n.DisplayName, &tags, &n.Words, &n.Characters, &n.Checksum, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
		return nil, fmt.Errorf("index: decode tags of %s: %w", n.Path, err)
	}
	return &n, nil
}

// GetNote returns the note with the canonical form of id. When several notes
// share an id the one with the smallest path wins.
func (db *DB) GetNote(id string) (*NoteRow, error) {
	row := db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ? ORDER BY path LIMIT 1`, noteid.Canonicalize(id))
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %q: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return n, nil
}

// tagMatch holds for notes carrying tag ?1 or any tag below it in the
// hierarchy: "#Biology" matches "#Biology/Birds" but not "#Biologyx".
const tagMatch = `EXISTS (
	SELECT 1 FROM json_each(notes.tags)
	WHERE json_each.value = ?1
	   OR substr(json_each.value, 1, length(?1) + 1) = ?1 || '/'
)`

func normalizeTag(tag string) string {
	if !strings.HasPrefix(tag, "#") {
		return "#" + tag
	}
	return tag
}

// ListNotes returns one page of notes and the total number of matches.
func (db *DB) ListNotes(q ListQuery) ([]NoteRow, int, error) {
	var (
		where string
		args  []any
	)
	if q.Tag != "" {
		where = ` WHERE ` + tagMatch
		args = append(args, normalizeTag(q.Tag))
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	col, ok := sortColumns[q.Sort]
	if !ok {
		col = sortColumns[SortName]
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	offset := max(q.Offset, 0)

	query := fmt.Sprintf(`SELECT %s FROM notes%s ORDER BY %s %s, path ASC LIMIT %d OFFSET %d`,
		noteColumns, where, col, dir, limit, offset)
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	out := []NoteRow{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// Graph returns every note and every link between notes and canonical ids.
func (db *DB) Graph() ([]GraphNode, []GraphLink, error) {
	rows, err := db.conn.Query(`SELECT id, path, display_name, tags FROM notes ORDER BY path`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	nodes := []GraphNode{}
	for rows.Next() {
		var (
			n    GraphNode
			tags string
		)
		if err := rows.Scan(&n.ID, &n.Path, &n.DisplayName, &tags); err != nil {
			rows.Close()
			return nil, nil, err
		}
		if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("index: decode tags of %s: %w", n.Path, err)
		}
		nodes = append(nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	rows, err = db.conn.Query(`
		SELECT notes.id, links.target
		FROM links JOIN notes ON notes.path = links.source
		ORDER BY links.source, links.target
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer rows.Close()
	links := []GraphLink{}
	for rows.Next() {
		var l GraphLink
		if err := rows.Scan(&l.Source, &l.Target); err != nil {
			return nil, nil, err
		}
		links = append(links, l)
	}
	return nodes, links, rows.Err()
}

package index

import (
	"fmt"
	"strings"
)

// DefaultSearchLimit caps search results when the caller passes no limit.
const DefaultSearchLimit = 20

// Search finds notes matching query. A query starting with '#' is a tag
// lookup that follows the tag hierarchy; anything else is a full-text query
// over display names, bodies and tags.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	query = strings.TrimSpace(query)
	if strings.HasPrefix(query, "#") && !strings.ContainsAny(query, " \t") {
		return db.searchTag(query, limit)
	}
	return db.searchText(query, limit)
}

func (db *DB) searchTag(tag string, limit int) ([]SearchResult, error) {
	rows, err := db.conn.Query(`
		SELECT path, id, display_name, tags
		FROM notes
		WHERE `+tagMatch+`
		ORDER BY name COLLATE NOCASE, path
		LIMIT ?2
	`, normalizeTag(tag), limit)
	if err != nil {
		return nil, fmt.Errorf("index: search tag: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.ID, &r.DisplayName, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

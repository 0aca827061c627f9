package storage

import (
	"database/sql"
	"fmt"
)

// Link is a directed, typed edge between two records.
type Link struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
	LinkType string `json:"linkType"`
}

// LinkRepository queries the edge table in either direction.
type LinkRepository struct {
	db *DB
}

// NewLinkRepository creates a new link repository
func NewLinkRepository(db *DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// From returns every edge leaving id.
func (r *LinkRepository) From(id string) ([]Link, error) {
	return r.query(`
		SELECT source_id, target_id, link_type FROM links
		WHERE source_id = ?
		ORDER BY link_type, target_id
	`, id)
}

// To returns every edge arriving at id.
func (r *LinkRepository) To(id string) ([]Link, error) {
	return r.query(`
		SELECT source_id, target_id, link_type FROM links
		WHERE target_id = ?
		ORDER BY link_type, source_id
	`, id)
}

// FromOfType returns the targets of id's outgoing edges of one type.
func (r *LinkRepository) FromOfType(id, linkType string) ([]string, error) {
	return r.queryIDs(`
		SELECT target_id FROM links
		WHERE source_id = ? AND link_type = ?
		ORDER BY target_id
	`, id, linkType)
}

// ToOfType returns the sources of id's incoming edges of one type.
func (r *LinkRepository) ToOfType(id, linkType string) ([]string, error) {
	return r.queryIDs(`
		SELECT source_id FROM links
		WHERE target_id = ? AND link_type = ?
		ORDER BY source_id
	`, id, linkType)
}

// Dangling returns edges whose target is not an indexed record.
func (r *LinkRepository) Dangling() ([]Link, error) {
	return r.query(`
		SELECT l.source_id, l.target_id, l.link_type FROM links l
		LEFT JOIN entities e ON e.id = l.target_id
		WHERE e.id IS NULL
		ORDER BY l.source_id, l.link_type, l.target_id
	`)
}

// Count returns the number of edges.
func (r *LinkRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM links").Scan(&n)
	return n, err
}

func (r *LinkRepository) query(q string, args ...any) ([]Link, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	return scanLinks(rows)
}

func (r *LinkRepository) queryIDs(q string, args ...any) ([]string, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanLinks(rows *sql.Rows) ([]Link, error) {
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.SourceID, &l.TargetID, &l.LinkType); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}
	return links, nil
}

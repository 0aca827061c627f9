package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"qms/internal/errors"
	"qms/internal/records"
)

// Entity is one generic record row.
type Entity struct {
	ID       string    `json:"id"`
	Prefix   string    `json:"prefix"`
	Title    string    `json:"title"`
	Status   string    `json:"status"`
	Author   string    `json:"author"`
	Created  time.Time `json:"created"`
	Priority string    `json:"priority,omitempty"`
	Subtype  string    `json:"subtype,omitempty"`
	Category string    `json:"category,omitempty"`
	Tags     []string  `json:"tags,omitempty"`
	FilePath string    `json:"filePath"`
}

// EntityColumns is the select list matching ScanEntity, qualified with e.
const EntityColumns = "e.id, e.prefix, e.title, e.status, e.author, e.created, " +
	"e.priority, e.subtype, e.category, e.tags, e.file_path"

// EntityFromDocument builds the generic row for a parsed document.
func EntityFromDocument(doc records.Document, kind *records.Kind, path string) Entity {
	h := doc.Head()
	return Entity{
		ID:       h.ID,
		Prefix:   kind.Prefix,
		Title:    h.Title,
		Status:   h.Status,
		Author:   h.Author,
		Created:  h.Created,
		Priority: h.Priority,
		Subtype:  doc.Subtype(),
		Category: h.Category,
		Tags:     h.Tags,
		FilePath: path,
	}
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanEntity scans one row selected with EntityColumns, followed by extra
// destinations for any trailing columns.
func ScanEntity(s Scanner, extra ...any) (Entity, error) {
	var e Entity
	var created, tags string
	dest := append([]any{
		&e.ID, &e.Prefix, &e.Title, &e.Status, &e.Author, &created,
		&e.Priority, &e.Subtype, &e.Category, &tags, &e.FilePath,
	}, extra...)
	if err := s.Scan(dest...); err != nil {
		return e, err
	}
	e.Created, _ = time.Parse(time.RFC3339, created)
	if tags != "" && tags != "[]" {
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return e, fmt.Errorf("invalid tags for %s: %w", e.ID, err)
		}
	}
	return e, nil
}

// ScanEntities drains rows selected with EntityColumns.
func ScanEntities(rows *sql.Rows) ([]Entity, error) {
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		e, err := ScanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}
	return out, nil
}

// EntityRepository reads generic record rows.
type EntityRepository struct {
	db *DB
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(db *DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// Get returns the record with the given id, or nil if there is none.
func (r *EntityRepository) Get(id string) (*Entity, error) {
	row := r.db.QueryRow("SELECT "+EntityColumns+" FROM entities e WHERE e.id = ?", id)
	e, err := ScanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return &e, nil
}

// Count returns the number of records, optionally for one prefix.
func (r *EntityRepository) Count(prefix string) (int, error) {
	var n int
	var err error
	if prefix == "" {
		err = r.db.QueryRow("SELECT COUNT(*) FROM entities").Scan(&n)
	} else {
		err = r.db.QueryRow("SELECT COUNT(*) FROM entities WHERE prefix = ?",
			strings.ToUpper(prefix)).Scan(&n)
	}
	return n, err
}

// DerivedWriter inserts rows into the derived tables inside one rebuild
// transaction.
type DerivedWriter struct {
	entity *sql.Stmt
	link   *sql.Stmt
	kinds  map[string]*sql.Stmt
	links  int
}

// ReplaceDerived truncates records, specialization rows and links, lets fill
// insert the new contents and stores snap, all in one transaction. A failure
// leaves the previous contents in place.
func (db *DB) ReplaceDerived(snap Snapshot, fill func(w *DerivedWriter) error) error {
	err := db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM links"); err != nil {
			return err
		}
		for _, kind := range records.All() {
			if _, err := tx.Exec("DELETE FROM " + kind.Table); err != nil {
				return err
			}
		}
		if _, err := tx.Exec("DELETE FROM entities"); err != nil {
			return err
		}

		w, err := prepareWriter(tx)
		if err != nil {
			return err
		}
		defer w.close()

		if err := fill(w); err != nil {
			return err
		}
		return writeSnapshot(tx, snap)
	})
	if err != nil {
		return errors.Wrap(errors.StorageWriteFailed,
			fmt.Sprintf("failed to rebuild cache %s", db.dbPath), err)
	}
	return nil
}

func prepareWriter(tx *sql.Tx) (*DerivedWriter, error) {
	w := &DerivedWriter{kinds: make(map[string]*sql.Stmt)}
	var err error

	w.entity, err = tx.Prepare(`
		INSERT INTO entities (id, prefix, title, status, author, created,
		                      priority, subtype, category, tags, file_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, err
	}
	w.link, err = tx.Prepare(`
		INSERT OR IGNORE INTO links (source_id, target_id, link_type) VALUES (?, ?, ?)
	`)
	if err != nil {
		w.close()
		return nil, err
	}

	for _, kind := range records.All() {
		cols := append([]string{"id"}, kind.ColumnNames()...)
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			kind.Table, strings.Join(cols, ", "), marks))
		if err != nil {
			w.close()
			return nil, err
		}
		w.kinds[kind.Prefix] = stmt
	}
	return w, nil
}

func (w *DerivedWriter) close() {
	for _, s := range append([]*sql.Stmt{w.entity, w.link}, mapValues(w.kinds)...) {
		if s != nil {
			s.Close()
		}
	}
}

func mapValues(m map[string]*sql.Stmt) []*sql.Stmt {
	out := make([]*sql.Stmt, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out
}

// Insert writes one record, its specialization row and its outgoing links.
func (w *DerivedWriter) Insert(e Entity, kind *records.Kind, values []any, links []records.Reference) error {
	tags := "[]"
	if len(e.Tags) > 0 {
		b, err := json.Marshal(e.Tags)
		if err != nil {
			return err
		}
		tags = string(b)
	}

	created := ""
	if !e.Created.IsZero() {
		created = e.Created.UTC().Format(time.RFC3339)
	}

	if _, err := w.entity.Exec(e.ID, e.Prefix, e.Title, e.Status, e.Author, created,
		e.Priority, e.Subtype, e.Category, tags, e.FilePath); err != nil {
		return fmt.Errorf("failed to insert %s: %w", e.ID, err)
	}

	args := append([]any{e.ID}, values...)
	if _, err := w.kinds[kind.Prefix].Exec(args...); err != nil {
		return fmt.Errorf("failed to insert %s row for %s: %w", kind.Table, e.ID, err)
	}

	for _, l := range links {
		res, err := w.link.Exec(e.ID, l.Target, l.Type)
		if err != nil {
			return fmt.Errorf("failed to insert link %s -> %s: %w", e.ID, l.Target, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			w.links++
		}
	}
	return nil
}

// Links returns the number of distinct edges written so far.
func (w *DerivedWriter) Links() int {
	return w.links
}

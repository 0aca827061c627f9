package index

import (
	"strconv"
	"strings"

	"qms/internal/records"
	"qms/internal/sqlbuild"
	"qms/internal/storage"
)

// Filter matches one specialization column of a kind.
type Filter struct {
	Column string
	Value  string
}

// ListOptions filters and orders a per-kind list. Zero values are no-ops.
type ListOptions struct {
	Status  []string
	Filters []Filter
	// Author and Search are case-insensitive substrings; Search matches the
	// title or the id.
	Author string
	Search string
	// SortBy is a record column (id, title, status, author, created,
	// priority, subtype, category) or a specialization column.
	SortBy string
	Desc   bool
	Limit  int
}

// Row is a record joined with its specialization columns.
type Row struct {
	storage.Entity
	Fields map[string]any `json:"fields"`
}

var entitySortColumns = map[string]string{
	"id":       "e.id",
	"title":    "e.title",
	"status":   "e.status",
	"author":   "e.author",
	"created":  "e.created",
	"subtype":  "e.subtype",
	"category": "e.category",
	"priority": "CASE e.priority WHEN 'critical' THEN 4 WHEN 'high' THEN 3 " +
		"WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END",
}

// List returns records of one kind matching opts. A filter or sort on a
// column the kind does not have yields no rows.
func (c *Cache) List(kind *records.Kind, opts ListOptions) []Row {
	cols := []string{storage.EntityColumns}
	for _, name := range kind.ColumnNames() {
		cols = append(cols, "k."+name)
	}

	q := sqlbuild.From("entities e", cols...).
		Join("JOIN " + kind.Table + " k ON k.id = e.id").
		InFold("e.status", opts.Status).
		Contains(opts.Author, "e.author").
		Contains(opts.Search, "e.title", "e.id")

	for _, f := range opts.Filters {
		col, ok := kind.Column(f.Column)
		if !ok {
			c.logger.Debug("Unknown filter column", "kind", kind.Name, "column", f.Column)
			return nil
		}
		switch {
		case col.Type == records.Bool:
			b, err := strconv.ParseBool(f.Value)
			if err != nil {
				c.logger.Debug("Invalid boolean filter", "column", f.Column, "value", f.Value)
				return nil
			}
			n := 0
			if b {
				n = 1
			}
			q.Where("k."+col.Name+" = ?", n)
		case col.Exact:
			q.Eq("k."+col.Name, f.Value)
		default:
			q.EqFold("k."+col.Name, f.Value)
		}
	}

	if opts.SortBy != "" {
		expr, ok := entitySortColumns[opts.SortBy]
		if !ok {
			if _, isCol := kind.Column(opts.SortBy); !isCol {
				c.logger.Debug("Unknown sort column", "kind", kind.Name, "column", opts.SortBy)
				return nil
			}
			expr = "k." + opts.SortBy
		}
		q.OrderBy(expr, opts.Desc)
	}
	q.OrderBy("e.id", false).Limit(opts.Limit)

	sqlText, args := q.Build()
	rows, err := c.db.Query(sqlText, args...)
	if err != nil {
		c.logger.Debug("List query failed", "kind", kind.Name, "error", err.Error())
		return nil
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		values := make([]any, len(kind.Columns))
		dest := make([]any, len(values))
		for i := range values {
			dest[i] = &values[i]
		}
		e, err := storage.ScanEntity(rows, dest...)
		if err != nil {
			c.logger.Debug("List scan failed", "kind", kind.Name, "error", err.Error())
			return nil
		}

		fields := make(map[string]any, len(values))
		for i, col := range kind.Columns {
			fields[col.Name] = normalize(col, values[i])
		}
		out = append(out, Row{Entity: e, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		c.logger.Debug("List query failed", "kind", kind.Name, "error", err.Error())
		return nil
	}
	return out
}

func normalize(col records.Column, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if col.Type == records.Bool {
		if n, ok := v.(int64); ok {
			return n != 0
		}
	}
	return v
}

// SearchOptions filters a search across all kinds. Zero values are no-ops.
type SearchOptions struct {
	// Query matches the title or id as a case-insensitive substring.
	Query    string
	Prefixes []string
	Status   []string
	Author   string
	Tag      string
	// Limit <= 0 uses the configured default.
	Limit int
}

// Search looks across every kind through the generic record table.
func (c *Cache) Search(opts SearchOptions) []storage.Entity {
	limit := opts.Limit
	if limit <= 0 {
		limit = c.opts.SearchLimit
	}

	prefixes := make([]string, len(opts.Prefixes))
	for i, p := range opts.Prefixes {
		prefixes[i] = strings.ToUpper(p)
	}

	q := sqlbuild.From("entities e", storage.EntityColumns).
		In("e.prefix", prefixes).
		InFold("e.status", opts.Status).
		Contains(opts.Author, "e.author").
		Contains(opts.Query, "e.title", "e.id")
	if opts.Tag != "" {
		q.Where("EXISTS (SELECT 1 FROM json_each(e.tags) t WHERE "+
			sqlbuild.Fold("t.value")+" = "+sqlbuild.Fold("?")+")", opts.Tag)
	}
	sqlText, args := q.OrderBy("e.id", false).Limit(limit).Build()
	return c.queryEntities(sqlText, args)
}

// Entity returns one record by canonical id.
func (c *Cache) Entity(id string) (*storage.Entity, bool) {
	e, err := c.entities.Get(id)
	if err != nil {
		c.logger.Debug("Entity lookup failed", "id", id, "error", err.Error())
		return nil, false
	}
	return e, e != nil
}

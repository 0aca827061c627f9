package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"qms/internal/errors"
	"qms/internal/records"
)

// CurrentSchemaVersion is bumped whenever a table definition changes. A cache
// built under another version is dropped and rebuilt; there are no migrations.
const CurrentSchemaVersion = 1

// Tables that hold assigned short ids. They are not derived from documents and
// survive a schema reset.
var preservedTables = map[string]bool{
	"short_ids":         true,
	"short_id_counters": true,
}

// EnsureSchema compares the stored schema version with CurrentSchemaVersion.
// On a mismatch (including a brand new file) every derived and metadata table
// is dropped and recreated, and true is returned so the caller rebuilds. The
// version is checked again under the write lock, so when two processes race
// on a skewed cache only the first one resets it.
func (db *DB) EnsureSchema() (bool, error) {
	version, err := schemaVersion(db)
	if err != nil {
		return false, errors.Wrap(errors.StorageUnavailable,
			fmt.Sprintf("failed to read schema version from %s", db.dbPath), err)
	}

	if version == CurrentSchemaVersion {
		db.logger.Debug("Cache schema is up to date", "version", version)
		return false, nil
	}

	db.logger.Info("Reinitializing cache schema",
		"from_version", version,
		"to_version", CurrentSchemaVersion,
	)
	reset, err := db.reset(true)
	if err != nil {
		return false, err
	}
	if !reset {
		db.logger.Debug("Cache schema was reinitialized by another process")
	}
	return reset, nil
}

// Reset drops every table except the short-id tables and recreates the schema.
func (db *DB) Reset() error {
	_, err := db.reset(false)
	return err
}

// reset recreates the schema in one immediate transaction. With onlyIfSkewed
// it first re-reads the version inside that transaction and leaves a current
// schema alone, reporting false.
func (db *DB) reset(onlyIfSkewed bool) (bool, error) {
	done := false
	err := db.WithTx(func(tx *sql.Tx) error {
		if onlyIfSkewed {
			version, err := schemaVersion(tx)
			if err != nil {
				return err
			}
			if version == CurrentSchemaVersion {
				return nil
			}
		}
		done = true

		tables, err := listTables(tx)
		if err != nil {
			return err
		}
		// Foreign keys are enforced, so children go first.
		for i := len(tables) - 1; i >= 0; i-- {
			if preservedTables[tables[i]] {
				continue
			}
			if _, err := tx.Exec(`DROP TABLE IF EXISTS "` + tables[i] + `"`); err != nil {
				return fmt.Errorf("failed to drop %s: %w", tables[i], err)
			}
		}

		for _, create := range []func(*sql.Tx) error{
			createSchemaVersionTable,
			createMetaTable,
			createEntitiesTable,
			createKindTables,
			createLinksTable,
			createShortIDTables,
		} {
			if err := create(tx); err != nil {
				return err
			}
		}

		return setSchemaVersion(tx, CurrentSchemaVersion)
	})
	if err != nil {
		return false, errors.Wrap(errors.StorageWriteFailed,
			fmt.Sprintf("failed to initialize schema in %s", db.dbPath), err)
	}
	return done, nil
}

// SchemaVersion returns the stored schema version, or 0 for a new database.
func (db *DB) SchemaVersion() (int, error) {
	return schemaVersion(db)
}

// rowQuerier is satisfied by *DB and *sql.Tx.
type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func schemaVersion(q rowQuerier) (int, error) {
	var tableName string
	err := q.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = q.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// listTables returns user tables in creation order.
func listTables(tx *sql.Tx) ([]string, error) {
	rows, err := tx.Query(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name NOT LIKE 'sqlite_%'
		ORDER BY rowid
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("DELETE FROM schema_version")
	if err != nil {
		return err
	}
	_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

func createMetaTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS cache_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create cache_meta table: %w", err)
	}
	return nil
}

// createEntitiesTable creates the generic record table shared by all kinds.
func createEntitiesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			prefix TEXT NOT NULL,
			title TEXT NOT NULL,
			status TEXT NOT NULL,
			author TEXT NOT NULL,
			created TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT '',
			subtype TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			file_path TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create entities table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_entities_prefix ON entities(prefix)",
		"CREATE INDEX IF NOT EXISTS idx_entities_status ON entities(status)",
		"CREATE INDEX IF NOT EXISTS idx_entities_author ON entities(author)",
	}
	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// createKindTables creates one specialization table per registered kind.
func createKindTables(tx *sql.Tx) error {
	for _, kind := range records.All() {
		if _, err := tx.Exec(KindTableDDL(kind)); err != nil {
			return fmt.Errorf("failed to create %s table: %w", kind.Table, err)
		}
		for _, col := range kind.FilterColumns() {
			stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)",
				kind.Table, col.Name, kind.Table, col.Name)
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("failed to create index: %w", err)
			}
		}
	}
	return nil
}

// KindTableDDL returns the CREATE TABLE statement for a kind.
func KindTableDDL(kind *records.Kind) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", kind.Table)
	b.WriteString("\tid TEXT PRIMARY KEY REFERENCES entities(id) ON DELETE CASCADE")
	for _, col := range kind.Columns {
		fmt.Fprintf(&b, ",\n\t%s %s", col.Name, col.Type.SQLType())
	}
	b.WriteString("\n)")
	return b.String()
}

// createLinksTable creates the edge table. Targets are not constrained:
// a link may point at an id no document declares.
func createLinksTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS links (
			source_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			target_id TEXT NOT NULL,
			link_type TEXT NOT NULL,
			PRIMARY KEY (source_id, target_id, link_type)
		) WITHOUT ROWID
	`)
	if err != nil {
		return fmt.Errorf("failed to create links table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_id, link_type)",
		"CREATE INDEX IF NOT EXISTS idx_links_type ON links(link_type)",
	}
	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// createShortIDTables creates the alias mapping and per-prefix counters.
func createShortIDTables(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS short_ids (
			short_id TEXT PRIMARY KEY,
			entity_id TEXT NOT NULL UNIQUE,
			prefix TEXT NOT NULL,
			seq INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE (prefix, seq)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create short_ids table: %w", err)
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS short_id_counters (
			prefix TEXT PRIMARY KEY,
			next_seq INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create short_id_counters table: %w", err)
	}
	return nil
}

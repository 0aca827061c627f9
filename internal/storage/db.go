package storage

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"modernc.org/sqlite"

	"qms/internal/errors"
	"qms/internal/sqlbuild"
)

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(sqlbuild.FoldFunc, 1, foldValue)
}

// foldValue lower-cases text with Unicode rules. Numbers are rendered as
// text the way SQLite's LOWER would, so folded comparisons against numeric
// columns keep matching.
func foldValue(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s, nil
	default:
		return strings.ToLower(fmt.Sprint(v)), nil
	}
}

// connPragmas are applied by the driver to every new connection.
var connPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"busy_timeout(5000)",
	"cache_size(-64000)",
	"temp_store(MEMORY)",
	"mmap_size(268435456)",
}

// DB is the cache database handle.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
	dbPath string
}

// dsn builds the driver connection string for path. Transactions take the
// write lock at BEGIN so read-then-write sequences cannot interleave with
// another process.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// Open opens or creates the SQLite cache at dbPath. The schema is not
// touched; call EnsureSchema before use.
func Open(dbPath string, logger *slog.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(errors.StorageUnavailable,
			fmt.Sprintf("cannot create cache directory for %s", dbPath), err)
	}

	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, errors.Wrap(errors.StorageUnavailable,
			fmt.Sprintf("cannot open cache %s", dbPath), err)
	}
	// One connection serializes in-process access and keeps the pragmas fixed.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(errors.StorageUnavailable,
			fmt.Sprintf("cannot open cache %s", dbPath), err)
	}

	logger.Debug("Opened cache database", "path", dbPath)
	return &DB{conn: conn, logger: logger, dbPath: dbPath}, nil
}

func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string { return db.dbPath }

// WithTx runs fn in a transaction, committing on nil and rolling back on
// error or panic.
func (db *DB) WithTx(fn func(*sql.Tx) error) (err error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return errors.Wrap(errors.StorageWriteFailed, "cannot begin transaction", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && err != nil {
			db.logger.Error("Rollback failed", "error", err, "rollback_error", rbErr)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(errors.StorageWriteFailed, "cannot commit transaction", err)
	}
	committed = true
	return nil
}

// Exec runs a statement outside any transaction.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query runs a query. The single connection is held until rows is closed.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

// Size returns the on-disk size of the database file plus its write-ahead
// log, or 0 if unknown.
func (db *DB) Size() int64 {
	var total int64
	for _, p := range []string{db.dbPath, db.dbPath + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total
}

package storage

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"qms/internal/errors"
	"qms/internal/records"
	"qms/internal/sqlbuild"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := Open(filepath.Join(t.TempDir(), ".qms", "cache.db"), logger)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})

	if _, err := db.EnsureSchema(); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	return db
}

type fixture struct {
	id    string
	links []records.Reference
}

func requirementRow(id string) (Entity, []any) {
	e := Entity{
		ID: id, Prefix: "REQ", Title: "Title " + id, Status: "draft", Author: "tester",
		Created: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Subtype: "input",
		Tags: []string{"a", "b"}, FilePath: "requirements/inputs/" + id + ".qms.yaml",
	}
	return e, []any{"input", "system", "text", ""}
}

func fill(t *testing.T, db *DB, snap Snapshot, rows ...fixture) {
	t.Helper()
	err := db.ReplaceDerived(snap, func(w *DerivedWriter) error {
		for _, r := range rows {
			e, values := requirementRow(r.id)
			if err := w.Insert(e, records.RequirementKind, values, r.links); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ReplaceDerived failed: %v", err)
	}
}

func TestDatabaseInitialization(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, ".qms", "cache.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	reset, err := db.EnsureSchema()
	if err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	if !reset {
		t.Error("a new database should report a reset")
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatalf("Database file was not created at %s", dbPath)
	}

	version, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("Failed to get schema version: %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("Expected schema version %d, got %d", CurrentSchemaVersion, version)
	}

	reset, err = db.EnsureSchema()
	if err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	if reset {
		t.Error("a current schema should not reset")
	}

	for _, kind := range records.All() {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", kind.Table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", kind.Table, err)
		}
	}
}

func TestOpenFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(filepath.Join(blocker, "cache.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatal("expected error opening a cache beneath a regular file")
	}
	if errors.CodeOf(err) != errors.StorageUnavailable {
		t.Errorf("code = %s, want STORAGE_UNAVAILABLE", errors.CodeOf(err))
	}
}

func TestSchemaMismatchPreservesShortIDs(t *testing.T) {
	db := setupTestDB(t)
	fill(t, db, Snapshot{FileCount: 1}, fixture{id: "REQ-001"})

	sids := NewShortIDRepository(db)
	first, err := sids.Ensure("REQ-001")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	if _, err := db.Exec("UPDATE schema_version SET version = 0"); err != nil {
		t.Fatal(err)
	}
	reset, err := db.EnsureSchema()
	if err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	if !reset {
		t.Fatal("version skew should reset")
	}

	count, err := NewEntityRepository(db).Count("")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("entities should be dropped, got %d", count)
	}
	if _, ok, _ := db.Snapshot(); ok {
		t.Error("metadata should be dropped")
	}

	id, ok, err := sids.Resolve(first)
	if err != nil || !ok || id != "REQ-001" {
		t.Errorf("Resolve(%s) = %q, %v, %v", first, id, ok, err)
	}
	next, err := sids.Ensure("REQ-002")
	if err != nil {
		t.Fatal(err)
	}
	if next != "REQ@2" {
		t.Errorf("counter should survive reset, got %s", next)
	}
}

func TestReplaceDerived(t *testing.T) {
	db := setupTestDB(t)
	mtime := time.Unix(1700000000, 123456789)

	fill(t, db, Snapshot{MaxMtime: mtime, FileCount: 3, RebuildID: "r1", RebuiltAt: time.Now()},
		fixture{id: "REQ-001", links: []records.Reference{
			{Target: "REQ-002", Type: "derived_from"},
			{Target: "REQ-002", Type: "derived_from"},
			{Target: "REQ-002", Type: "refines"},
		}},
		fixture{id: "REQ-002"},
	)

	entities := NewEntityRepository(db)
	e, err := entities.Get("REQ-001")
	if err != nil || e == nil {
		t.Fatalf("Get failed: %v, %v", e, err)
	}
	if e.Title != "Title REQ-001" || len(e.Tags) != 2 || e.Created.Year() != 2024 {
		t.Errorf("unexpected entity %+v", e)
	}

	missing, err := entities.Get("REQ-404")
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = %v, %v", missing, err)
	}

	var level string
	if err := db.QueryRow("SELECT level FROM requirements WHERE id = ?", "REQ-001").Scan(&level); err != nil {
		t.Fatal(err)
	}
	if level != "system" {
		t.Errorf("level = %q", level)
	}

	n, err := NewLinkRepository(db).Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("duplicate triples should collapse, got %d links", n)
	}

	snap, ok, err := db.Snapshot()
	if err != nil || !ok {
		t.Fatalf("Snapshot = %v, %v", ok, err)
	}
	if !snap.MaxMtime.Equal(mtime) || snap.FileCount != 3 || snap.RebuildID != "r1" {
		t.Errorf("Snapshot = %+v", snap)
	}

	// A second pass replaces rather than appends.
	fill(t, db, Snapshot{FileCount: 1}, fixture{id: "REQ-003"})
	count, _ := entities.Count("req")
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}
	n, _ = NewLinkRepository(db).Count()
	if n != 0 {
		t.Errorf("links should be replaced, got %d", n)
	}
}

func TestReplaceDerivedRollsBack(t *testing.T) {
	db := setupTestDB(t)
	fill(t, db, Snapshot{FileCount: 1}, fixture{id: "REQ-001"})

	err := db.ReplaceDerived(Snapshot{}, func(w *DerivedWriter) error {
		return fmt.Errorf("boom")
	})
	if errors.CodeOf(err) != errors.StorageWriteFailed {
		t.Fatalf("error = %v, want STORAGE_WRITE_FAILED", err)
	}

	e, err := NewEntityRepository(db).Get("REQ-001")
	if err != nil || e == nil {
		t.Errorf("previous contents should survive a failed rebuild: %v, %v", e, err)
	}
}

func TestLinkQueries(t *testing.T) {
	db := setupTestDB(t)
	fill(t, db, Snapshot{},
		fixture{id: "REQ-001", links: []records.Reference{
			{Target: "REQ-002", Type: "derived_from"},
			{Target: "REQ-003", Type: "derived_from"},
			{Target: "REQ-404", Type: "satisfied_by"},
		}},
		fixture{id: "REQ-002", links: []records.Reference{{Target: "REQ-003", Type: "refines"}}},
		fixture{id: "REQ-003"},
	)
	links := NewLinkRepository(db)

	from, err := links.From("REQ-001")
	if err != nil {
		t.Fatal(err)
	}
	if len(from) != 3 || from[0].TargetID != "REQ-002" || from[2].LinkType != "satisfied_by" {
		t.Errorf("From = %+v", from)
	}

	to, err := links.To("REQ-003")
	if err != nil {
		t.Fatal(err)
	}
	if len(to) != 2 || to[0].SourceID != "REQ-001" || to[1].SourceID != "REQ-002" {
		t.Errorf("To = %+v", to)
	}

	targets, _ := links.FromOfType("REQ-001", "derived_from")
	if len(targets) != 2 || targets[0] != "REQ-002" || targets[1] != "REQ-003" {
		t.Errorf("FromOfType = %v", targets)
	}
	sources, _ := links.ToOfType("REQ-003", "refines")
	if len(sources) != 1 || sources[0] != "REQ-002" {
		t.Errorf("ToOfType = %v", sources)
	}

	none, err := links.From("REQ-999")
	if err != nil || len(none) != 0 {
		t.Errorf("unknown id should yield nothing: %v, %v", none, err)
	}

	dangling, err := links.Dangling()
	if err != nil {
		t.Fatal(err)
	}
	if len(dangling) != 1 || dangling[0].TargetID != "REQ-404" {
		t.Errorf("Dangling = %+v", dangling)
	}
}

func TestKindTableDDL(t *testing.T) {
	ddl := KindTableDDL(records.ControlKind)
	want := "CREATE TABLE IF NOT EXISTS controls (\n" +
		"\tid TEXT PRIMARY KEY REFERENCES entities(id) ON DELETE CASCADE,\n" +
		"\tcontrol_type TEXT,\n" +
		"\tprocess_id TEXT,\n" +
		"\tcharacteristic TEXT,\n" +
		"\tcritical INTEGER\n)"
	if ddl != want {
		t.Errorf("DDL =\n%s\nwant\n%s", ddl, want)
	}
}

func TestConnectionPragmas(t *testing.T) {
	db := setupTestDB(t)

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestWithTx(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.Exec("CREATE TABLE scratch (n INTEGER)"); err != nil {
		t.Fatal(err)
	}
	count := func() int {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM scratch").Scan(&n); err != nil {
			t.Fatal(err)
		}
		return n
	}

	if err := db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO scratch VALUES (1)")
		return err
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	boom := fmt.Errorf("boom")
	err := db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO scratch VALUES (2)"); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Errorf("WithTx returned %v, want the callback error", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic should propagate")
			}
		}()
		_ = db.WithTx(func(tx *sql.Tx) error {
			_, _ = tx.Exec("INSERT INTO scratch VALUES (3)")
			panic("mid-transaction")
		})
	}()

	if n := count(); n != 1 {
		t.Errorf("rows = %d, want only the committed one", n)
	}
}

func TestSchemaResetRechecksUnderLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".qms", "cache.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	first, err := Open(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	second, err := Open(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	// Both saw a fresh file; the first one resets and fills the cache.
	if reset, err := first.EnsureSchema(); err != nil || !reset {
		t.Fatalf("first EnsureSchema = %v, %v", reset, err)
	}
	fill(t, first, Snapshot{FileCount: 1}, fixture{id: "REQ-001"})

	// The second process acts on its stale reading of version 0.
	reset, err := second.reset(true)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset {
		t.Error("a schema that became current under the lock must not be reset again")
	}
	n, err := NewEntityRepository(second).Count("")
	if err != nil || n != 1 {
		t.Errorf("entities after racing reset = %d, %v; want 1", n, err)
	}

	// An explicit Reset still drops derived rows.
	if err := second.Reset(); err != nil {
		t.Fatal(err)
	}
	if n, _ := NewEntityRepository(second).Count(""); n != 0 {
		t.Errorf("entities after Reset = %d, want 0", n)
	}
}

func TestFoldFunction(t *testing.T) {
	db := setupTestDB(t)

	cases := []struct {
		expr string
		want string
	}{
		{"'ÄÖÜ Straße'", "äöü straße"},
		{"'ABC'", "abc"},
		{"42", "42"},
		{"2.5", "2.5"},
		{"3.0", "3.0"},
	}
	for _, tc := range cases {
		var got string
		if err := db.QueryRow("SELECT " + sqlbuild.Fold(tc.expr)).Scan(&got); err != nil {
			t.Fatalf("%s: %v", tc.expr, err)
		}
		if got != tc.want {
			t.Errorf("fold(%s) = %q, want %q", tc.expr, got, tc.want)
		}
	}

	var matched int
	err := db.QueryRow("SELECT " + sqlbuild.Fold("'Dichtung ÄNDERN'") + " LIKE " + sqlbuild.Fold("'%änd%'")).Scan(&matched)
	if err != nil || matched != 1 {
		t.Errorf("folded LIKE = %d, %v; want 1", matched, err)
	}
}

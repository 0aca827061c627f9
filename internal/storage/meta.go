package storage

import (
	"database/sql"
	"strconv"
	"time"
)

// Metadata keys in cache_meta.
const (
	MetaMaxMtime      = "max_mtime"
	MetaFileCount     = "file_count"
	MetaLastRebuildID = "last_rebuild_id"
	MetaLastRebuildAt = "last_rebuild_at"
)

// Snapshot is the cheap fingerprint of the document tree recorded by the
// last rebuild.
type Snapshot struct {
	MaxMtime  time.Time
	FileCount int
	RebuildID string
	RebuiltAt time.Time
}

// Meta returns one cache_meta value.
func (db *DB) Meta(key string) (string, bool, error) {
	var value string
	err := db.QueryRow("SELECT value FROM cache_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Snapshot reads the stored tree fingerprint. ok is false when no rebuild
// has completed since the schema was created.
func (db *DB) Snapshot() (snap Snapshot, ok bool, err error) {
	rows, err := db.Query("SELECT key, value FROM cache_meta")
	if err != nil {
		return snap, false, err
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return snap, false, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return snap, false, err
	}

	mtime, hasMtime := values[MetaMaxMtime]
	count, hasCount := values[MetaFileCount]
	if !hasMtime || !hasCount {
		return snap, false, nil
	}

	ns, err := strconv.ParseInt(mtime, 10, 64)
	if err != nil {
		return snap, false, nil
	}
	n, err := strconv.Atoi(count)
	if err != nil {
		return snap, false, nil
	}
	if ns > 0 {
		snap.MaxMtime = time.Unix(0, ns)
	}
	snap.FileCount = n
	snap.RebuildID = values[MetaLastRebuildID]
	if at, err := time.Parse(time.RFC3339Nano, values[MetaLastRebuildAt]); err == nil {
		snap.RebuiltAt = at
	}
	return snap, true, nil
}

// writeSnapshot stores the fingerprint inside the rebuild transaction.
func writeSnapshot(tx *sql.Tx, snap Snapshot) error {
	var ns int64
	if !snap.MaxMtime.IsZero() {
		ns = snap.MaxMtime.UnixNano()
	}
	values := map[string]string{
		MetaMaxMtime:      strconv.FormatInt(ns, 10),
		MetaFileCount:     strconv.Itoa(snap.FileCount),
		MetaLastRebuildID: snap.RebuildID,
		MetaLastRebuildAt: snap.RebuiltAt.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range values {
		if _, err := tx.Exec(`
			INSERT INTO cache_meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, k, v); err != nil {
			return err
		}
	}
	return nil
}

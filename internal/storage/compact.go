package storage

import (
	"context"
	"fmt"
	"time"

	"qms/internal/errors"
)

// CompactResult contains the results of a compaction run
type CompactResult struct {
	StartedAt      time.Time `json:"startedAt"`
	DurationMs     int64     `json:"durationMs"`
	SizeBefore     int64     `json:"sizeBefore"`
	SizeAfter      int64     `json:"sizeAfter"`
	BytesReclaimed int64     `json:"bytesReclaimed"`
	IntegrityOK    bool      `json:"integrityOk"`
	Errors         []string  `json:"errors,omitempty"`
}

// Compact checks integrity, rewrites the file with VACUUM, truncates the WAL
// and refreshes planner statistics. A failed integrity check skips the
// rewrite and is reported in the result; only a failed VACUUM is an error.
func (db *DB) Compact(ctx context.Context) (*CompactResult, error) {
	result := &CompactResult{
		StartedAt:  time.Now(),
		SizeBefore: db.Size(),
	}

	var check string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&check); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("integrity check: %v", err))
	} else if check != "ok" {
		result.Errors = append(result.Errors, "integrity check: "+check)
	} else {
		result.IntegrityOK = true
	}

	if result.IntegrityOK {
		if _, err := db.conn.ExecContext(ctx, "VACUUM"); err != nil {
			return nil, errors.Wrap(errors.StorageWriteFailed,
				fmt.Sprintf("failed to vacuum %s", db.dbPath), err)
		}
	}

	if _, err := db.conn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("wal checkpoint: %v", err))
	}
	if _, err := db.conn.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("optimize: %v", err))
	}

	result.SizeAfter = db.Size()
	if result.SizeBefore > result.SizeAfter {
		result.BytesReclaimed = result.SizeBefore - result.SizeAfter
	}
	result.DurationMs = time.Since(result.StartedAt).Milliseconds()
	return result, nil
}

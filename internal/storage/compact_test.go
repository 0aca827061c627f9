package storage

import (
	"context"
	"fmt"
	"testing"
)

func TestCompactKeepsContents(t *testing.T) {
	db := setupTestDB(t)

	rows := make([]fixture, 200)
	for i := range rows {
		rows[i] = fixture{id: fmt.Sprintf("REQ-%03d", i)}
	}
	fill(t, db, Snapshot{FileCount: len(rows)}, rows...)
	// Replacing with a small set leaves free pages behind.
	fill(t, db, Snapshot{FileCount: 1}, fixture{id: "REQ-001"})

	result, err := db.Compact(context.Background())
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if !result.IntegrityOK {
		t.Errorf("IntegrityOK = false, errors: %v", result.Errors)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
	if result.SizeAfter <= 0 {
		t.Errorf("SizeAfter = %d, want > 0", result.SizeAfter)
	}
	if result.SizeAfter > result.SizeBefore {
		t.Errorf("size grew from %d to %d", result.SizeBefore, result.SizeAfter)
	}

	n, err := NewEntityRepository(db).Count("")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d after compaction, want 1", n)
	}
}

func TestCompactCancelled(t *testing.T) {
	db := setupTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := db.Compact(ctx)
	if err == nil && result.IntegrityOK {
		t.Error("a cancelled context should not report a completed integrity check")
	}
}

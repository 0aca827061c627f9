package storage

import (
	"fmt"
	"testing"

	"qms/internal/errors"
)

func TestShortIDAllocationOrder(t *testing.T) {
	db := setupTestDB(t)
	sids := NewShortIDRepository(db)

	tests := []struct {
		id   string
		want string
	}{
		{"REQ-aaa", "REQ@1"},
		{"REQ-bbb", "REQ@2"},
		{"RISK-ccc", "RISK@1"},
		{"REQ-aaa", "REQ@1"},
		{"REQ-ddd", "REQ@3"},
		{"risk-eee", "RISK@2"},
	}
	for _, tt := range tests {
		got, err := sids.Ensure(tt.id)
		if err != nil {
			t.Fatalf("Ensure(%s) failed: %v", tt.id, err)
		}
		if got != tt.want {
			t.Errorf("Ensure(%s) = %s, want %s", tt.id, got, tt.want)
		}
	}
}

func TestShortIDRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	sids := NewShortIDRepository(db)

	seen := map[string]string{}
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("TEST-%03d", i)
		short, err := sids.Ensure(id)
		if err != nil {
			t.Fatal(err)
		}
		if prev, dup := seen[short]; dup {
			t.Fatalf("%s assigned to both %s and %s", short, prev, id)
		}
		seen[short] = id

		resolved, ok, err := sids.Resolve(short)
		if err != nil || !ok || resolved != id {
			t.Errorf("Resolve(%s) = %q, %v, %v", short, resolved, ok, err)
		}
		back, ok, err := sids.Get(id)
		if err != nil || !ok || back != short {
			t.Errorf("Get(%s) = %q, %v, %v", id, back, ok, err)
		}
	}

	lower, ok, _ := sids.Resolve("test@3")
	if !ok || lower != "TEST-002" {
		t.Errorf("case-insensitive Resolve = %q, %v", lower, ok)
	}
}

func TestShortIDMissing(t *testing.T) {
	db := setupTestDB(t)
	sids := NewShortIDRepository(db)

	for _, ref := range []string{"REQ@1", "REQ@0", "REQ-1", "@1", "REQ@x", ""} {
		if id, ok, err := sids.Resolve(ref); ok || err != nil {
			t.Errorf("Resolve(%q) = %q, %v, %v", ref, id, ok, err)
		}
	}
	if s, ok, err := sids.Get("REQ-001"); ok || err != nil {
		t.Errorf("Get = %q, %v, %v", s, ok, err)
	}

	_, err := sids.Ensure("nodash")
	if errors.CodeOf(err) != errors.InvalidID {
		t.Errorf("Ensure(nodash) error = %v, want INVALID_ID", err)
	}
}

func TestShortIDEnsureAll(t *testing.T) {
	db := setupTestDB(t)
	sids := NewShortIDRepository(db)

	if _, err := sids.Ensure("CMP-b"); err != nil {
		t.Fatal(err)
	}
	got, err := sids.EnsureAll([]string{"CMP-a", "CMP-b", "SUP-a", "CMP-c"})
	if err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	want := map[string]string{"CMP-a": "CMP@2", "CMP-b": "CMP@1", "SUP-a": "SUP@1", "CMP-c": "CMP@3"}
	for id, short := range want {
		if got[id] != short {
			t.Errorf("EnsureAll[%s] = %s, want %s", id, got[id], short)
		}
	}

	// One bad id aborts the batch without consuming sequence numbers.
	_, err = sids.EnsureAll([]string{"CMP-d", "bad"})
	if err == nil {
		t.Fatal("expected error")
	}
	next, _ := sids.Ensure("CMP-e")
	if next != "CMP@4" {
		t.Errorf("rolled back batch should not advance the counter, got %s", next)
	}
}

func TestParseShortID(t *testing.T) {
	tests := []struct {
		in     string
		prefix string
		seq    int
		ok     bool
	}{
		{"REQ@1", "REQ", 1, true},
		{"req@42", "REQ", 42, true},
		{" Risk@7 ", "RISK", 7, true},
		{"REQ@0", "", 0, false},
		{"REQ@-1", "", 0, false},
		{"REQ-01H", "", 0, false},
		{"R3Q@1", "", 0, false},
		{"@5", "", 0, false},
	}
	for _, tt := range tests {
		prefix, seq, ok := ParseShortID(tt.in)
		if prefix != tt.prefix || seq != tt.seq || ok != tt.ok {
			t.Errorf("ParseShortID(%q) = %q, %d, %v", tt.in, prefix, seq, ok)
		}
	}
	if FormatShortID("req", 9) != "REQ@9" {
		t.Errorf("FormatShortID = %s", FormatShortID("req", 9))
	}
}

func TestShortIDRoundTripInvalidPrefix(t *testing.T) {
	db := setupTestDB(t)
	sids := NewShortIDRepository(db)

	for _, id := range []string{"REQ-aaa", "risk-01HQ", "WORK-abc_1"} {
		short, err := sids.Ensure(id)
		if err != nil {
			t.Fatalf("Ensure(%q): %v", id, err)
		}
		got, ok, err := sids.Resolve(short)
		if err != nil || !ok || got != id {
			t.Errorf("Resolve(Ensure(%q)=%q) = %q, %v, %v", id, short, got, ok, err)
		}
	}

	// Ids whose prefix could never be resolved are refused before a counter moves.
	for _, id := range []string{"X1-abc", "WORK_INS-abc", "ÄB-x"} {
		if short, err := sids.Ensure(id); errors.CodeOf(err) != errors.InvalidID {
			t.Errorf("Ensure(%q) = %q, %v; want INVALID_ID", id, short, err)
		}
	}
	var counters int
	if err := db.QueryRow("SELECT COUNT(*) FROM short_id_counters").Scan(&counters); err != nil {
		t.Fatal(err)
	}
	if counters != 3 {
		t.Errorf("counters = %d, want 3 (REQ, RISK, WORK)", counters)
	}
}

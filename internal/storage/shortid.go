package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"qms/internal/errors"
	"qms/internal/records"
)

// ShortIDSeparator joins a prefix and its sequence number ("REQ@4").
const ShortIDSeparator = "@"

// FormatShortID builds "PREFIX@N".
func FormatShortID(prefix string, seq int) string {
	return strings.ToUpper(prefix) + ShortIDSeparator + strconv.Itoa(seq)
}

// ParseShortID splits "prefix@N" (prefix case-insensitive). ok is false for
// anything else, including N < 1.
func ParseShortID(ref string) (prefix string, seq int, ok bool) {
	p, n, found := strings.Cut(strings.TrimSpace(ref), ShortIDSeparator)
	if !found || !records.IsPrefix(p) {
		return "", 0, false
	}
	seq, err := strconv.Atoi(n)
	if err != nil || seq < 1 {
		return "", 0, false
	}
	return strings.ToUpper(p), seq, true
}

// ShortIDRepository assigns and resolves per-prefix aliases. Mappings are
// never deleted and counters never go backwards.
type ShortIDRepository struct {
	db *DB
}

// NewShortIDRepository creates a new short-id repository
func NewShortIDRepository(db *DB) *ShortIDRepository {
	return &ShortIDRepository{db: db}
}

// Ensure returns the alias for id, assigning the next one for its prefix if
// none exists. Lookup, counter increment and mapping insert share one
// immediate transaction, so concurrent processes cannot hand out duplicates.
func (r *ShortIDRepository) Ensure(id string) (string, error) {
	var short string
	err := r.db.WithTx(func(tx *sql.Tx) error {
		var err error
		short, err = ensureTx(tx, id)
		return err
	})
	if err != nil {
		return "", wrapEnsure(err)
	}
	return short, nil
}

// EnsureAll assigns aliases for ids in order within a single transaction.
func (r *ShortIDRepository) EnsureAll(ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	err := r.db.WithTx(func(tx *sql.Tx) error {
		for _, id := range ids {
			short, err := ensureTx(tx, id)
			if err != nil {
				return err
			}
			out[id] = short
		}
		return nil
	})
	if err != nil {
		return nil, wrapEnsure(err)
	}
	return out, nil
}

func wrapEnsure(err error) error {
	if errors.CodeOf(err) != "" {
		return err
	}
	return errors.Wrap(errors.StorageWriteFailed, "failed to assign short id", err)
}

func ensureTx(tx *sql.Tx, id string) (string, error) {
	prefix, err := records.PrefixOf(id)
	if err != nil {
		return "", err
	}

	var existing string
	err = tx.QueryRow("SELECT short_id FROM short_ids WHERE entity_id = ?", id).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	var seq int
	err = tx.QueryRow(`
		INSERT INTO short_id_counters (prefix, next_seq) VALUES (?, 2)
		ON CONFLICT(prefix) DO UPDATE SET next_seq = next_seq + 1
		RETURNING next_seq - 1
	`, prefix).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("failed to advance %s counter: %w", prefix, err)
	}

	short := FormatShortID(prefix, seq)
	_, err = tx.Exec(`
		INSERT INTO short_ids (short_id, entity_id, prefix, seq, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, short, id, prefix, seq, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to record %s: %w", short, err)
	}
	return short, nil
}

// Resolve maps "PREFIX@N" to its canonical id.
func (r *ShortIDRepository) Resolve(ref string) (string, bool, error) {
	prefix, seq, ok := ParseShortID(ref)
	if !ok {
		return "", false, nil
	}
	var id string
	err := r.db.QueryRow("SELECT entity_id FROM short_ids WHERE prefix = ? AND seq = ?",
		prefix, seq).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Get returns the alias already assigned to id.
func (r *ShortIDRepository) Get(id string) (string, bool, error) {
	var short string
	err := r.db.QueryRow("SELECT short_id FROM short_ids WHERE entity_id = ?", id).Scan(&short)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return short, true, nil
}

// Count returns the number of assigned short ids.
func (r *ShortIDRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM short_ids").Scan(&n)
	return n, err
}

// Package index is the local cache over a project's document tree. Open keeps
// it in step with the files; the remaining methods answer link, traversal,
// list and aggregate queries from the cache alone.
package index

import (
	"log/slog"

	"qms/internal/errors"
	"qms/internal/paths"
	"qms/internal/scanner"
	"qms/internal/slogutil"
	"qms/internal/storage"
)

// DefaultSearchLimit caps Search when no limit is given.
const DefaultSearchLimit = 100

// Options configures Open.
type Options struct {
	Logger *slog.Logger
	// NoAutoRebuild skips the staleness check. A schema reset still rebuilds.
	NoAutoRebuild bool
	// SearchLimit is the default cap for Search.
	SearchLimit int
}

// Cache is an open index over one project.
type Cache struct {
	root   string
	db     *storage.DB
	logger *slog.Logger
	opts   Options

	entities *storage.EntityRepository
	links    *storage.LinkRepository
	shortIDs *storage.ShortIDRepository

	opened *RebuildReport
}

// Open opens the cache for the project at root, creating it if needed, and
// rebuilds it when the schema changed or the document tree is stale.
// Only storage failures are returned.
func Open(root string, opts Options) (*Cache, error) {
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}

	db, err := storage.Open(paths.CachePath(root), opts.Logger)
	if err != nil {
		return nil, err
	}

	reset, err := db.EnsureSchema()
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &Cache{
		root:     root,
		db:       db,
		logger:   opts.Logger,
		opts:     opts,
		entities: storage.NewEntityRepository(db),
		links:    storage.NewLinkRepository(db),
		shortIDs: storage.NewShortIDRepository(db),
	}

	if reset || (!opts.NoAutoRebuild && c.IsStale()) {
		report, err := c.Rebuild()
		switch {
		case errors.CodeOf(err) == errors.IndexLocked:
			c.logger.Warn("Cache is being rebuilt elsewhere; using existing contents",
				"error", err.Error(),
			)
		case err != nil:
			db.Close()
			return nil, err
		default:
			c.opened = report
		}
	}

	return c, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Root returns the project root.
func (c *Cache) Root() string {
	return c.root
}

// OpenRebuild returns the report of the rebuild Open performed, or nil.
func (c *Cache) OpenRebuild() *RebuildReport {
	return c.opened
}

// IsStale reports whether the document tree changed since the last rebuild.
// A cache that has never been rebuilt, or whose metadata cannot be read, is
// stale.
func (c *Cache) IsStale() bool {
	snap, ok, err := c.db.Snapshot()
	if err != nil {
		c.logger.Debug("Failed to read cache metadata", "error", err.Error())
		return true
	}
	if !ok {
		return true
	}
	return scanner.IsStale(c.root, snap.MaxMtime, snap.FileCount)
}

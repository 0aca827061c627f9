package index

import (
	"context"

	"qms/internal/paths"
	"qms/internal/storage"
)

// Compact vacuums the cache file under the index lock, so it never runs
// alongside a rebuild.
func (c *Cache) Compact(ctx context.Context) (*storage.CompactResult, error) {
	lock, err := AcquireLock(paths.ToolDir(c.root), "compact")
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	c.logger.Info("Starting compaction", "path", c.db.Path())

	result, err := c.db.Compact(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Compaction completed",
		"durationMs", result.DurationMs,
		"bytesReclaimed", result.BytesReclaimed,
		"integrityOk", result.IntegrityOK,
		"errors", len(result.Errors),
	)
	return result, nil
}

package index

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"qms/internal/errors"
	"qms/internal/paths"
	"qms/internal/records"
	"qms/internal/scanner"
	"qms/internal/storage"
)

// RebuildReport summarizes one rebuild.
type RebuildReport struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	// Files is every candidate document, including ones that failed.
	Files    int
	Indexed  int
	Links    int
	Failures []scanner.Failure
}

// Rebuild replaces every derived table from a fresh scan of the document
// tree. Documents that fail to parse, or repeat an id already indexed, are
// skipped and reported. The rebuild runs under the cross-process index lock;
// if another process holds it the error has code INDEX_LOCKED.
func (c *Cache) Rebuild() (*RebuildReport, error) {
	lock, err := AcquireLock(paths.ToolDir(c.root), "rebuild")
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	report := &RebuildReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}

	res, err := scanner.Scan(c.root, c.logger)
	if err != nil {
		return nil, errors.Wrap(errors.InternalError,
			fmt.Sprintf("failed to scan documents under %s", c.root), err)
	}
	report.Files = res.Files
	report.Failures = res.Failures

	snap := storage.Snapshot{
		MaxMtime:  res.MaxModTime,
		FileCount: res.Files,
		RebuildID: report.ID,
		RebuiltAt: report.StartedAt,
	}

	var indexed, links int
	var dups []scanner.Failure
	err = c.db.ReplaceDerived(snap, func(w *storage.DerivedWriter) error {
		indexed, links, dups = 0, 0, nil
		seen := make(map[string]string, len(res.Docs))

		for _, p := range res.Docs {
			id := p.Doc.Head().ID
			if prev, dup := seen[id]; dup {
				c.logger.Warn("Skipping document with duplicate id",
					"id", id,
					"path", p.Path,
					"first", prev,
				)
				dups = append(dups, scanner.Failure{
					Path: p.Path,
					Err:  fmt.Errorf("duplicate id %s, already declared in %s", id, prev),
				})
				continue
			}
			seen[id] = p.Path

			entity := storage.EntityFromDocument(p.Doc, p.Kind, p.Path)
			if err := w.Insert(entity, p.Kind, p.Doc.Values(), records.Links(p.Doc)); err != nil {
				return err
			}
			indexed++
		}
		links = w.Links()
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Indexed = indexed
	report.Links = links
	report.Failures = append(report.Failures, dups...)
	report.Duration = time.Since(report.StartedAt)

	c.logger.Info("Rebuilt cache",
		"rebuild_id", report.ID,
		"files", report.Files,
		"indexed", report.Indexed,
		"links", report.Links,
		"failures", len(report.Failures),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

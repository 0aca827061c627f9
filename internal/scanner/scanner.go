// Package scanner walks the fixed document directories of a project, parses
// every candidate document and answers the cheap staleness question.
package scanner

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"qms/internal/paths"
	"qms/internal/records"
)

// Candidate is a file that follows the document naming convention.
type Candidate struct {
	Path    string // absolute
	Kind    *records.Kind
	ModTime time.Time
}

// Parsed is a successfully decoded document.
type Parsed struct {
	Path string // project-relative, forward slashes
	Doc  records.Document
	Kind *records.Kind
}

// Failure records a document that could not be parsed.
type Failure struct {
	Path string
	Err  error
}

// Result is the outcome of a full scan.
type Result struct {
	Docs     []Parsed
	Failures []Failure
	// Files counts every candidate, parsed or not.
	Files      int
	MaxModTime time.Time
}

var errStop = errors.New("stop walk")

// Walk calls fn for every candidate document under the known directories,
// kind by kind in registry order. Missing directories are skipped.
func Walk(root string, fn func(Candidate) error) error {
	for _, kind := range records.All() {
		for _, dir := range kind.Dirs {
			base := filepath.Join(root, filepath.FromSlash(dir))
			if _, err := os.Stat(base); os.IsNotExist(err) {
				continue
			}
			err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() || !strings.HasSuffix(d.Name(), records.DocumentSuffix) {
					return nil
				}
				info, err := d.Info()
				if err != nil {
					return err
				}
				return fn(Candidate{Path: path, Kind: kind, ModTime: info.ModTime()})
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Stat returns the newest modification time and the number of candidates.
func Stat(root string) (time.Time, int, error) {
	var newest time.Time
	count := 0
	err := Walk(root, func(c Candidate) error {
		count++
		if c.ModTime.After(newest) {
			newest = c.ModTime
		}
		return nil
	})
	return newest, count, err
}

// IsStale reports whether the tree under root has changed since an index was
// built that recorded cachedMax and cachedCount. A newer file ends the walk
// early. A tree that cannot be walked is treated as stale.
func IsStale(root string, cachedMax time.Time, cachedCount int) bool {
	count := 0
	newer := false
	err := Walk(root, func(c Candidate) error {
		if c.ModTime.After(cachedMax) {
			newer = true
			return errStop
		}
		count++
		return nil
	})
	if newer || err != nil {
		return true
	}
	return count != cachedCount
}

// Scan parses every candidate document, up to GOMAXPROCS at a time. Docs
// and Failures keep walk order. Per-document failures are collected in the
// result and never abort the scan; only a walk error is returned.
func Scan(root string, logger *slog.Logger) (*Result, error) {
	res := &Result{}
	var cands []Candidate
	err := Walk(root, func(c Candidate) error {
		cands = append(cands, c)
		if c.ModTime.After(res.MaxModTime) {
			res.MaxModTime = c.ModTime
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Files = len(cands)

	type outcome struct {
		rel string
		doc records.Document
		err error
	}
	outs := make([]outcome, len(cands))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range cands {
		g.Go(func() error {
			rel, err := paths.CanonicalizePath(c.Path, root)
			if err != nil {
				rel = filepath.ToSlash(c.Path)
			}
			doc, err := records.ParseFile(c.Kind, c.Path)
			outs[i] = outcome{rel: rel, doc: doc, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outs {
		if o.err != nil {
			logger.Warn("Skipping unparseable document",
				"path", o.rel,
				"error", o.err.Error(),
			)
			res.Failures = append(res.Failures, Failure{Path: o.rel, Err: o.err})
			continue
		}
		res.Docs = append(res.Docs, Parsed{Path: o.rel, Doc: o.doc, Kind: cands[i].Kind})
	}
	return res, nil
}

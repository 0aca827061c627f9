// Package watcher reports changes to the document tree of a project.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"qms/internal/records"
	"qms/internal/scanner"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

// Event represents a file system event
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ChangeHandler is called with each debounced batch of events.
type ChangeHandler func(events []Event)

// Config contains watcher configuration
type Config struct {
	Debounce time.Duration
	// PollInterval > 0 also compares the tree's max mtime and file count on
	// a timer, for filesystems that drop notifications.
	PollInterval time.Duration
}

// DefaultConfig returns the default watcher configuration
func DefaultConfig() Config {
	return Config{
		Debounce: 500 * time.Millisecond,
	}
}

var ignoredDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
}

// Watcher watches every directory of a project except hidden ones (which
// includes the .qms tool directory) and emits batches of document events.
type Watcher struct {
	root    string
	config  Config
	logger  *slog.Logger
	handler ChangeHandler
	fs      *fsnotify.Watcher
	batch   *BatchDebouncer

	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.RWMutex
	dirs     map[string]bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a watcher for the project at root.
func New(root string, config Config, logger *slog.Logger, handler ChangeHandler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		root:    root,
		config:  config,
		logger:  logger,
		handler: handler,
		fs:      fsw,
		ctx:     ctx,
		cancel:  cancel,
		dirs:    make(map[string]bool),
	}
	w.batch = NewBatchDebouncer(config.Debounce, w.emit)
	return w, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	w.logger.Info("Starting document watcher",
		"root", w.root,
		"debounceMs", w.config.Debounce.Milliseconds(),
		"dirs", len(w.WatchedDirs()),
	)

	w.wg.Add(1)
	go w.processEvents()

	if w.config.PollInterval > 0 {
		maxMtime, count, err := scanner.Stat(w.root)
		if err != nil {
			w.logger.Warn("Initial stat failed; polling disabled", "error", err.Error())
		} else {
			w.wg.Add(1)
			go w.poll(maxMtime, count)
		}
	}
	return nil
}

// Stop stops watching and drops any pending batch.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping document watcher")
		w.cancel()
		_ = w.fs.Close()
		w.wg.Wait()
		w.batch.Cancel()
	})
}

// WatchedDirs returns the watched directories in sorted order.
func (w *Watcher) WatchedDirs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	dirs := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// IsDocument reports whether path names an indexable document.
func IsDocument(path string) bool {
	return strings.HasSuffix(filepath.Base(path), records.DocumentSuffix)
}

func (w *Watcher) emit(events []Event) {
	w.logger.Debug("Document changes detected",
		"root", w.root,
		"eventCount", len(events),
	)
	if w.handler != nil {
		w.handler(events)
	}
}

func (w *Watcher) shouldIgnore(path string) bool {
	if path == w.root {
		return false
	}
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || ignoredDirs[base]
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return err
		}
		w.mu.Lock()
		w.dirs[path] = true
		w.mu.Unlock()
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	now := time.Now()

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.shouldIgnore(ev.Name) {
				return
			}
			// A directory moved into the tree may already hold documents.
			if err := w.addRecursive(ev.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", ev.Name, "error", err.Error())
			}
			w.batch.Add(Event{Type: EventCreate, Path: ev.Name, Timestamp: now})
			return
		}
	}

	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.mu.Lock()
		wasDir := w.dirs[ev.Name]
		delete(w.dirs, ev.Name)
		w.mu.Unlock()
		if wasDir {
			w.batch.Add(Event{Type: convertOp(ev.Op), Path: ev.Name, Timestamp: now})
			return
		}
	}

	if !IsDocument(ev.Name) || ev.Op == fsnotify.Chmod {
		return
	}
	w.batch.Add(Event{Type: convertOp(ev.Op), Path: ev.Name, Timestamp: now})
}

func (w *Watcher) poll(maxMtime time.Time, count int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !scanner.IsStale(w.root, maxMtime, count) {
				continue
			}
			m, n, err := scanner.Stat(w.root)
			if err != nil {
				w.logger.Debug("Poll stat failed", "error", err.Error())
				continue
			}
			maxMtime, count = m, n
			w.batch.Add(Event{Type: EventModify, Path: w.root, Timestamp: time.Now()})
		case <-w.ctx.Done():
			return
		}
	}
}

func convertOp(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventCreate
	case op.Has(fsnotify.Remove):
		return EventDelete
	case op.Has(fsnotify.Rename):
		return EventRename
	default:
		return EventModify
	}
}

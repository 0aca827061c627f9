package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"qms/internal/slogutil"
)

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      string
	}{
		{EventCreate, "create"},
		{EventModify, "modify"},
		{EventDelete, "delete"},
		{EventRename, "rename"},
		{EventType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.eventType.String()
			if got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Debounce != 500*time.Millisecond {
		t.Errorf("Debounce = %v, want 500ms", config.Debounce)
	}
	if config.PollInterval != 0 {
		t.Errorf("PollInterval = %v, want polling off", config.PollInterval)
	}
}

func TestIsDocument(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"requirements/inputs/REQ-001.qms.yaml", true},
		{"REQ-001.qms.yaml", true},
		{"requirements/inputs/REQ-001.yaml", false},
		{"requirements/inputs/.REQ-001.qms.yaml.swp", false},
		{"requirements/inputs", false},
	}
	for _, tt := range tests {
		if got := IsDocument(tt.path); got != tt.want {
			t.Errorf("IsDocument(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

// collector receives batches from a watcher.
type collector struct {
	mu      sync.Mutex
	batches [][]Event
	ch      chan struct{}
}

func newCollector() *collector {
	return &collector{ch: make(chan struct{}, 16)}
}

func (c *collector) handle(events []Event) {
	c.mu.Lock()
	c.batches = append(c.batches, events)
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *collector) wait(t *testing.T) []Event {
	t.Helper()
	select {
	case <-c.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a change batch")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches[len(c.batches)-1]
}

// waitFor waits for a batch that mentions path.
func (c *collector) waitFor(t *testing.T, path string) []Event {
	t.Helper()
	for {
		batch := c.wait(t)
		for _, ev := range batch {
			if ev.Path == path {
				return batch
			}
		}
	}
}

func (c *collector) quiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case <-c.ch:
		c.mu.Lock()
		defer c.mu.Unlock()
		t.Errorf("unexpected batch: %+v", c.batches[len(c.batches)-1])
	case <-time.After(d):
	}
}

func startWatcher(t *testing.T, root string, cfg Config, c *collector) *Watcher {
	t.Helper()
	w, err := New(root, cfg, slogutil.NewDiscardLogger(), c.handle)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func newTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{".qms", "requirements/inputs", "node_modules/pkg"} {
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestWatcherSkipsHiddenAndVendorDirs(t *testing.T) {
	root := newTree(t)
	w := startWatcher(t, root, Config{Debounce: 10 * time.Millisecond}, newCollector())

	want := []string{
		root,
		filepath.Join(root, "requirements"),
		filepath.Join(root, "requirements", "inputs"),
	}
	got := w.WatchedDirs()
	if len(got) != len(want) {
		t.Fatalf("WatchedDirs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("WatchedDirs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWatcherReportsDocumentChanges(t *testing.T) {
	root := newTree(t)
	c := newCollector()
	startWatcher(t, root, Config{Debounce: 50 * time.Millisecond}, c)

	doc := filepath.Join(root, "requirements", "inputs", "REQ-001.qms.yaml")
	if err := os.WriteFile(doc, []byte("id: REQ-001\n"), 0644); err != nil {
		t.Fatal(err)
	}

	batch := c.wait(t)
	if len(batch) != 1 || batch[0].Path != doc {
		t.Fatalf("batch = %+v, want one event for %s", batch, doc)
	}

	if err := os.Remove(doc); err != nil {
		t.Fatal(err)
	}
	batch = c.wait(t)
	if len(batch) != 1 || batch[0].Type != EventDelete {
		t.Errorf("batch = %+v, want one delete", batch)
	}
}

func TestWatcherIgnoresNonDocuments(t *testing.T) {
	root := newTree(t)
	c := newCollector()
	startWatcher(t, root, Config{Debounce: 10 * time.Millisecond}, c)

	if err := os.WriteFile(filepath.Join(root, ".qms", "cache.db"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "requirements", "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	c.quiet(t, 200*time.Millisecond)
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := newTree(t)
	c := newCollector()
	w := startWatcher(t, root, Config{Debounce: 50 * time.Millisecond}, c)

	dir := filepath.Join(root, "risks", "design")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	c.wait(t)

	found := false
	for _, d := range w.WatchedDirs() {
		if d == dir {
			found = true
		}
	}
	if !found {
		t.Fatalf("new directory %s not watched: %v", dir, w.WatchedDirs())
	}

	doc := filepath.Join(dir, "RISK-001.qms.yaml")
	if err := os.WriteFile(doc, []byte("id: RISK-001\n"), 0644); err != nil {
		t.Fatal(err)
	}
	c.waitFor(t, doc)
}

func TestWatcherPollCatchesTouchedFiles(t *testing.T) {
	root := newTree(t)
	doc := filepath.Join(root, "requirements", "inputs", "REQ-001.qms.yaml")
	if err := os.WriteFile(doc, []byte("id: REQ-001\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c := newCollector()
	startWatcher(t, root, Config{Debounce: 10 * time.Millisecond, PollInterval: 20 * time.Millisecond}, c)

	// Attribute changes are not document events; only the poll sees them.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(doc, future, future); err != nil {
		t.Fatal(err)
	}
	batch := c.wait(t)
	if len(batch) != 1 || batch[0].Path != root {
		t.Errorf("batch = %+v, want one poll event for the root", batch)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	root := newTree(t)
	w, err := New(root, DefaultConfig(), slogutil.NewDiscardLogger(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	w.Stop()
	w.Stop()
}

func TestStartOnMissingRootFails(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), DefaultConfig(), slogutil.NewDiscardLogger(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Stop()
	if err := w.Start(); err == nil {
		t.Error("Start should fail for a missing root")
	}
}

// BatchDebouncer tests

func TestBatchDebouncerAdd(t *testing.T) {
	var received []Event
	var mu sync.Mutex

	emit := func(events []Event) {
		mu.Lock()
		received = events
		mu.Unlock()
	}

	b := NewBatchDebouncer(50*time.Millisecond, emit)

	b.Add(Event{Type: EventCreate, Path: "a.qms.yaml"})
	b.Add(Event{Type: EventModify, Path: "b.qms.yaml"})
	b.Add(Event{Type: EventDelete, Path: "c.qms.yaml"})

	if b.EventCount() != 3 {
		t.Errorf("EventCount() = %d, want 3", b.EventCount())
	}

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	if len(received) != 3 {
		t.Errorf("Should have received 3 events, got %d", len(received))
	}
	mu.Unlock()
}

func TestBatchDebouncerKeepsLatestEventPerPath(t *testing.T) {
	var received []Event
	b := NewBatchDebouncer(time.Hour, func(events []Event) { received = events })

	b.Add(Event{Type: EventCreate, Path: "a.qms.yaml"})
	b.Add(Event{Type: EventCreate, Path: "b.qms.yaml"})
	b.Add(Event{Type: EventModify, Path: "a.qms.yaml"})
	b.Add(Event{Type: EventDelete, Path: "a.qms.yaml"})

	if b.EventCount() != 2 {
		t.Errorf("EventCount() = %d, want 2", b.EventCount())
	}
	b.Flush()

	if len(received) != 2 {
		t.Fatalf("received = %+v, want 2 events", received)
	}
	if received[0].Path != "a.qms.yaml" || received[0].Type != EventDelete {
		t.Errorf("first event = %+v, want the delete of a.qms.yaml", received[0])
	}
	if received[1].Path != "b.qms.yaml" {
		t.Errorf("second event = %+v", received[1])
	}
}

func TestBatchDebouncerCancel(t *testing.T) {
	var called bool
	var mu sync.Mutex

	emit := func(events []Event) {
		mu.Lock()
		called = true
		mu.Unlock()
	}

	b := NewBatchDebouncer(50*time.Millisecond, emit)
	b.Add(Event{Type: EventCreate, Path: "a.qms.yaml"})
	b.Cancel()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	if called {
		t.Error("Emit should not be called after cancel")
	}
	mu.Unlock()

	if b.EventCount() != 0 {
		t.Errorf("EventCount() = %d, want 0 after cancel", b.EventCount())
	}
}

func TestBatchDebouncerNoEmitWithNoEvents(t *testing.T) {
	called := false
	b := NewBatchDebouncer(10*time.Millisecond, func([]Event) { called = true })
	b.Flush()

	if called {
		t.Error("Emit should not be called with no events")
	}
}

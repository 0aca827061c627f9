package watcher

import (
	"sync"
	"time"
)

// BatchDebouncer collects events until a quiet period of delay has passed,
// then emits them as one batch with a single event per path (the latest).
type BatchDebouncer struct {
	delay time.Duration
	timer *time.Timer
	mu    sync.Mutex
	order []string
	last  map[string]Event
	emit  func([]Event)
}

// NewBatchDebouncer creates a new batch debouncer
func NewBatchDebouncer(delay time.Duration, emit func([]Event)) *BatchDebouncer {
	return &BatchDebouncer{
		delay: delay,
		last:  make(map[string]Event),
		emit:  emit,
	}
}

// Add records an event and restarts the quiet period.
func (b *BatchDebouncer) Add(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, seen := b.last[event.Path]; !seen {
		b.order = append(b.order, event.Path)
	}
	b.last[event.Path] = event

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, b.flush)
}

func (b *BatchDebouncer) take() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := make([]Event, 0, len(b.order))
	for _, p := range b.order {
		events = append(events, b.last[p])
	}
	b.order = nil
	b.last = make(map[string]Event)
	b.timer = nil
	return events
}

func (b *BatchDebouncer) flush() {
	events := b.take()
	if len(events) > 0 && b.emit != nil {
		b.emit(events)
	}
}

// Cancel drops any pending events.
func (b *BatchDebouncer) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.order = nil
	b.last = make(map[string]Event)
}

// Flush emits pending events immediately.
func (b *BatchDebouncer) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.mu.Unlock()

	b.flush()
}

// EventCount returns the number of distinct paths pending.
func (b *BatchDebouncer) EventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

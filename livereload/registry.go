package livereload

import (
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// WatchEntry describes what to observe and what to do when it changes. Entries are immutable once registered.
type WatchEntry struct {
	// File path, directory, doublestar glob, or "pkg:<import path>" for a Go package and its dependencies.
	Pattern string
	// Run on change, before any reload is sent. May be nil.
	Task Task
	// Client-side reload delay. Forever never reloads.
	Delay Delay
	// Doublestar patterns matched against the full path and the base name.
	Ignore []string
}

type WatchRegistry struct {
	mu      sync.RWMutex
	entries []*WatchEntry
}

func NewWatchRegistry() *WatchRegistry {
	return &WatchRegistry{}
}

// Add appends an entry. Entries with equal patterns are kept side by side and fire independently.
func (r *WatchRegistry) Add(pattern string, task Task, delay Delay) *WatchEntry {
	entry := &WatchEntry{Pattern: pattern, Task: task, Delay: delay}
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return entry
}

func (r *WatchRegistry) AddEntry(entry WatchEntry) (*WatchEntry, error) {
	if entry.Pattern == "" {
		return nil, errors.New("pattern is required")
	}
	for _, ignore := range entry.Ignore {
		if !doublestar.ValidatePattern(ignore) {
			return nil, errors.Errorf("invalid ignore pattern [%s]", ignore)
		}
	}

	e := &WatchEntry{
		Pattern: entry.Pattern,
		Task:    entry.Task,
		Delay:   entry.Delay,
		Ignore:  append([]string(nil), entry.Ignore...),
	}
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
	return e, nil
}

// Entries returns a snapshot in insertion order.
func (r *WatchRegistry) Entries() []*WatchEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*WatchEntry(nil), r.entries...)
}

func (r *WatchRegistry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	patterns := make([]string, len(r.entries))
	for i, entry := range r.entries {
		patterns[i] = entry.Pattern
	}
	return patterns
}

func (r *WatchRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

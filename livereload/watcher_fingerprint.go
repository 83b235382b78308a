package livereload

import (
	"os"
)

type fingerprint struct {
	modTime int64
	size    int64
}

func fingerprintOf(info os.FileInfo) fingerprint {
	return fingerprint{
		modTime: info.ModTime().UnixNano(),
		size:    info.Size(),
	}
}

type fileState struct {
	fingerprint fingerprint
	// Entries that matched the path on the last cycle it was seen. Used when the path disappears.
	entries []*WatchEntry
}

// changeBatch collects entries triggered within one cycle, in the order they were first triggered.
type changeBatch struct {
	entries []*WatchEntry
	paths   map[*WatchEntry][]string
}

func newChangeBatch() *changeBatch {
	return &changeBatch{paths: make(map[*WatchEntry][]string)}
}

func (b *changeBatch) add(entry *WatchEntry, path string) {
	if _, ok := b.paths[entry]; !ok {
		b.entries = append(b.entries, entry)
	}
	for _, p := range b.paths[entry] {
		if p == path {
			return
		}
	}
	b.paths[entry] = append(b.paths[entry], path)
}

func (b *changeBatch) empty() bool {
	return len(b.entries) == 0
}

// reload computes what a change event should carry. ok is false when every triggered entry is Forever.
func (b *changeBatch) reload() (paths []string, delay Delay, ok bool) {
	var delays []Delay
	seen := make(map[string]bool)
	for _, entry := range b.entries {
		if entry.Delay.IsForever() {
			continue
		}
		delays = append(delays, entry.Delay)
		for _, path := range b.paths[entry] {
			if !seen[path] {
				seen[path] = true
				paths = append(paths, path)
			}
		}
	}
	d, ok := minDelay(delays)
	if !ok {
		return nil, Forever, false
	}
	return paths, After(d), true
}

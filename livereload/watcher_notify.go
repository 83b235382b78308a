package livereload

import (
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// notifier wakes the watcher loop early when the OS reports activity in directories holding watched files.
// Fingerprints remain the source of truth; events are only a hint.
type notifier struct {
	watcher *fsnotify.Watcher
	dirs    map[string]bool
}

func newNotifier() (*notifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "could not create watcher")
	}
	return &notifier{watcher: w, dirs: make(map[string]bool)}, nil
}

// sync makes the watched directory set equal to dirs. It returns the first error encountered.
func (n *notifier) sync(dirs map[string]bool) error {
	var firstErr error
	for dir := range dirs {
		if n.dirs[dir] {
			continue
		}
		if err := n.watcher.Add(dir); err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "watch of [%s] failed", dir)
			}
			continue
		}
		n.dirs[dir] = true
	}
	for dir := range n.dirs {
		if !dirs[dir] {
			// fsnotify already dropped the watch if the directory was removed
			n.watcher.Remove(dir)
			delete(n.dirs, dir)
		}
	}
	return firstErr
}

func (n *notifier) events() <-chan fsnotify.Event {
	return n.watcher.Events
}

func (n *notifier) errors() <-chan error {
	return n.watcher.Errors
}

func (n *notifier) Close() error {
	return n.watcher.Close()
}

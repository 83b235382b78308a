package livereload

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/logrusorgru/aurora"
	"github.com/pkg/errors"
	"livereload.io/livereload/logger"
)

const (
	defaultInterval     = time.Second
	defaultNotifySettle = 100 * time.Millisecond
	defaultRestartDelay = 2 * time.Second
	heartbeatTolerance  = 3
	eventBufferSize     = 16
)

type WatcherOptions struct {
	// Polling interval.
	Interval time.Duration
	// If true, OS change notifications trigger an extra cycle between polls.
	Notify bool
	// Time to wait for more OS events before scanning.
	NotifySettle time.Duration
	// Restart reload is emitted this long after start. Negative disables it.
	RestartDelay time.Duration
	// Emit EventAlert when tasks fail.
	AlertOnFailure bool
	Logger         logger.Logger
	NoColors       bool
}

// ChangeWatcher polls the files matched by registry entries and emits aggregated events.
// All file state is owned by the goroutine executing Run.
type ChangeWatcher struct {
	registry  *WatchRegistry
	options   WatcherOptions
	log       logger.Logger
	colors    aurora.Aurora
	expander  *expander
	state     map[string]*fileState
	dirs      map[string]bool
	events    chan *Event
	heartbeat int64
	running   int32
}

func NewChangeWatcher(registry *WatchRegistry, options WatcherOptions) *ChangeWatcher {
	if options.Interval <= 0 {
		options.Interval = defaultInterval
	}
	if options.NotifySettle <= 0 {
		options.NotifySettle = defaultNotifySettle
	}
	if options.RestartDelay == 0 {
		options.RestartDelay = defaultRestartDelay
	}
	if options.Logger == nil {
		options.Logger = newDefaultLogger(options.NoColors)
	}

	return &ChangeWatcher{
		registry: registry,
		options:  options,
		log:      options.Logger,
		colors:   aurora.NewAurora(!options.NoColors),
		expander: newExpander(),
		state:    make(map[string]*fileState),
		events:   make(chan *Event, eventBufferSize),
	}
}

// Events is closed when Run returns.
func (w *ChangeWatcher) Events() <-chan *Event {
	return w.events
}

// LastHeartbeat is the time the last polling cycle finished. Zero before the first cycle.
func (w *ChangeWatcher) LastHeartbeat() time.Time {
	ns := atomic.LoadInt64(&w.heartbeat)
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Healthy reports whether a cycle finished recently. Long running tasks make the watcher unhealthy until they exit.
func (w *ChangeWatcher) Healthy(now time.Time) bool {
	last := w.LastHeartbeat()
	if last.IsZero() {
		return false
	}
	return now.Sub(last) <= heartbeatTolerance*w.options.Interval
}

// Run polls until ctx is done. It may be called only once.
func (w *ChangeWatcher) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&w.running, 0, 1) {
		return errors.New("watcher already running")
	}
	defer close(w.events)

	var (
		notifyEvents <-chan fsnotify.Event
		notifyErrors <-chan error
		n            *notifier
	)
	if w.options.Notify {
		var err error
		n, err = newNotifier()
		if err != nil {
			w.log.Errorf("falling back to polling only: %s", err)
		} else {
			defer n.Close()
			notifyEvents, notifyErrors = n.events(), n.errors()
		}
	}

	ticker := time.NewTicker(w.options.Interval)
	defer ticker.Stop()

	var (
		scanC  <-chan time.Time
		restartC <-chan time.Time
	)
	if w.options.RestartDelay > 0 {
		restartC = time.After(w.options.RestartDelay)
	}

	w.log.Info(w.colors.Bold("watch:"), w.colors.Green(" started"))

	if !w.cycle(ctx, n) {
		return nil
	}

LOOP:
	for {
		select {
		case <-ctx.Done():
			break LOOP

		case <-ticker.C:
			if !w.cycle(ctx, n) {
				break LOOP
			}

		case <-scanC:
			scanC = nil
			if !w.cycle(ctx, n) {
				break LOOP
			}

		case <-restartC:
			restartC = nil
			if !w.emit(ctx, &Event{Kind: EventRestart, Paths: []string{RestartPath}}) {
				break LOOP
			}

		case ev, ok := <-notifyEvents:
			if !ok {
				notifyEvents = nil
				continue LOOP
			}
			if ev.Op == fsnotify.Chmod {
				continue LOOP
			}
			if scanC == nil {
				scanC = time.After(w.options.NotifySettle)
			}

		case err, ok := <-notifyErrors:
			if !ok {
				notifyErrors = nil
				continue LOOP
			}
			w.log.Errorf("notification error: %s", err)
		}
	}

	w.log.Info(w.colors.Bold("watch:"), " stopped")
	return nil
}

func (w *ChangeWatcher) cycle(ctx context.Context, n *notifier) bool {
	events := w.examine()
	if n != nil {
		if err := n.sync(w.dirs); err != nil {
			w.log.Errorf("notification setup failed: %s", err)
		}
	}
	for _, ev := range events {
		if !w.emit(ctx, ev) {
			return false
		}
	}
	return ctx.Err() == nil
}

func (w *ChangeWatcher) emit(ctx context.Context, ev *Event) bool {
	select {
	case w.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// examine runs one polling cycle: scan, compare, run triggered tasks and aggregate the result.
func (w *ChangeWatcher) examine() []*Event {
	defer atomic.StoreInt64(&w.heartbeat, time.Now().UnixNano())

	batch := newChangeBatch()
	seen := make(map[string][]*WatchEntry)
	// paths of entries whose expansion failed this cycle; they are kept as they were
	held := make(map[string][]*WatchEntry)
	changed := make(map[string]bool)
	dirs := make(map[string]bool)

	for _, entry := range w.registry.Entries() {
		paths, err := w.expander.expand(entry)
		if err != nil {
			w.log.Errorf("watch of [%s] failed: %s", entry.Pattern, err)
			for path, state := range w.state {
				if owns(state.entries, entry) {
					held[path] = append(held[path], entry)
					dirs[filepath.Dir(path)] = true
				}
			}
			continue
		}
		for _, path := range paths {
			owners, compared := seen[path]
			seen[path] = append(owners, entry)
			if !compared {
				ok, err := w.compare(path)
				if err != nil {
					// vanished between expansion and stat
					delete(seen, path)
					continue
				}
				changed[path] = ok
				dirs[filepath.Dir(path)] = true
			}
			if changed[path] {
				batch.add(entry, path)
			}
		}
	}

	for path, state := range w.state {
		owners, ok := seen[path]
		if entries := held[path]; len(entries) > 0 {
			owners = append(owners, entries...)
			ok = true
		}
		if !ok {
			delete(w.state, path)
			for _, entry := range state.entries {
				batch.add(entry, path)
			}
			continue
		}
		state.entries = owners
	}
	w.dirs = dirs

	if batch.empty() {
		return nil
	}

	for _, entry := range batch.entries {
		for _, path := range batch.paths[entry] {
			w.expander.invalidate(path)
		}
	}

	var (
		events   []*Event
		failures []string
	)
	for _, entry := range batch.entries {
		w.log.Info(w.colors.Bold("watch:"), " ", entry.Pattern, " ", batch.paths[entry])
		if entry.Task == nil {
			continue
		}
		if err := runTask(entry.Task); err != nil {
			w.log.Errorf("task for [%s] failed: %s", entry.Pattern, err)
			failures = append(failures, err.Error())
		}
	}

	if len(failures) > 0 && w.options.AlertOnFailure {
		for _, message := range failures {
			events = append(events, &Event{Kind: EventAlert, Message: message})
		}
	}

	if paths, delay, ok := batch.reload(); ok {
		events = append(events, &Event{Kind: EventChange, Paths: paths, Delay: delay.Duration()})
	}

	return events
}

func owns(entries []*WatchEntry, entry *WatchEntry) bool {
	for _, e := range entries {
		if e == entry {
			return true
		}
	}
	return false
}

// compare records the fingerprint of path and reports whether it differs from the previous one.
// The first observation of a path is a baseline, never a change.
func (w *ChangeWatcher) compare(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	fp := fingerprintOf(info)

	state, ok := w.state[path]
	if !ok {
		w.state[path] = &fileState{fingerprint: fp}
		return false, nil
	}
	if state.fingerprint == fp {
		return false, nil
	}
	state.fingerprint = fp
	return true, nil
}

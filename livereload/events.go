package livereload

import (
	"fmt"
	"time"
)

type EventKind uint8

const (
	// EventChange is emitted when watched files changed and at least one triggered entry is not Forever.
	EventChange EventKind = iota + 1
	// EventRestart is emitted once after start so that browsers reconnecting to a restarted server reload.
	EventRestart
	// EventAlert carries task failures to be surfaced in browsers.
	EventAlert
)

// RestartPath is the path reported by restart reloads.
const RestartPath = "__livereload__"

func (k EventKind) String() string {
	switch k {
	case EventChange:
		return "change"
	case EventRestart:
		return "restart"
	case EventAlert:
		return "alert"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

type Event struct {
	Kind    EventKind
	Paths   []string
	Delay   time.Duration
	Message string
}

// Path is the single path sent with a reload command; "*" when several files changed at once.
func (e *Event) Path() string {
	switch len(e.Paths) {
	case 0:
		return "*"
	case 1:
		return e.Paths[0]
	default:
		return "*"
	}
}

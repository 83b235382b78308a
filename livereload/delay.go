package livereload

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type delayKind uint8

const (
	delayImmediate delayKind = iota
	delayAfter
	delayForever
)

// Delay tells clients how long to wait before reloading after a change matched by an entry.
// The zero value is Immediate.
type Delay struct {
	kind     delayKind
	duration time.Duration
}

var (
	Immediate = Delay{kind: delayImmediate}
	// Forever entries run their task but never cause a reload.
	Forever = Delay{kind: delayForever}
)

func After(d time.Duration) Delay {
	if d <= 0 {
		return Immediate
	}
	return Delay{kind: delayAfter, duration: d}
}

func Seconds(s float64) Delay {
	return After(time.Duration(s * float64(time.Second)))
}

func (d Delay) IsForever() bool {
	return d.kind == delayForever
}

func (d Delay) IsImmediate() bool {
	return d.kind == delayImmediate
}

// Duration is zero for Immediate and Forever.
func (d Delay) Duration() time.Duration {
	if d.kind != delayAfter {
		return 0
	}
	return d.duration
}

func (d Delay) String() string {
	switch d.kind {
	case delayForever:
		return "forever"
	case delayAfter:
		return d.duration.String()
	default:
		return "immediate"
	}
}

// Largest number of seconds representable as time.Duration.
const maxDelaySeconds = float64(math.MaxInt64 / int64(time.Second))

// ParseDelay accepts "", "immediate", "forever", a number of seconds ("2", "0.5") or a Go duration ("500ms").
func ParseDelay(s string) (Delay, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "immediate", "none":
		return Immediate, nil
	case "forever":
		return Forever, nil
	}

	if seconds, err := strconv.ParseFloat(s, 64); err == nil {
		switch {
		case math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds > maxDelaySeconds:
			return Delay{}, errors.Errorf("invalid delay [%s]", s)
		case seconds < 0:
			return Delay{}, errors.Errorf("negative delay [%s]", s)
		}
		return Seconds(seconds), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return Delay{}, errors.Errorf("invalid delay [%s]", s)
	}
	if d < 0 {
		return Delay{}, errors.Errorf("negative delay [%s]", s)
	}
	return After(d), nil
}

// Set and Type let Delay be used as a command-line flag value.
func (d *Delay) Set(s string) error {
	parsed, err := ParseDelay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d *Delay) Type() string {
	return "delay"
}

func (d *Delay) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: delay must be a scalar", node.Line)
	}
	parsed, err := ParseDelay(node.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d", node.Line)
	}
	*d = parsed
	return nil
}

func (d Delay) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// minDelay returns the smallest non-forever delay. ok is false when every delay is forever (or there are none).
func minDelay(delays []Delay) (min time.Duration, ok bool) {
	for _, d := range delays {
		if d.IsForever() {
			continue
		}
		if !ok || d.Duration() < min {
			min = d.Duration()
		}
		ok = true
	}
	return min, ok
}

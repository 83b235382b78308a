package livereload

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Task is a unit of work attached to a watch entry. Implementations are Func and the task returned by ShellCommand.Task.
type Task interface {
	Run() error
}

// Func adapts an arbitrary callable to Task.
type Func func() error

func (f Func) Run() error {
	return f()
}

// TaskError is returned by failed tasks. Failures are reported, never fatal to the watcher.
type TaskError struct {
	Name     string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *TaskError) Error() string {
	switch {
	case e.Stderr != "":
		return fmt.Sprintf("task [%s] failed: %s", e.Name, firstLine(e.Stderr))
	case e.Err == nil || e.ExitCode != 0:
		return fmt.Sprintf("task [%s] exited with code %d", e.Name, e.ExitCode)
	default:
		return fmt.Sprintf("task [%s] failed: %s", e.Name, e.Err)
	}
}

// Cause is never nil. Without Err it is the first line of stderr, or the exit code.
func (e *TaskError) Cause() error {
	if e.Err != nil {
		return e.Err
	}
	if e.Stderr != "" {
		return errors.New(firstLine(e.Stderr))
	}
	return errors.Errorf("exit code %d", e.ExitCode)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// runTask shields the caller from panics in callbacks.
func runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("task panicked: %v", r)
		}
	}()
	return task.Run()
}

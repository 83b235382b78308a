package livereload

import (
	"bufio"
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/shlex"
	"github.com/logrusorgru/aurora"
	"github.com/pkg/errors"
	"livereload.io/livereload/logger"
)

// ShellCommand describes an external command run as a task.
//
//	server.Watch("style.less", livereload.Shell("lessc style.less").WithOutput("style.css"), livereload.Immediate)
type ShellCommand struct {
	// Command line, split with shell quoting rules unless UseShell is set. Ignored when Args is set.
	Command string
	// Explicit argv.
	Args []string
	// If set, stdout is written to this file. Parent directories are created as needed.
	Output string
	// Append to Output instead of truncating it.
	Append bool
	// Working directory of the command.
	Dir string
	// Pass Command verbatim to the system shell.
	UseShell bool
	// Extra environment variables in KEY=VALUE form.
	Env []string
}

func Shell(command string) ShellCommand {
	return ShellCommand{Command: command}
}

func (c ShellCommand) WithOutput(path string) ShellCommand {
	c.Output = path
	return c
}

func (c ShellCommand) WithDir(dir string) ShellCommand {
	c.Dir = dir
	return c
}

func (c ShellCommand) String() string {
	if len(c.Args) > 0 {
		return strings.Join(c.Args, " ")
	}
	return c.Command
}

// Task resolves the command line once and returns a runnable task.
func (c ShellCommand) Task(log logger.Logger) (Task, error) {
	return c.resolve(log, aurora.NewAurora(false))
}

func (c ShellCommand) resolve(log logger.Logger, colors aurora.Aurora) (Task, error) {
	argv, err := c.argv()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = newDefaultLogger(true)
	}
	return &shellTask{
		command: c,
		argv:    argv,
		log:     log,
		colors:  colors,
	}, nil
}

func (c ShellCommand) argv() ([]string, error) {
	if len(c.Args) > 0 {
		return append([]string(nil), c.Args...), nil
	}
	if strings.TrimSpace(c.Command) == "" {
		return nil, errors.New("empty command")
	}
	if c.UseShell {
		if runtime.GOOS == "windows" {
			return []string{"cmd", "/C", c.Command}, nil
		}
		return []string{"sh", "-c", c.Command}, nil
	}
	argv, err := shlex.Split(c.Command)
	if err != nil {
		return nil, errors.Wrapf(err, "could not split command [%s]", c.Command)
	}
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	return argv, nil
}

type shellTask struct {
	command ShellCommand
	argv    []string
	log     logger.Logger
	colors  aurora.Aurora
}

func (t *shellTask) String() string {
	return t.command.String()
}

func (t *shellTask) Run() error {
	name := t.command.String()

	cmd := exec.Command(t.argv[0], t.argv[1:]...)
	cmd.Dir = t.command.Dir
	if len(t.command.Env) > 0 {
		cmd.Env = append(os.Environ(), t.command.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		t.log.Error(t.colors.Bold("task:"), " ", err)
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			t.log.Errorf("maybe you haven't installed %s", t.argv[0])
		}
		return &TaskError{Name: name, Err: err}
	}

	waitErr := cmd.Wait()

	if stderr.Len() > 0 {
		t.log.Error(t.colors.Bold("task:"), " ", name, ": ", strings.TrimRight(stderr.String(), "\r\n"))
		return &TaskError{
			Name:     name,
			Stderr:   stderr.String(),
			ExitCode: cmd.ProcessState.ExitCode(),
			Err:      errors.New(firstLine(stderr.String())),
		}
	}

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			t.log.Errorf("task [%s] returned non-zero exit code %d", name, exitErr.ExitCode())
			return &TaskError{Name: name, ExitCode: exitErr.ExitCode(), Err: exitErr}
		}
		t.log.Error(t.colors.Bold("task:"), " ", waitErr)
		return &TaskError{Name: name, Err: waitErr}
	}

	if t.command.Output == "" {
		scanner := bufio.NewScanner(&stdout)
		for scanner.Scan() {
			t.log.Info(t.colors.Bold("task:"), " ", scanner.Text())
		}
		return nil
	}

	return t.writeOutput(stdout.Bytes())
}

func (t *shellTask) writeOutput(data []byte) error {
	output := t.command.Output
	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.log.Errorf("could not create output directory [%s]: %s", dir, err)
			return &TaskError{Name: t.command.String(), Err: err}
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if t.command.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(output, flags, 0644)
	if err != nil {
		t.log.Errorf("could not open output file [%s]: %s", output, err)
		return &TaskError{Name: t.command.String(), Err: err}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return &TaskError{Name: t.command.String(), Err: errors.Wrapf(err, "write to [%s] failed", output)}
	}
	if err := f.Close(); err != nil {
		return &TaskError{Name: t.command.String(), Err: errors.Wrapf(err, "close of [%s] failed", output)}
	}
	return nil
}

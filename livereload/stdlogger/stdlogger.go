package stdlogger

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/logrusorgru/aurora"
	"livereload.io/livereload/logger"
)

const (
	infoMarker  = "[info] "
	errorMarker = "[error] "
)

type Options struct {
	// Omit date and time in front of every line.
	NoTimestamps bool
	// Print level markers without ANSI colors.
	NoColors bool
}

type stdLogger struct {
	out    *log.Logger
	colors aurora.Aurora
}

// New returns a logger writing to out. Every line of a message gets the level marker, so multi-line task
// output stays attributed.
func New(out io.Writer, options Options) logger.Logger {
	flags := log.LstdFlags
	if options.NoTimestamps {
		flags = 0
	}
	return &stdLogger{
		out:    log.New(out, "", flags),
		colors: aurora.NewAurora(!options.NoColors),
	}
}

func (l *stdLogger) Info(v ...interface{}) {
	l.print(l.colors.Cyan(infoMarker), fmt.Sprint(v...))
}

func (l *stdLogger) Infof(format string, v ...interface{}) {
	l.print(l.colors.Cyan(infoMarker), fmt.Sprintf(format, v...))
}

func (l *stdLogger) Error(v ...interface{}) {
	l.print(l.colors.Red(errorMarker), fmt.Sprint(v...))
}

func (l *stdLogger) Errorf(format string, v ...interface{}) {
	l.print(l.colors.Red(errorMarker), fmt.Sprintf(format, v...))
}

func (l *stdLogger) print(marker aurora.Value, message string) {
	for _, line := range strings.Split(strings.TrimRight(message, "\r\n"), "\n") {
		l.out.Print(marker, strings.TrimRight(line, "\r"))
	}
}

package livereload

import (
	"os"

	"livereload.io/livereload/logger"
	"livereload.io/livereload/stdlogger"
)

func newDefaultLogger(noColors bool) logger.Logger {
	return stdlogger.New(os.Stderr, stdlogger.Options{NoColors: noColors})
}

package livereload

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"livereload.io/livereload/logger"
	"livereload.io/livereload/stdlogger"
)

// logBuffer collects log output written from several goroutines.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (logger.Logger, *logBuffer) {
	buf := &logBuffer{}
	return stdlogger.New(buf, stdlogger.Options{NoTimestamps: true, NoColors: true}), buf
}

// writeFile replaces path with content whose modification time is age seconds from now. The file is prepared
// aside and renamed into place, so a concurrent poll never sees a half-updated fingerprint.
func writeFile(t *testing.T, path string, content string, age int) {
	t.Helper()
	assert := require.New(t)

	assert.NoError(os.MkdirAll(filepath.Dir(path), 0755))
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	assert.NoError(os.WriteFile(tmp, []byte(content), 0644))
	mtime := time.Now().Add(time.Duration(age) * time.Second)
	assert.NoError(os.Chtimes(tmp, mtime, mtime))
	assert.NoError(os.Rename(tmp, path))
}

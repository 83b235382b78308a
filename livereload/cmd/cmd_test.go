package cmd

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"livereload.io/livereload"
)

func TestParseExec(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		pattern string
		command string
		wantErr bool
	}{
		{name: "simple", input: "style.less=lessc style.less", pattern: "style.less", command: "lessc style.less"},
		{name: "spaces", input: " src/**/*.ts = tsc -p . ", pattern: "src/**/*.ts", command: "tsc -p ."},
		{name: "equals in command", input: "a.txt=env FOO=bar make", pattern: "a.txt", command: "env FOO=bar make"},
		{name: "missing command", input: "a.txt=", wantErr: true},
		{name: "missing pattern", input: "=make", wantErr: true},
		{name: "no separator", input: "make", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := require.New(t)

			definition, err := parseExec(test.input, livereload.After(time.Second))
			if test.wantErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(test.pattern, definition.Pattern)
			assert.NotNil(definition.Shell)
			assert.Equal(test.command, definition.Shell.Command)
			assert.Equal(livereload.After(time.Second), definition.Delay)
		})
	}
}

func TestBuildConfig(t *testing.T) {
	assert := require.New(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "livereload.yaml")
	assert.NoError(ioutil.WriteFile(configPath, []byte(`
port: 8000
root: public
notify: true
watches:
  - pattern: public/**/*.html
    delay: 0.5
`), 0644))

	cmd := Cmd()
	assert.NoError(cmd.ParseFlags([]string{
		"--config", configPath,
		"--port", "9000",
		"--watch", "assets",
		"--exec", "style.less=lessc style.less",
		"--delay", "forever",
	}))

	rootConfig := &livereload.Config{Host: livereload.DefaultHost, Port: 9000, Interval: time.Second}
	options := &rootOptions{
		configPath: configPath,
		watches:    []string{"assets"},
		execs:      []string{"style.less=lessc style.less"},
		delay:      livereload.Forever,
	}

	config, err := buildConfig(cmd, rootConfig, options, nil)
	assert.NoError(err)

	assert.Equal(9000, config.Port)
	assert.Equal("public", config.Root)
	assert.True(config.Notify)
	assert.Equal(time.Second, config.Interval)
	assert.Len(config.Watches, 3)
	assert.Equal("public/**/*.html", config.Watches[0].Pattern)
	assert.Equal(livereload.After(500*time.Millisecond), config.Watches[0].Delay)
	assert.Equal("assets", config.Watches[1].Pattern)
	assert.True(config.Watches[1].Delay.IsForever())
	assert.Equal("lessc style.less", config.Watches[2].Shell.Command)

	config, err = buildConfig(cmd, rootConfig, options, []string{"site"})
	assert.NoError(err)
	assert.Equal("site", config.Root)
}

func TestReloadCmd(t *testing.T) {
	assert := require.New(t)

	paths := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Query().Get("path")
		w.Header().Set(livereload.SessionsHeader, "3")
		fmt.Fprint(w, "200 ok")
	}))
	defer server.Close()

	cmd := Cmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"reload", "--address", server.URL, "--path", "index.html"})

	assert.NoError(cmd.Execute())
	assert.Equal("index.html", <-paths)
	assert.Equal("reloaded 3 session(s)\n", out.String())
}

func TestHealthCmd_Unhealthy(t *testing.T) {
	assert := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "503 watcher not responding", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cmd := Cmd()
	cmd.SetOut(ioutil.Discard)
	cmd.SetErr(ioutil.Discard)
	cmd.SetArgs([]string{"health", "--address", server.URL})

	assert.Error(cmd.Execute())
}

package livereload

import (
	"context"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"livereload.io/livereload/static"
)

const testPage = "<html><head><title>test</title></head><body></body></html>"

func newTestServer(t *testing.T, config *Config, content http.Handler) *Server {
	t.Helper()
	if config.Root == "" && config.Proxy == "" {
		config.Root = t.TempDir()
	}
	config.NoColors = true
	config.Logger, _ = newTestLogger()

	s, err := New(config, content)
	require.NoError(t, err)
	return s
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	response, err := http.Get(url)
	require.NoError(t, err)
	defer response.Body.Close()
	body, err := ioutil.ReadAll(response.Body)
	require.NoError(t, err)
	return response, string(body)
}

func TestServer_Handler(t *testing.T) {
	assert := require.New(t)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.html"), testPage, -10)
	writeFile(t, filepath.Join(root, "site.css"), "body {}", -10)

	s := newTestServer(t, &Config{Root: root}, nil)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	response, body := get(t, server.URL+"/")
	assert.Equal(http.StatusOK, response.StatusCode)
	assert.Equal(
		`<html><head><title>test</title><script src="/livereload.js"></script></head><body></body></html>`,
		body,
	)
	assert.Equal("no-store", response.Header.Get("Cache-Control"))

	response, body = get(t, server.URL+"/site.css")
	assert.Equal(http.StatusOK, response.StatusCode)
	assert.Equal("body {}", body)

	response, body = get(t, server.URL+"/livereload.js")
	assert.Equal(http.StatusOK, response.StatusCode)
	assert.Equal(static.ScriptContentType, response.Header.Get("Content-Type"))
	assert.Equal(string(static.Script), body)

	response, body = get(t, server.URL+"/forcereload?path=site.css")
	assert.Equal(http.StatusOK, response.StatusCode)
	assert.Equal("200 ok", body)
	assert.Equal("0", response.Header.Get(SessionsHeader))

	response, _ = get(t, server.URL+"/livereload/health")
	assert.Equal(http.StatusServiceUnavailable, response.StatusCode)

	s.Watcher().examine()
	response, body = get(t, server.URL+"/livereload/health")
	assert.Equal(http.StatusOK, response.StatusCode)
	assert.True(strings.HasPrefix(body, "200 ok "))

	response, _ = get(t, server.URL+"/missing.html")
	assert.Equal(http.StatusNotFound, response.StatusCode)
}

func TestServer_LiveHandler(t *testing.T) {
	assert := require.New(t)

	s := newTestServer(t, &Config{Port: 8000, LivePort: 35729}, nil)
	server := httptest.NewServer(s.LiveHandler())
	defer server.Close()

	response, _ := get(t, server.URL+"/index.html")
	assert.Equal(http.StatusNotFound, response.StatusCode)

	response, _ = get(t, server.URL+"/livereload.js")
	assert.Equal(http.StatusOK, response.StatusCode)
}

func TestServer_scriptTag(t *testing.T) {
	tests := []struct {
		name        string
		host        string
		livePort    int
		requestHost string
		want        string
	}{
		{name: "single port", host: "127.0.0.1", requestHost: "localhost:5500", want: `<script src="/livereload.js"></script>`},
		{name: "split ports", host: "127.0.0.1", livePort: 35729, requestHost: "localhost:5500", want: `<script src="//127.0.0.1:35729/livereload.js"></script>`},
		{name: "any address", host: "0.0.0.0", livePort: 35729, requestHost: "192.168.1.5:5500", want: `<script src="//192.168.1.5:35729/livereload.js"></script>`},
		{name: "any address ipv6", host: "::", livePort: 35729, requestHost: "[fe80::1]:5500", want: `<script src="//[fe80::1]:35729/livereload.js"></script>`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := require.New(t)

			s := newTestServer(t, &Config{Host: test.host, LivePort: test.livePort}, nil)
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Host = test.requestHost
			assert.Equal(test.want, string(s.scriptTag(r)))
		})
	}
}

func TestServer_Proxy(t *testing.T) {
	assert := require.New(t)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, testPage)
	}))
	defer backend.Close()

	s := newTestServer(t, &Config{Proxy: backend.URL}, nil)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	response, body := get(t, server.URL+"/app")
	assert.Equal(http.StatusOK, response.StatusCode)
	assert.Contains(body, `<script src="/livereload.js"></script></head>`)

	backend.Close()
	response, _ = get(t, server.URL+"/app")
	assert.Equal(http.StatusBadGateway, response.StatusCode)
}

func TestServer_Watch(t *testing.T) {
	assert := require.New(t)

	root := t.TempDir()
	s := newTestServer(t, &Config{
		Root: root,
		Watches: []WatchDefinition{
			{Pattern: "*.html"},
			{Pattern: "*.less", Shell: &ShellDefinition{Command: "lessc site.less"}},
		},
	}, nil)

	s.Watch("a.txt", nil, Forever)
	_, err := s.WatchShell("b.txt", "make b", After(time.Second))
	assert.NoError(err)
	_, err = s.WatchShell("c.txt", "", Immediate)
	assert.Error(err)

	assert.Equal([]string{"*.html", "*.less", "a.txt", "b.txt"}, s.Registry().Patterns())
	assert.NotNil(s.Registry().Entries()[1].Task)
}

// A change of a watched file runs its task once and reaches a connected browser as a single reload carrying the
// entry's delay.
func TestServer_ServeListeners(t *testing.T) {
	assert := require.New(t)

	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	writeFile(t, path, "one", -10)

	s := newTestServer(t, &Config{
		Root:         root,
		Interval:     20 * time.Millisecond,
		RestartDelay: -1,
	}, nil)
	task := &counter{}
	s.Watch(path, task, After(2*time.Second))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.ServeListeners(ctx, listener, nil)
	}()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+listener.Addr().String()+"/livereload", nil)
	assert.NoError(err)
	defer conn.Close()
	assert.NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))

	assert.NoError(conn.WriteJSON(&clientMessage{Command: commandHello, Protocols: []string{ProtocolOfficial7}}))
	info := &infoMessage{}
	assert.NoError(conn.ReadJSON(info))
	assert.Equal(s.Broadcaster().ServerID(), info.ServerID)

	assert.Eventually(func() bool {
		return s.Broadcaster().Active() == 1 && !s.Watcher().LastHeartbeat().IsZero()
	}, 5*time.Second, 10*time.Millisecond)

	writeFile(t, path, "two", -5)

	msg := readReload(t, conn)
	assert.Equal(path, msg.Path)
	assert.Equal(int64(2000), msg.DelayMs)
	assert.Equal(1, task.count())

	cancel()
	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
	requireClosed(t, conn, websocket.CloseGoingAway)
	assert.Equal(1, task.count())
}

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
		wantErr bool
	}{
		{name: "host port", address: "localhost:5500", want: "http://localhost:5500"},
		{name: "url", address: "https://example.test:8443/base", want: "https://example.test:8443/base"},
		{name: "no host", address: "http://", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := require.New(t)

			c, err := New(test.address)
			if test.wantErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(test.want, c.baseURL.String())
		})
	}
}

func TestClient_ForceReload(t *testing.T) {
	assert := require.New(t)

	requests := make(chan *http.Request, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r
		w.Header().Set(sessionsHeader, "2")
		fmt.Fprint(w, "200 ok")
	}))
	defer server.Close()

	c, err := New(server.URL)
	assert.NoError(err)

	n, err := c.ForceReload(context.Background(), "css/site.css")
	assert.NoError(err)
	assert.Equal(2, n)

	r := <-requests
	assert.Equal(http.MethodPost, r.Method)
	assert.Equal("/forcereload", r.URL.Path)
	assert.Equal("css/site.css", r.URL.Query().Get("path"))
}

func TestClient_ForceReload_ServerError(t *testing.T) {
	assert := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "500 broken", http.StatusInternalServerError)
	}))
	defer server.Close()

	c, err := New(server.URL)
	assert.NoError(err)

	_, err = c.ForceReload(context.Background(), "")
	assert.Error(err)
	assert.Contains(err.Error(), "[500]")
}

func TestClient_Health(t *testing.T) {
	assert := require.New(t)

	last := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var unhealthy int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/livereload/health", r.URL.Path)
		if atomic.LoadInt32(&unhealthy) == 1 {
			http.Error(w, "503 watcher not responding", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, "200 ok %s", last.Format(time.RFC3339))
	}))
	defer server.Close()

	c, err := New(server.URL)
	assert.NoError(err)

	got, err := c.Health(context.Background())
	assert.NoError(err)
	assert.True(last.Equal(got))

	atomic.StoreInt32(&unhealthy, 1)
	_, err = c.Health(context.Background())
	assert.Error(err)
	assert.Contains(err.Error(), "[503]")
}

// Package client talks to the HTTP endpoints of a running livereload server.
package client

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// Kept in sync with livereload.SessionsHeader.
	sessionsHeader = "X-Livereload-Sessions"
	dialTimeout    = 5 * time.Second
)

type Client struct {
	client  *http.Client
	baseURL *url.URL
}

// New creates a client for server at address, either host:port or an http(s) URL.
func New(address string) (*Client, error) {
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	baseURL, err := url.Parse(address)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse server URL [%s]", address)
	}
	if baseURL.Host == "" {
		return nil, errors.Errorf("server URL [%s] has no host", address)
	}

	dialer := &net.Dialer{Timeout: dialTimeout}

	return &Client{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: dialer.DialContext,
			},
		},
		baseURL: baseURL,
	}, nil
}

// ForceReload asks the server to reload every connected browser. Returns the number of notified sessions.
func (c *Client) ForceReload(ctx context.Context, path string) (int, error) {
	reloadURL := c.endpoint("/forcereload")
	if path != "" {
		reloadURL.RawQuery = url.Values{"path": []string{path}}.Encode()
	}

	response, err := c.do(ctx, http.MethodPost, reloadURL)
	if err != nil {
		return 0, errors.Wrap(err, "force reload request failed")
	}

	n, err := strconv.Atoi(response.Header.Get(sessionsHeader))
	if err != nil {
		return 0, errors.Wrapf(err, "server sent invalid %s header", sessionsHeader)
	}
	return n, nil
}

// Health returns the time of the last watcher cycle if the server reports itself healthy.
func (c *Client) Health(ctx context.Context) (time.Time, error) {
	response, err := c.do(ctx, http.MethodGet, c.endpoint("/livereload/health"))
	if err != nil {
		return time.Time{}, errors.Wrap(err, "health request failed")
	}

	body := strings.TrimSpace(response.body)
	fields := strings.Fields(body)
	if len(fields) != 3 {
		return time.Time{}, errors.Errorf("unexpected health response [%s]", body)
	}
	last, err := time.Parse(time.RFC3339, fields[2])
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "unexpected health response [%s]", body)
	}
	return last, nil
}

func (c *Client) endpoint(path string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = ""
	return &u
}

type response struct {
	Header http.Header
	body   string
}

func (c *Client) do(ctx context.Context, method string, u *url.URL) (*response, error) {
	request, err := http.NewRequest(method, u.String(), nil)
	if err != nil {
		return nil, err
	}

	r, err := c.client.Do(request.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer r.Body.Close()

	body, err := ioutil.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		return nil, err
	}

	if r.StatusCode < 200 || r.StatusCode > 299 {
		return nil, fmt.Errorf("server responded with [%d]: %s", r.StatusCode, strings.TrimSpace(string(body)))
	}

	return &response{Header: r.Header, body: string(body)}, nil
}

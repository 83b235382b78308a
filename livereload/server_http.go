package livereload

import (
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"livereload.io/livereload/static"
)

var (
	liveRoute        = regexp.MustCompile(`^/livereload$`)
	scriptRoute      = regexp.MustCompile(`^/livereload\.js$`)
	forceReloadRoute = regexp.MustCompile(`^/forcereload$`)
	healthRoute      = regexp.MustCompile(`^/livereload/health$`)
)

// SessionsHeader carries the number of sessions notified by a force reload.
const SessionsHeader = "X-Livereload-Sessions"

// liveHandler serves the reload endpoints and passes everything else to fallback.
type liveHandler struct {
	server   *Server
	fallback http.Handler
}

func (h *liveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if liveRoute.MatchString(path) && r.Method == http.MethodGet {
		h.server.broadcaster.ServeHTTP(w, r)

	} else if scriptRoute.MatchString(path) && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		w.Header().Set("Content-Type", static.ScriptContentType)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Content-Length", strconv.Itoa(len(static.Script)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(static.Script)
		}

	} else if forceReloadRoute.MatchString(path) && (r.Method == http.MethodGet || r.Method == http.MethodPost) {
		n := h.server.broadcaster.ForceReload(r.URL.Query().Get("path"))
		w.Header().Set(SessionsHeader, strconv.Itoa(n))
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "200 ok")

	} else if healthRoute.MatchString(path) && r.Method == http.MethodGet {
		last := h.server.watcher.LastHeartbeat()
		if !h.server.watcher.Healthy(time.Now()) {
			http.Error(w, "503 watcher not responding", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "200 ok %s", last.UTC().Format(time.RFC3339))

	} else if h.fallback != nil {
		h.fallback.ServeHTTP(w, r)

	} else {
		http.NotFound(w, r)

		h.server.config.Logger.Info(h.server.colors.Bold("http:"), " ", fmt.Sprintf(
			`"%s %s %s" %d "%s"`,
			r.Method,
			r.URL.Path,
			r.Proto,
			404,
			r.Header.Get("User-Agent"),
		))
	}
}

// scriptTag builds the tag injected into HTML pages. With a single port the script is loaded from the page's own
// origin, otherwise from the live port on the host the browser used to reach the page.
func (s *Server) scriptTag(r *http.Request) []byte {
	if !s.config.SplitPorts() {
		return []byte(`<script src="/livereload.js"></script>`)
	}

	host := s.config.Host
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = r.Host
		if h, _, err := net.SplitHostPort(r.Host); err == nil {
			host = h
		}
	}
	return []byte(fmt.Sprintf(
		`<script src="//%s/livereload.js"></script>`,
		net.JoinHostPort(host, strconv.Itoa(s.config.LivePort)),
	))
}

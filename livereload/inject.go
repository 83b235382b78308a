package livereload

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
)

var headEnd = []byte("</head>")

// injectScript inserts tag before the first </head>, matched case-insensitively. Bodies without one are returned
// unchanged.
func injectScript(body, tag []byte) []byte {
	i := indexFold(body, headEnd)
	if i < 0 {
		return body
	}
	out := make([]byte, 0, len(body)+len(tag))
	out = append(out, body[:i]...)
	out = append(out, tag...)
	return append(out, body[i:]...)
}

// indexFold is bytes.Index ignoring ASCII case. sep must start with '<'.
func indexFold(s, sep []byte) int {
	for i := 0; i+len(sep) <= len(s); i++ {
		j := bytes.IndexByte(s[i:], sep[0])
		if j < 0 || i+j+len(sep) > len(s) {
			return -1
		}
		i += j
		if bytes.EqualFold(s[i:i+len(sep)], sep) {
			return i
		}
	}
	return -1
}

// injector adds the reload client script tag to HTML responses of next.
type injector struct {
	next http.Handler
	tag  func(r *http.Request) []byte
}

func (i *injector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	iw := &injectWriter{ResponseWriter: w, request: r}
	i.next.ServeHTTP(iw, r)
	iw.finish(i.tag)
}

type injectWriter struct {
	http.ResponseWriter
	request     *http.Request
	status      int
	wroteHeader bool
	buffering   bool
	buf         bytes.Buffer
}

func (w *injectWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = status

	h := w.Header()
	w.buffering = w.request.Method != http.MethodHead &&
		status == http.StatusOK &&
		strings.HasPrefix(h.Get("Content-Type"), "text/html") &&
		h.Get("Content-Encoding") == ""

	if w.buffering {
		h.Del("Content-Length")
		return
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *injectWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(p))
		}
		w.WriteHeader(http.StatusOK)
	}
	if w.buffering {
		return w.buf.Write(p)
	}
	return w.ResponseWriter.Write(p)
}

func (w *injectWriter) Flush() {
	if w.buffering {
		return
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *injectWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *injectWriter) finish(tag func(r *http.Request) []byte) {
	if !w.buffering {
		return
	}
	body := injectScript(w.buf.Bytes(), tag(w.request))
	w.ResponseWriter.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.ResponseWriter.WriteHeader(w.status)
	w.ResponseWriter.Write(body)
}

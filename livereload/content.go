package livereload

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/pkg/errors"
)

// contentHandler returns handler if given, otherwise a reverse proxy to config.Proxy or a file server on config.Root.
func contentHandler(config *Config, handler http.Handler) (http.Handler, error) {
	if handler != nil {
		return handler, nil
	}

	if config.Proxy != "" {
		target, err := url.Parse(config.Proxy)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid proxy URL [%s]", config.Proxy)
		}
		proxy := httputil.NewSingleHostReverseProxy(target)
		director := proxy.Director
		proxy.Director = func(r *http.Request) {
			director(r)
			r.Host = target.Host
			// compressed bodies cannot be rewritten
			r.Header.Del("Accept-Encoding")
		}
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			config.Logger.Errorf("proxy to [%s] failed: %s", config.Proxy, err)
			http.Error(w, "502 application not responding", http.StatusBadGateway)
		}
		return proxy, nil
	}

	fileServer := http.FileServer(http.Dir(config.Root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		fileServer.ServeHTTP(w, r)
	}), nil
}

package livereload

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/logrusorgru/aurora"
	"github.com/pkg/browser"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 3 * time.Second
	openDelay       = 500 * time.Millisecond
)

// Server owns the watch registry, the change watcher and the broadcaster, and serves them together with the
// application content.
type Server struct {
	config      *Config
	colors      aurora.Aurora
	registry    *WatchRegistry
	watcher     *ChangeWatcher
	broadcaster *Broadcaster
	content     http.Handler
}

// New creates a server for content. If content is nil, config.Proxy or config.Root is served instead.
// Watches listed in config are registered in order.
func New(config *Config, content http.Handler) (*Server, error) {
	if err := config.Init(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	colors := aurora.NewAurora(!config.NoColors)
	registry := NewWatchRegistry()

	watcher := NewChangeWatcher(registry, WatcherOptions{
		Interval:       config.Interval,
		Notify:         config.Notify,
		RestartDelay:   config.RestartDelay,
		AlertOnFailure: config.AlertOnFailure,
		Logger:         config.Logger,
		NoColors:       config.NoColors,
	})

	broadcaster, err := NewBroadcaster(BroadcasterOptions{
		HelloTimeout: config.HelloTimeout,
		Throttle:     config.Throttle,
		Logger:       config.Logger,
		NoColors:     config.NoColors,
	})
	if err != nil {
		return nil, err
	}

	handler, err := contentHandler(config, content)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:      config,
		colors:      colors,
		registry:    registry,
		watcher:     watcher,
		broadcaster: broadcaster,
	}
	s.content = &injector{next: handler, tag: s.scriptTag}

	for _, definition := range config.Watches {
		entry := WatchEntry{
			Pattern: definition.Pattern,
			Delay:   definition.Delay,
			Ignore:  definition.Ignore,
		}
		if definition.Shell != nil {
			command, err := definition.Shell.ShellCommand()
			if err != nil {
				return nil, errors.Wrapf(err, "watch [%s]", definition.Pattern)
			}
			entry.Task, err = command.resolve(config.Logger, colors)
			if err != nil {
				return nil, errors.Wrapf(err, "watch [%s]", definition.Pattern)
			}
		}
		if _, err := registry.AddEntry(entry); err != nil {
			return nil, errors.Wrapf(err, "watch [%s]", definition.Pattern)
		}
	}

	return s, nil
}

// Watch registers pattern. task may be nil.
func (s *Server) Watch(pattern string, task Task, delay Delay) *WatchEntry {
	return s.registry.Add(pattern, task, delay)
}

// WatchShell registers pattern with a shell command task.
func (s *Server) WatchShell(pattern string, command string, delay Delay) (*WatchEntry, error) {
	task, err := Shell(command).resolve(s.config.Logger, s.colors)
	if err != nil {
		return nil, err
	}
	return s.registry.Add(pattern, task, delay), nil
}

func (s *Server) Config() *Config {
	return s.config
}

func (s *Server) Registry() *WatchRegistry {
	return s.registry
}

func (s *Server) Watcher() *ChangeWatcher {
	return s.watcher
}

func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// ForceReload reloads every connected browser right away.
func (s *Server) ForceReload(path string) int {
	return s.broadcaster.ForceReload(path)
}

// Handler serves live endpoints and falls back to content with the client script injected.
func (s *Server) Handler() http.Handler {
	return &liveHandler{server: s, fallback: s.content}
}

// LiveHandler serves only the live endpoints.
func (s *Server) LiveHandler() http.Handler {
	return &liveHandler{server: s}
}

// ContentHandler serves only the content, with the client script injected.
func (s *Server) ContentHandler() http.Handler {
	return s.content
}

// Serve listens on the configured addresses and blocks until ctx is done or a listener fails.
func (s *Server) Serve(ctx context.Context) error {
	contentListener, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return errors.Wrapf(err, "could not listen on [%s]", s.config.Address())
	}

	var liveListener net.Listener
	if s.config.SplitPorts() {
		liveListener, err = net.Listen("tcp", s.config.LiveAddress())
		if err != nil {
			contentListener.Close()
			return errors.Wrapf(err, "could not listen on [%s]", s.config.LiveAddress())
		}
	}

	return s.ServeListeners(ctx, contentListener, liveListener)
}

// ServeListeners is Serve with listeners created by the caller. If liveListener is nil, live endpoints are served
// on contentListener. Listeners are closed on return.
func (s *Server) ServeListeners(ctx context.Context, contentListener, liveListener net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	type listenerServer struct {
		server   *http.Server
		listener net.Listener
	}
	var servers []listenerServer
	if liveListener == nil {
		servers = append(servers, listenerServer{&http.Server{Handler: s.Handler()}, contentListener})
	} else {
		servers = append(servers,
			listenerServer{&http.Server{Handler: s.ContentHandler()}, contentListener},
			listenerServer{&http.Server{Handler: s.LiveHandler()}, liveListener},
		)
	}

	g.Go(func() error {
		return s.watcher.Run(ctx)
	})

	g.Go(func() error {
		return s.broadcaster.Run(ctx, s.watcher.Events())
	})

	for _, ls := range servers {
		ls := ls
		g.Go(func() error {
			if err := ls.server.Serve(ls.listener); err != http.ErrServerClosed {
				return errors.Wrapf(err, "server on [%s] failed", ls.listener.Addr())
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		s.broadcaster.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, ls := range servers {
			if err := ls.server.Shutdown(shutdownCtx); err != nil {
				s.config.Logger.Errorf("could not shutdown HTTP server: %s", err)
			}
		}
		return nil
	})

	url := "http://" + contentListener.Addr().String()
	s.config.Logger.Info(s.colors.Bold("http:"), " serving on ", url)
	if liveListener != nil {
		s.config.Logger.Info(s.colors.Bold("live:"), " serving on ", liveListener.Addr())
	}

	if s.config.Open {
		g.Go(func() error {
			select {
			case <-ctx.Done():
			case <-time.After(openDelay):
				if err := browser.OpenURL(url); err != nil {
					s.config.Logger.Errorf("could not open browser: %s", err)
				}
			}
			return nil
		})
	}

	return g.Wait()
}

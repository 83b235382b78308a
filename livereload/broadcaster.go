package livereload

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-uuid"
	"github.com/logrusorgru/aurora"
	"github.com/pkg/errors"
	"livereload.io/livereload/about"
	"livereload.io/livereload/logger"
)

const (
	defaultHelloTimeout = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultCloseTimeout = time.Second
	maxMessageSize      = 64 * 1024
)

type BroadcasterOptions struct {
	// Max time between connection accept and the client's hello.
	HelloTimeout time.Duration
	WriteTimeout time.Duration
	// Websocket ping frames keep idle connections from being dropped. Negative disables pings.
	PingInterval time.Duration
	// Minimum time between two file-driven reloads. Zero disables throttling.
	Throttle time.Duration
	// Reported to clients in the info message.
	ServerName string
	// Defaults to accepting any origin; the reload channel is meant for trusted development networks.
	CheckOrigin func(r *http.Request) bool
	Logger      logger.Logger
	NoColors    bool
}

// Broadcaster tracks browser sessions and pushes reload commands to the active ones.
type Broadcaster struct {
	options  BroadcasterOptions
	log      logger.Logger
	colors   aurora.Aurora
	serverID string
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[*Session]struct{}
	closed   bool
	wg       sync.WaitGroup

	// Serializes broadcasts so every session sees commands in the same order.
	sendMu     sync.Mutex
	lastReload time.Time
}

func NewBroadcaster(options BroadcasterOptions) (*Broadcaster, error) {
	if options.HelloTimeout <= 0 {
		options.HelloTimeout = defaultHelloTimeout
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = defaultWriteTimeout
	}
	if options.PingInterval == 0 {
		options.PingInterval = defaultPingInterval
	}
	if options.ServerName == "" {
		options.ServerName = about.Name + "/" + about.Version
	}
	if options.CheckOrigin == nil {
		options.CheckOrigin = func(r *http.Request) bool { return true }
	}
	if options.Logger == nil {
		options.Logger = newDefaultLogger(options.NoColors)
	}

	serverID, err := uuid.GenerateUUID()
	if err != nil {
		return nil, errors.Wrap(err, "could not generate server id")
	}

	return &Broadcaster{
		options:  options,
		log:      options.Logger,
		colors:   aurora.NewAurora(!options.NoColors),
		serverID: serverID,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     options.CheckOrigin,
		},
		sessions: make(map[*Session]struct{}),
	}, nil
}

func (b *Broadcaster) ServerID() string {
	return b.serverID
}

// ServeHTTP upgrades the request to a websocket and runs the session until either side closes it.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Errorf("websocket upgrade from [%s] failed: %s", r.RemoteAddr, err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	id, err := uuid.GenerateUUID()
	if err != nil {
		b.log.Errorf("could not generate session id: %s", err)
		conn.Close()
		return
	}
	s := newSession(id, conn)

	if !b.add(s) {
		s.close(websocket.CloseGoingAway, "server shutting down")
		s.writeLoop(b.options.WriteTimeout, -1)
		return
	}
	defer b.remove(s)

	go func() {
		defer b.wg.Done()
		s.writeLoop(b.options.WriteTimeout, b.options.PingInterval)
	}()

	s.transition(SessionConnecting, SessionAwaitingHello)

	if err := b.handshake(s); err != nil {
		b.log.Error(b.colors.Bold("live:"), " ", s.RemoteAddr, " ", err)
		s.close(websocket.ClosePolicyViolation, "handshake failed")
		return
	}

	b.readLoop(s)
}

func (b *Broadcaster) handshake(s *Session) error {
	if err := s.conn.SetReadDeadline(time.Now().Add(b.options.HelloTimeout)); err != nil {
		return errors.Wrap(err, "set deadline failed")
	}

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return errors.Wrap(err, "hello not received")
	}

	msg, err := parseClientMessage(data)
	if err != nil {
		return err
	}
	if msg.Command != commandHello {
		return errors.Errorf("expected hello, got [%s]", msg.Command)
	}
	version, ok := negotiate(msg.Protocols)
	if !ok {
		return errors.Errorf("no supported protocol in %v", msg.Protocols)
	}

	if err := s.conn.SetReadDeadline(time.Time{}); err != nil {
		return errors.Wrap(err, "clear deadline failed")
	}

	// info is queued before the session becomes active, so it precedes any reload
	s.enqueue(&infoMessage{
		Command:         commandInfo,
		ProtocolVersion: version,
		ServerID:        b.serverID,
		ServerName:      b.options.ServerName,
	})
	if !s.transition(SessionAwaitingHello, SessionActive) {
		return errors.New("session closed during handshake")
	}

	b.log.Info(b.colors.Bold("live:"), " ", s.RemoteAddr, b.colors.Green(" connected"))
	return nil
}

func (b *Broadcaster) readLoop(s *Session) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.State() != SessionClosed {
				b.log.Info(b.colors.Bold("live:"), " ", s.RemoteAddr, " disconnected")
			}
			s.close(websocket.CloseNormalClosure, "")
			return
		}

		msg, err := parseClientMessage(data)
		if err != nil {
			b.log.Errorf("invalid message from [%s]: %s", s.RemoteAddr, err)
			continue
		}

		switch msg.Command {
		case commandPing:
			s.enqueue(&pongMessage{Command: commandPong})
		case commandInfo:
			if msg.URL != "" {
				b.log.Info(b.colors.Bold("live:"), " browser connected: ", msg.URL)
			}
		}
	}
}

func (b *Broadcaster) add(s *Session) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.sessions[s] = struct{}{}
	b.wg.Add(1)
	return true
}

func (b *Broadcaster) remove(s *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, s)
}

// Sessions counts connected sessions in any state.
func (b *Broadcaster) Sessions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

func (b *Broadcaster) Active() int {
	return len(b.active())
}

func (b *Broadcaster) active() []*Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sessions := make([]*Session, 0, len(b.sessions))
	for s := range b.sessions {
		if s.State() == SessionActive {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

func (b *Broadcaster) broadcast(msg interface{}) int {
	n := 0
	for _, s := range b.active() {
		if s.enqueue(msg) {
			n++
			continue
		}
		if s.State() != SessionClosed {
			b.log.Errorf("could not queue message for [%s], closing session", s.RemoteAddr)
			s.close(websocket.CloseTryAgainLater, "too slow")
		}
	}
	return n
}

// Reload sends a reload command to every active session and returns how many were notified.
// File-driven reloads (liveCSS set) are subject to throttling.
func (b *Broadcaster) Reload(path string, delay time.Duration, liveCSS bool) int {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	now := time.Now()
	if liveCSS && b.options.Throttle > 0 && !b.lastReload.IsZero() && now.Sub(b.lastReload) < b.options.Throttle {
		b.log.Info(b.colors.Bold("live:"), " ignore ", path)
		return 0
	}
	b.lastReload = now

	n := b.broadcast(&reloadMessage{
		Command: commandReload,
		Path:    path,
		LiveCSS: liveCSS,
		LiveImg: liveCSS,
		DelayMs: int64(delay / time.Millisecond),
	})
	b.log.Infof("reload %d sessions: %s", n, path)
	return n
}

// ForceReload reloads all active sessions immediately, bypassing throttling and delays.
func (b *Broadcaster) ForceReload(path string) int {
	if path == "" {
		path = "*"
	}

	b.sendMu.Lock()
	defer b.sendMu.Unlock()
	b.lastReload = time.Now()

	n := b.broadcast(&reloadMessage{
		Command: commandReload,
		Path:    path,
		LiveCSS: true,
		LiveImg: true,
	})
	b.log.Infof("force reload %d sessions: %s", n, path)
	return n
}

func (b *Broadcaster) Alert(message string) int {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()
	return b.broadcast(&alertMessage{Command: commandAlert, Message: message})
}

func (b *Broadcaster) handle(ev *Event) {
	switch ev.Kind {
	case EventChange:
		b.Reload(ev.Path(), ev.Delay, true)
	case EventRestart:
		b.sendMu.Lock()
		n := b.broadcast(&reloadMessage{Command: commandReload, Path: ev.Path()})
		b.sendMu.Unlock()
		if n > 0 {
			b.log.Infof("restart reloaded %d sessions", n)
		}
	case EventAlert:
		b.Alert(ev.Message)
	default:
		b.log.Errorf("unhandled event %s", ev.Kind)
	}
}

// Run delivers events to sessions in the order they are received until ctx is done or events is closed.
func (b *Broadcaster) Run(ctx context.Context, events <-chan *Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			b.handle(ev)
		}
	}
}

// Close closes every session with a going-away frame and rejects new ones. It waits a short while for close
// frames to be written.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	sessions := make([]*Session, 0, len(b.sessions))
	for s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	for _, s := range sessions {
		s.close(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(defaultCloseTimeout):
		b.log.Error("timed out closing sessions")
	}
}

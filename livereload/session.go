package livereload

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type SessionState int32

const (
	SessionConnecting SessionState = iota
	SessionAwaitingHello
	SessionActive
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionAwaitingHello:
		return "awaiting_hello"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const sessionQueueSize = 16

// Session is one connected browser. Writes to the connection happen only on the session's write loop.
type Session struct {
	ID         string
	RemoteAddr string

	conn      *websocket.Conn
	state     int32
	send      chan interface{}
	done      chan struct{}
	closeOnce sync.Once
	// Written before done is closed.
	closeCode   int
	closeReason string
}

func newSession(id string, conn *websocket.Conn) *Session {
	return &Session{
		ID:         id,
		RemoteAddr: conn.RemoteAddr().String(),
		conn:       conn,
		state:      int32(SessionConnecting),
		send:       make(chan interface{}, sessionQueueSize),
		done:       make(chan struct{}),
	}
}

func (s *Session) State() SessionState {
	return SessionState(atomic.LoadInt32(&s.state))
}

// transition moves the session from one state to another. It fails if the session is not in from.
func (s *Session) transition(from, to SessionState) bool {
	return atomic.CompareAndSwapInt32(&s.state, int32(from), int32(to))
}

// enqueue queues msg for the write loop without blocking. It returns false if the session is closed or its queue
// is full.
func (s *Session) enqueue(msg interface{}) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

// close is idempotent. The write loop sends the close frame and releases the connection.
func (s *Session) close(code int, reason string) {
	s.closeOnce.Do(func() {
		atomic.StoreInt32(&s.state, int32(SessionClosed))
		s.closeCode = code
		s.closeReason = reason
		close(s.done)
	})
}

func (s *Session) writeLoop(writeTimeout, pingInterval time.Duration) {
	defer s.conn.Close()

	var pingC <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		pingC = ticker.C
	}

	for {
		select {
		case msg := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				s.close(websocket.CloseAbnormalClosure, "")
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				s.close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-pingC:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				s.close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-s.done:
			if s.closeCode != websocket.CloseAbnormalClosure {
				deadline := time.Now().Add(writeTimeout)
				_ = s.conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(s.closeCode, s.closeReason),
					deadline,
				)
			}
			return
		}
	}
}

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	ioTimeout     = 10 * time.Second
	frameBuffer   = 256
	stateBuffer   = 32
	closeDeadline = 500 * time.Millisecond
)

// ErrNotConnected is returned by Send while the socket is down. Frames are
// never queued for later delivery.
var ErrNotConnected = errors.New("not connected to the gateway")

// ConnState is the live connection state. Attempt counts consecutive failed
// connections and is zero while connected.
type ConnState struct {
	Connected bool
	Attempt   int
	Retry     time.Duration
	Err       error
}

// Config configures a Socket
type Config struct {
	URL     string
	Backoff Backoff
	Logger  *log.Logger
}

// Socket owns one WebSocket connection and keeps it alive with exponential
// backoff. Frames and state changes are delivered on channels in arrival order.
type Socket struct {
	cfg    Config
	logger *log.Logger

	mu      sync.RWMutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	state   ConnState
	cancel  context.CancelFunc
	closed  bool

	frames chan []byte
	states chan ConnState
	done   chan struct{}
}

// New creates a socket. Call Start to begin connecting.
func New(cfg Config) *Socket {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Socket{
		cfg:    cfg,
		logger: logger,
		frames: make(chan []byte, frameBuffer),
		states: make(chan ConnState, stateBuffer),
		done:   make(chan struct{}),
	}
}

// Start launches the connect/read/reconnect loop. It returns immediately.
// Starting a closed or already started socket does nothing.
func (s *Socket) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(ctx)
}

// Frames delivers every JSON text frame. Closed when the socket stops.
func (s *Socket) Frames() <-chan []byte { return s.frames }

// States delivers connection state changes. Closed when the socket stops.
func (s *Socket) States() <-chan ConnState { return s.states }

// Done is closed once the run loop has exited
func (s *Socket) Done() <-chan struct{} { return s.done }

// State returns the most recent connection state
func (s *Socket) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Send writes v as one JSON frame.
func (s *Socket) Send(v any) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(ioTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close stops the loop, cancels any pending reconnect and closes the
// connection. Safe to call more than once.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeDeadline))
		s.writeMu.Unlock()
		_ = conn.Close()
	}
	if cancel == nil {
		// never started
		close(s.done)
		close(s.frames)
		close(s.states)
	}
	return nil
}

func (s *Socket) run(ctx context.Context) {
	defer func() {
		close(s.frames)
		close(s.states)
		close(s.done)
	}()

	dialer := websocket.Dialer{HandshakeTimeout: ioTimeout}
	attempt := 0
	for {
		conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
		if err == nil {
			if !s.attach(conn) {
				_ = conn.Close()
				return
			}
			attempt = 0
			s.logger.Debug("socket open", "url", s.cfg.URL)
			s.publish(ConnState{Connected: true})
			err = s.readLoop(ctx, conn)
			s.detach(conn)
		}
		if ctx.Err() != nil {
			return
		}

		delay := s.cfg.Backoff.Delay(attempt)
		attempt++
		s.logger.Debug("socket closed", "url", s.cfg.URL, "attempt", attempt, "retry", delay, "err", err)
		s.publish(ConnState{Attempt: attempt, Retry: delay, Err: err})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Socket) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if msgType != websocket.TextMessage || !json.Valid(payload) {
			s.logger.Debug("dropping malformed frame", "bytes", len(payload))
			continue
		}
		select {
		case s.frames <- payload:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Socket) attach(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conn = conn
	return true
}

func (s *Socket) detach(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// publish records st as the current state and offers it to the States
// channel. A slow reader misses intermediate states but State() stays exact.
func (s *Socket) publish(st ConnState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	select {
	case s.states <- st:
	default:
		s.logger.Debug("state channel full, dropping update", "connected", st.Connected, "attempt", st.Attempt)
	}
}

// StreamURL turns the gateway base URL into a WebSocket URL for path.
func StreamURL(server, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url %q has no host", server)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

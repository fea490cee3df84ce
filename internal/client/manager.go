// Package client owns the socket side of a chat session: the connection
// manager with its keepalive and reconnect loop, and the session clients
// that pump decoded frames through the state machines in
// internal/session.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lawflow/streamchat/pkg/protocol"
)

// State is the connection lifecycle phase.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateReconnecting
	StateClosed
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ErrNotConnected is returned by Send while no socket is open.
var ErrNotConnected = errors.New("not connected to server")

// Default lifecycle timing, matching the production endpoints.
const (
	DefaultKeepaliveInterval = 30 * time.Second
	DefaultReconnectDelay    = 3 * time.Second
)

// ManagerConfig configures a connection Manager.
type ManagerConfig struct {
	// URL is re-evaluated before every dial so a session identity
	// assigned mid-session is echoed on the next reconnect.
	URL func() (string, error)
	// KeepaliveInterval is the period of the liveness ping.
	KeepaliveInterval time.Duration
	// ReconnectDelay is the fixed pause before a reconnect attempt.
	ReconnectDelay time.Duration
	Logger         zerolog.Logger
}

// Manager owns exactly one live socket for a session. While running it
// keeps the connection alive with periodic pings and redials after a
// fixed delay whenever the socket drops. Transport failures are state
// transitions, never returned errors; inbound payloads and state changes
// are delivered on channels.
type Manager struct {
	cfg ManagerConfig

	frames chan []byte
	states chan State
	state  atomic.Int32

	mu   sync.Mutex
	conn *websocket.Conn

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a stopped manager. Zero timing fields fall back to
// the defaults.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	return &Manager{
		cfg:    cfg,
		frames: make(chan []byte, 32),
		states: make(chan State, 8),
	}
}

// Start begins dialing. The manager runs until Stop or until the parent
// context is cancelled.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.run(ctx)
}

// Stop synchronously cancels any pending reconnect, stops the keepalive,
// closes the socket, and waits for the manager goroutines to exit. No
// further reconnect attempts occur.
func (m *Manager) Stop() {
	m.cancel()
	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Frames returns the channel of raw inbound payloads. It is closed when
// the manager stops.
func (m *Manager) Frames() <-chan []byte {
	return m.frames
}

// States returns the channel of connection-state changes. It is closed
// when the manager stops.
func (m *Manager) States() <-chan State {
	return m.states
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Send marshals v as JSON and writes it to the live socket. Writes are
// serialized so concurrent callers cannot interleave frames.
func (m *Manager) Send(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return ErrNotConnected
	}
	if err := m.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	defer close(m.frames)
	defer close(m.states)

	m.setState(ctx, StateConnecting)
	for {
		target, err := m.cfg.URL()
		if err != nil {
			m.cfg.Logger.Error().Err(err).Msg("cannot build connect URL")
			break
		}

		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			m.cfg.Logger.Warn().Err(err).Str("url", target).
				Dur("retry_in", m.cfg.ReconnectDelay).Msg("dial failed")
			m.setState(ctx, StateReconnecting)
			if !sleep(ctx, m.cfg.ReconnectDelay) {
				break
			}
			continue
		}

		m.setConn(conn)
		m.setState(ctx, StateOpen)
		m.cfg.Logger.Debug().Str("url", target).Msg("connected")

		stop := make(chan struct{})
		m.wg.Add(1)
		go m.keepalive(ctx, stop)

		m.readLoop(ctx, conn)

		close(stop)
		m.setConn(nil)
		conn.Close()

		if ctx.Err() != nil {
			break
		}
		m.setState(ctx, StateReconnecting)
		if !sleep(ctx, m.cfg.ReconnectDelay) {
			break
		}
	}

	m.state.Store(int32(StateClosed))
	select {
	case m.states <- StateClosed:
	default:
	}
}

// readLoop pumps inbound payloads until the socket drops.
func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				m.cfg.Logger.Warn().Err(err).
					Dur("retry_in", m.cfg.ReconnectDelay).Msg("connection lost")
			}
			return
		}
		select {
		case m.frames <- payload:
		case <-ctx.Done():
			return
		}
	}
}

// keepalive sends the liveness frame on the configured interval until the
// current socket is torn down.
func (m *Manager) keepalive(ctx context.Context, stop <-chan struct{}) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := m.Send(protocol.NewPing()); err != nil {
				m.cfg.Logger.Debug().Err(err).Msg("keepalive send failed")
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) setConn(conn *websocket.Conn) {
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
}

func (m *Manager) setState(ctx context.Context, s State) {
	m.state.Store(int32(s))
	select {
	case m.states <- s:
	case <-ctx.Done():
	}
}

// sleep pauses for d; false means the context was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

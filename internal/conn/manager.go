package conn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

// DefaultRetryInterval is the fixed delay between reconnect attempts.
// Deliberately not exponential: the retry rate is bounded by the interval.
const DefaultRetryInterval = 3 * time.Second

var ErrNotConnected = errors.New("push channel not connected")

// State describes the push-channel connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// TokenSource supplies the bearer token current at call time. The manager
// re-reads it on every dial so a reconnect picks up a refreshed token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Listener receives every inbound frame in arrival order.
type Listener func(models.Frame)

// EventSink receives connection lifecycle notifications.
type EventSink interface {
	ConnectionEvent(event, endpoint, reason string)
}

type listenerEntry struct {
	id int
	fn Listener
}

// Manager owns the single push-channel connection for a client instance.
// It is an explicit handle, not a process-wide singleton, so tests can run
// independent instances side by side.
type Manager struct {
	endpoint      string
	tokens        TokenSource
	dialer        *websocket.Dialer
	retryInterval time.Duration

	mu         sync.Mutex
	writeMu    sync.Mutex
	ws         *websocket.Conn
	state      State
	closing    bool
	gen        int
	retryTimer *time.Timer
	listeners  []listenerEntry
	nextID     int
	onOpen     func()
	events     EventSink
}

// NewManager builds a manager dialing the given endpoint. The endpoint is
// the REST base plus ws path; http(s) schemes are upgraded to ws(s). A
// retryInterval <= 0 selects DefaultRetryInterval.
func NewManager(endpoint string, tokens TokenSource, retryInterval time.Duration) *Manager {
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	return &Manager{
		endpoint:      endpoint,
		tokens:        tokens,
		dialer:        websocket.DefaultDialer,
		retryInterval: retryInterval,
	}
}

// OnOpen registers a hook invoked after every successful dial, including
// reconnects. The client uses it to re-join the focused room, since a
// dropped connection resets server-side membership.
func (m *Manager) OnOpen(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOpen = fn
}

// SetEventSink registers a lifecycle event consumer.
func (m *Manager) SetEventSink(sink EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = sink
}

// Subscribe registers a frame listener and returns its unsubscribe func.
func (m *Manager) Subscribe(fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, entry := range m.listeners {
			if entry.id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// State reports the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect opens the push channel. It is a no-op when already open or in
// the middle of connecting.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateOpen || m.state == StateConnecting {
		m.mu.Unlock()
		return nil
	}
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.state = StateConnecting
	m.closing = false
	m.mu.Unlock()

	return m.dial(ctx, false)
}

// Disconnect cancels any pending reconnect, closes the connection and
// settles on Disconnected. Safe to call repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closing = true
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	ws := m.ws
	m.ws = nil
	m.gen++
	m.state = StateDisconnected
	events := m.events
	m.mu.Unlock()

	if ws != nil {
		_ = ws.Close()
		observability.SetWSConnected(false)
		observability.IncWSEvent("ws_disconnect")
		if events != nil {
			events.ConnectionEvent("ws_disconnect", m.endpoint, "client disconnect")
		}
	}
}

// Send writes one frame to the push channel.
func (m *Manager) Send(f models.Frame) error {
	m.mu.Lock()
	ws := m.ws
	m.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (m *Manager) dial(ctx context.Context, retry bool) error {
	ctx, span := otel.Tracer("chat-client/conn").Start(ctx, "ws.connect")
	defer span.End()

	token, err := m.tokens.Token(ctx)
	if err != nil {
		m.dialFailed(retry)
		return fmt.Errorf("read token: %w", err)
	}

	target, err := wsURL(m.endpoint, token)
	if err != nil {
		m.dialFailed(retry)
		return fmt.Errorf("build ws url: %w", err)
	}

	ws, resp, err := m.dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		m.dialFailed(retry)
		return fmt.Errorf("dial %s: %w", m.endpoint, err)
	}

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		ws.Close()
		return nil
	}
	if prev := m.ws; prev != nil {
		prev.Close()
	}
	m.ws = ws
	m.state = StateOpen
	m.gen++
	gen := m.gen
	onOpen := m.onOpen
	events := m.events
	m.mu.Unlock()

	observability.SetWSConnected(true)
	observability.IncWSEvent("ws_connect")
	if events != nil {
		events.ConnectionEvent("ws_connect", m.endpoint, "")
	}

	go m.readLoop(ws, gen)

	if onOpen != nil {
		onOpen()
	}
	return nil
}

// dialFailed settles the state after a failed dial. Only retry dials
// schedule another attempt; a failed caller-initiated Connect reports its
// error and settles on Disconnected, since auto-reconnect is tied to the
// loss of an established connection.
func (m *Manager) dialFailed(retry bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing || !retry {
		m.state = StateDisconnected
		return
	}
	m.state = StateReconnecting
	m.scheduleRetryLocked()
}

func (m *Manager) readLoop(ws *websocket.Conn, gen int) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			m.handleClose(ws, gen, err)
			return
		}

		var frame models.Frame
		if unmarshalErr := json.Unmarshal(data, &frame); unmarshalErr != nil || frame.Type == "" {
			log.Printf("conn: dropping malformed frame: %v", unmarshalErr)
			observability.IncFrameDropped()
			continue
		}
		observability.IncFrameReceived(frame.Type)

		if frame.Type == models.FramePing {
			if err := m.Send(models.PongFrame()); err != nil {
				log.Printf("conn: pong failed: %v", err)
			}
			continue
		}

		for _, entry := range m.snapshotListeners() {
			entry.fn(frame)
		}
	}
}

func (m *Manager) snapshotListeners() []listenerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]listenerEntry, len(m.listeners))
	copy(out, m.listeners)
	return out
}

// handleClose reacts to an unsolicited close of the given connection
// generation. Stale generations (already replaced or torn down) are ignored.
func (m *Manager) handleClose(ws *websocket.Conn, gen int, cause error) {
	ws.Close()

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.ws = nil
	if m.closing {
		m.state = StateDisconnected
		m.mu.Unlock()
		return
	}
	m.state = StateReconnecting
	m.scheduleRetryLocked()
	events := m.events
	m.mu.Unlock()

	log.Printf("conn: connection lost, retrying in %s: %v", m.retryInterval, cause)
	observability.SetWSConnected(false)
	observability.IncWSEvent("ws_disconnect")
	if events != nil {
		events.ConnectionEvent("ws_disconnect", m.endpoint, cause.Error())
	}
}

// scheduleRetryLocked arms exactly one reconnect attempt. The token is
// re-read when the timer fires, not captured here.
func (m *Manager) scheduleRetryLocked() {
	if m.retryTimer != nil {
		return
	}
	m.retryTimer = time.AfterFunc(m.retryInterval, func() {
		m.mu.Lock()
		m.retryTimer = nil
		if m.closing || m.state != StateReconnecting {
			m.mu.Unlock()
			return
		}
		// Claim StateConnecting so a concurrent Connect() is a no-op while
		// this dial is in flight; a second dial would race on m.ws and
		// leave two live connections.
		m.state = StateConnecting
		m.mu.Unlock()

		observability.IncWSEvent("ws_reconnect")
		if err := m.dial(context.Background(), true); err != nil {
			log.Printf("conn: reconnect failed: %v", err)
		}
	})
}

// wsURL converts the API endpoint to its websocket form, carrying the
// bearer token as a query parameter since the handshake cannot set headers.
func wsURL(endpoint, token string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

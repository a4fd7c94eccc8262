package vts

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openvtuber/go-facelink/internal/httpc"
	"github.com/openvtuber/go-facelink/internal/log"
)

// Connection defaults.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8001

	// paramDeltaThreshold is the minimum change from the last sent value
	// for a parameter to be included in the next update batch.
	paramDeltaThreshold = 0.01

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	probeTimeout     = 2 * time.Second
)

// State is the session's position in the authentication handshake.
type State int

const (
	StateDisconnected State = iota
	StateAwaitingToken
	StateAuthenticating
	StateAuthenticated
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAwaitingToken:
		return "awaiting_token"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// EventType classifies session events surfaced to the control surface.
type EventType int

const (
	EventAuthenticated EventType = iota
	EventAuthFailed
	EventAPIError
	EventDisconnected
	EventModelParameters
)

// Event is a session status change or server-reported error. Events are
// informational; the client has already reacted by the time one is emitted.
type Event struct {
	Type    EventType
	Message string
}

// Client is a session-authenticated connection to a VTube Studio style
// renderer. Parameter traffic is refused until the token handshake reaches
// StateAuthenticated. Any transport error drops the session back to
// StateDisconnected and clears the auth token and per-parameter cache;
// reconnecting requires an explicit Connect.
type Client struct {
	host    string
	port    int
	enabled bool

	pluginName      string
	pluginDeveloper string
	pluginIcon      string

	// probe controls the pre-dial HTTP liveness check.
	probe bool

	mu    sync.Mutex // guards state, conn, token, cache
	state State
	conn  *websocket.Conn
	token string
	cache map[string]float64

	writeMu sync.Mutex // serializes writes to conn

	events chan Event
}

// Option configures a Client.
type Option func(*Client)

// WithPlugin sets the plugin identity sent during authentication.
func WithPlugin(name, developer, icon string) Option {
	return func(c *Client) {
		c.pluginName = name
		c.pluginDeveloper = developer
		c.pluginIcon = icon
	}
}

// WithoutProbe skips the HTTP liveness check before dialing. Useful for
// renderers that expose only the WebSocket endpoint, and for tests.
func WithoutProbe() Option {
	return func(c *Client) { c.probe = false }
}

// NewClient creates a disconnected client for the given renderer endpoint.
func NewClient(host string, port int, enabled bool, opts ...Option) *Client {
	c := &Client{
		host:            host,
		port:            port,
		enabled:         enabled,
		pluginName:      "VTuber Tracker Plugin",
		pluginDeveloper: "VTuber Tracker",
		probe:           true,
		state:           StateDisconnected,
		events:          make(chan Event, 16),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns the session event stream. Events are dropped, not blocked
// on, when the receiver falls behind.
func (c *Client) Events() <-chan Event {
	return c.events
}

// State returns the current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the duplex channel is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SetEnabled toggles parameter sending. Disabling does not drop the session.
func (c *Client) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
}

// Connect probes the renderer, opens the duplex channel, and starts the
// authentication handshake. It returns once the channel is open; the
// handshake completes asynchronously on the receive loop, signaled by an
// EventAuthenticated event. A failed liveness probe skips the whole
// sequence.
func (c *Client) Connect(ctx context.Context) error {
	if c.probe {
		if err := c.probeLiveness(); err != nil {
			return fmt.Errorf("renderer liveness probe failed: %w", err)
		}
	}

	url := fmt.Sprintf("ws://%s:%d", c.host, c.port)
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c.mu.Lock()
	if c.conn != nil {
		// Stale session from a previous Connect; drop it first.
		c.conn.Close()
	}
	c.conn = conn
	c.state = StateAwaitingToken
	c.token = ""
	c.cache = make(map[string]float64)
	c.mu.Unlock()

	log.Info("connected to renderer", "url", url)
	go c.readLoop(conn)

	if err := c.sendAuthRequest(""); err != nil {
		c.dropSession("auth request failed: " + err.Error())
		return err
	}
	return nil
}

// probeLiveness checks the renderer's HTTP endpoint before dialing, so a
// renderer that is not running fails fast instead of waiting out the
// WebSocket handshake.
func (c *Client) probeLiveness() error {
	client := httpc.NewClient(probeTimeout)
	url := fmt.Sprintf("http://%s:%d/api/getfolderinfo", c.host, c.port)
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("unexpected probe status %d", resp.StatusCode)
	}
	return nil
}

// Disconnect closes the session. It is safe to call from any state and is
// idempotent.
func (c *Client) Disconnect() {
	c.dropSession("disconnect requested")
}

// dropSession closes the channel and resets all session state. The first
// caller for a given session emits EventDisconnected; later calls are no-ops.
func (c *Client) dropSession(reason string) {
	c.mu.Lock()
	conn := c.conn
	wasActive := conn != nil || c.state != StateDisconnected
	c.conn = nil
	c.state = StateDisconnected
	c.token = ""
	c.cache = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if wasActive {
		log.Info("session closed", "reason", reason)
		c.emit(Event{Type: EventDisconnected, Message: reason})
	}
}

// readLoop receives inbound messages until the connection dies. It runs
// concurrently with the send path; state transitions go through c.mu.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			current := c.conn == conn
			c.mu.Unlock()
			if current {
				c.dropSession("read error: " + err.Error())
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn("malformed renderer message ignored", "err", err)
			continue
		}
		c.handleMessage(conn, &env)
	}
}

// handleMessage dispatches one inbound envelope. Unknown or malformed
// messages are logged and ignored without altering session state.
func (c *Client) handleMessage(conn *websocket.Conn, env *Envelope) {
	switch env.MessageType {
	case TypeAuthenticationToken:
		var data AuthenticationTokenData
		if err := env.ParseData(&data); err != nil || data.AuthenticationToken == "" {
			log.Warn("unusable authentication token message ignored", "err", err)
			return
		}
		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}
		c.token = data.AuthenticationToken
		c.state = StateAuthenticating
		c.mu.Unlock()

		if err := c.sendAuthRequest(data.AuthenticationToken); err != nil {
			c.dropSession("token authentication failed: " + err.Error())
		}

	case TypeAuthenticationResponse:
		var data AuthenticationResponseData
		if err := env.ParseData(&data); err != nil {
			log.Warn("malformed authentication response ignored", "err", err)
			return
		}
		if data.Authenticated {
			c.mu.Lock()
			if c.conn == conn {
				c.state = StateAuthenticated
			}
			c.mu.Unlock()
			log.Info("authenticated with renderer")
			c.emit(Event{Type: EventAuthenticated})
		} else {
			log.Error("renderer rejected authentication", "reason", data.Reason)
			c.emit(Event{Type: EventAuthFailed, Message: data.Reason})
		}

	case TypeAPIError:
		var data APIErrorData
		if err := env.ParseData(&data); err != nil {
			log.Warn("malformed api error ignored", "err", err)
			return
		}
		log.Error("renderer api error", "id", data.ErrorID, "message", data.Message)
		c.emit(Event{Type: EventAPIError, Message: data.Message})

	case TypeCurrentModelParameters:
		log.Debug("received current model parameters")
		c.emit(Event{Type: EventModelParameters, Message: string(env.Data)})

	default:
		log.Debug("ignoring renderer message", "type", env.MessageType)
	}
}

// sendAuthRequest sends the plugin identity, with the token on the second
// round of the handshake.
func (c *Client) sendAuthRequest(token string) error {
	env, err := newRequest(TypeAuthenticationRequest, AuthenticationRequestData{
		PluginName:          c.pluginName,
		PluginDeveloper:     c.pluginDeveloper,
		PluginIcon:          c.pluginIcon,
		AuthenticationToken: token,
	})
	if err != nil {
		return err
	}
	return c.write(env)
}

// SendTrackingData batches all parameters whose value moved at least
// paramDeltaThreshold from the last sent value into one update request.
// Parameters below the threshold are excluded and their cache entries left
// untouched; if nothing exceeds the threshold, nothing is sent. Traffic is
// refused (silently, the pipeline calls this every frame) unless the
// session is authenticated.
func (c *Client) SendTrackingData(params map[string]float64) error {
	c.mu.Lock()
	if !c.enabled || c.state != StateAuthenticated || c.conn == nil {
		c.mu.Unlock()
		return nil
	}
	var updates []ParameterValue
	for name, value := range params {
		if last, ok := c.cache[name]; ok && math.Abs(last-value) < paramDeltaThreshold {
			continue
		}
		updates = append(updates, ParameterValue{ID: name, Value: value})
	}
	c.mu.Unlock()

	if len(updates) == 0 {
		return nil
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].ID < updates[j].ID })

	env, err := newRequest(TypeParameterUpdateRequest, ParameterUpdateData{ParameterValues: updates})
	if err != nil {
		return err
	}
	if err := c.write(env); err != nil {
		c.dropSession("parameter update failed: " + err.Error())
		return err
	}

	// Cache only what actually went out.
	c.mu.Lock()
	if c.cache != nil {
		for _, u := range updates {
			c.cache[u.ID] = u.Value
		}
	}
	c.mu.Unlock()
	return nil
}

// SendHotkey triggers a renderer hotkey as an independent, unbatched request.
func (c *Client) SendHotkey(hotkeyID string) error {
	env, err := newRequest(TypeHotkeyTriggerRequest, HotkeyTriggerData{HotkeyID: hotkeyID})
	if err != nil {
		return err
	}
	if err := c.write(env); err != nil {
		c.dropSession("hotkey trigger failed: " + err.Error())
		return err
	}
	return nil
}

// RequestCurrentParameters asks the renderer for its current model
// parameters. The response arrives on the event stream.
func (c *Client) RequestCurrentParameters() error {
	env, err := newRequest(TypeGetCurrentModelParameters, nil)
	if err != nil {
		return err
	}
	if err := c.write(env); err != nil {
		c.dropSession("parameter query failed: " + err.Error())
		return err
	}
	return nil
}

// write serializes one envelope onto the channel. Only one goroutine writes
// at a time.
func (c *Client) write(env *Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(env)
}

// emit delivers an event without blocking; the stream drops events when the
// receiver falls behind.
func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		log.Debug("event dropped, receiver behind", "type", ev.Type)
	}
}

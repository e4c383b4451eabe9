// Package chat is the realtime chat client. A Client owns a single connection, the membership in at most one
// room, the message buffer of that room and its typing presence.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/tcriess/neowatch/credentials"
	"github.com/tcriess/neowatch/filter"
	"github.com/tcriess/neowatch/globals"
	"github.com/tcriess/neowatch/metrics"
	"github.com/tcriess/neowatch/types"
)

// ErrNotAuthenticated is reported in the state when Connect finds no access credential.
var ErrNotAuthenticated = errors.New("not authenticated")

const (
	defaultReconnectAttempts = 5
	defaultReconnectDelay    = time.Second
	defaultTypingTimeout     = 2 * time.Second
	defaultSeenCacheSize     = 1000

	sendBufferSize = 64
)

// SessionTerminator ends the session when the chat server rejects the credentials.
type SessionTerminator interface {
	Logout()
}

type Options struct {
	URL string
	// ReconnectAttempts bounds the transport's retries after a failed dial or a lost connection, a negative
	// value disables them and zero selects the default.
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	TypingTimeout     time.Duration
	SeenCacheSize     int
	Filter            *filter.Filter
	Terminator        SessionTerminator
	Metrics           *metrics.Metrics
	Now               func() time.Time
}

// Snapshot is a copy of the client state. CurrentRoom is empty when no room is joined.
type Snapshot struct {
	Status      Status
	Connected   bool
	Error       string
	CurrentRoom string
	Messages    []types.ChatMessage
	TypingUsers []types.TypingUser
}

type Client struct {
	opts   Options
	store  credentials.Store
	dialer Dialer

	mu       sync.Mutex
	status   Status
	err      string
	conn     Conn
	out      *outbound
	room     string
	buffer   *buffer
	presence *presence
	// gen identifies the current run loop; events of older loops are ignored
	gen    uint64
	cancel context.CancelFunc
}

func NewClient(opts Options, store credentials.Store, dialer Dialer) *Client {
	if opts.ReconnectAttempts < 0 {
		opts.ReconnectAttempts = 0
	} else if opts.ReconnectAttempts == 0 {
		opts.ReconnectAttempts = defaultReconnectAttempts
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = defaultTypingTimeout
	}
	if opts.SeenCacheSize <= 0 {
		opts.SeenCacheSize = defaultSeenCacheSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if dialer == nil {
		dialer = NewWebsocketDialer()
	}
	return &Client{
		opts:     opts,
		store:    store,
		dialer:   dialer,
		buffer:   newBuffer(opts.SeenCacheSize, opts.Filter),
		presence: newPresence(opts.TypingTimeout),
	}
}

// State returns a snapshot of the client.
func (c *Client) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Status:      c.status,
		Connected:   c.status == Connected,
		Error:       c.err,
		CurrentRoom: c.room,
		Messages:    c.buffer.snapshot(),
		TypingUsers: c.presence.snapshot(c.opts.Now()),
	}
}

// Connect opens the connection with the stored access credential. It returns immediately; the connection is
// established in the background and failures are reported in State. ctx bounds the lifetime of the connection.
// Calling Connect while a connection is open or being established does nothing.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	token, ok := c.store.Get(credentials.AccessTokenName)
	if !ok || token == "" {
		c.status = Disconnected
		c.err = ErrNotAuthenticated.Error()
		return
	}
	c.gen++
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.apply(evDial)
	go c.run(runCtx, c.gen, token)
}

// apply moves the state machine; c.mu must be held.
func (c *Client) apply(e eventKind) {
	next := transition(c.status, e)
	if next != c.status {
		globals.AppLogger.Debug("chat state", "from", c.status.String(), "to", next.String(), "event", e.String())
	}
	c.status = next
}

// lockGen locks c.mu if gen is the current run loop. It returns false (and leaves c.mu unlocked) otherwise.
func (c *Client) lockGen(gen uint64) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	return true
}

// outbound is the write queue of one connection. Frames are queued in order under c.mu and written by
// writeLoop, so a slow network never blocks the client state.
type outbound struct {
	frames chan []byte
	done   chan struct{}
}

func (c *Client) writeLoop(conn Conn, out *outbound) {
	defer close(out.done)
	for raw := range out.frames {
		if err := conn.WriteMessage(raw); err != nil {
			globals.AppLogger.Warn("could not send chat event", "error", err)
			// the read side notices the closed connection
			_ = conn.Close()
			for range out.frames {
			}
			return
		}
	}
}

func (c *Client) run(ctx context.Context, gen uint64, token string) {
	attempt := 0
	for {
		conn, err := c.dialer.Dial(ctx, c.opts.URL, token)
		if ctx.Err() != nil {
			if conn != nil {
				_ = conn.Close()
			}
			c.onCanceled(gen)
			return
		}
		if err != nil {
			var hsErr *HandshakeError
			if errors.As(err, &hsErr) && hsErr.Unauthorized() {
				c.onAuthRejected(gen, err)
				return
			}
			c.onConnectError(gen, err)
		} else {
			attempt = 0
			if !c.onConnected(gen, conn) {
				_ = conn.Close()
				return
			}
			readErr := c.serve(ctx, gen, conn)
			if ctx.Err() != nil {
				c.onCanceled(gen)
				return
			}
			c.onConnectionLost(gen, readErr)
		}

		if attempt >= c.opts.ReconnectAttempts {
			c.onReconnectFailed(gen, "")
			return
		}
		attempt++
		if !c.onReconnectAttempt(gen, attempt) {
			return
		}
		select {
		case <-ctx.Done():
			c.onCanceled(gen)
			return
		case <-time.After(c.opts.ReconnectDelay):
		}
		// the access credential may have been renewed in the meantime
		t, ok := c.store.Get(credentials.AccessTokenName)
		if !ok {
			c.onReconnectFailed(gen, ErrNotAuthenticated.Error())
			return
		}
		token = t
	}
}

// serve reads conn until it fails or ctx is done and closes it.
func (c *Client) serve(ctx context.Context, gen uint64, conn Conn) error {
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	err := c.readLoop(gen, conn)
	close(stop)
	_ = conn.Close()
	return err
}

func (c *Client) readLoop(gen uint64, conn Conn) error {
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(gen, raw)
	}
}

func (c *Client) onConnected(gen uint64, conn Conn) bool {
	if !c.lockGen(gen) {
		return false
	}
	defer c.mu.Unlock()
	out := &outbound{frames: make(chan []byte, sendBufferSize), done: make(chan struct{})}
	go c.writeLoop(conn, out)
	c.conn = conn
	c.out = out
	c.err = ""
	c.apply(evConnected)
	globals.AppLogger.Info("chat connected", "url", c.opts.URL)
	if c.room != "" {
		// rejoin after reconnect; the history snapshot repopulates the buffer
		c.emit(types.WireEventJoinRoom, types.RoomPayload{RoomId: c.room})
	}
	return true
}

func (c *Client) onConnectionLost(gen uint64, err error) {
	if !c.lockGen(gen) {
		return
	}
	defer c.mu.Unlock()
	c.detach()
	c.presence.clear()
	c.apply(evConnectionLost)
	globals.AppLogger.Info("chat connection lost", "error", err)
}

func (c *Client) onConnectError(gen uint64, err error) {
	if !c.lockGen(gen) {
		return
	}
	defer c.mu.Unlock()
	c.err = err.Error()
	c.apply(evConnectError)
	globals.AppLogger.Warn("chat connect error", "error", err)
}

func (c *Client) onReconnectAttempt(gen uint64, attempt int) bool {
	if !c.lockGen(gen) {
		return false
	}
	defer c.mu.Unlock()
	c.apply(evReconnectAttempt)
	c.opts.Metrics.Reconnect()
	globals.AppLogger.Debug("chat reconnecting", "attempt", attempt, "delay", c.opts.ReconnectDelay)
	return true
}

// onReconnectFailed ends the run loop for good and drops the room state.
func (c *Client) onReconnectFailed(gen uint64, msg string) {
	if !c.lockGen(gen) {
		return
	}
	defer c.mu.Unlock()
	c.finishLoop()()
	if msg != "" {
		c.err = msg
	}
	c.clearRoom()
	c.apply(evReconnectFailed)
	globals.AppLogger.Warn("chat reconnection given up", "error", c.err)
}

func (c *Client) onAuthRejected(gen uint64, err error) {
	if !c.lockGen(gen) {
		return
	}
	c.finishLoop()()
	c.clearRoom()
	c.apply(evAuthRejected)
	terminator := c.opts.Terminator
	c.mu.Unlock()
	globals.AppLogger.Warn("chat server rejected the credentials", "error", err)

	// the terminator disconnects this client, which resets the error
	if terminator != nil {
		terminator.Logout()
	}
	c.mu.Lock()
	if c.status == Disconnected {
		c.err = err.Error()
	}
	c.mu.Unlock()
}

// onCanceled ends the run loop after the context given to Connect is done. The room state is dropped as on
// Disconnect.
func (c *Client) onCanceled(gen uint64) {
	if !c.lockGen(gen) {
		return
	}
	defer c.mu.Unlock()
	c.finishLoop()()
	c.clearRoom()
	c.err = ""
	c.apply(evClose)
	globals.AppLogger.Info("chat connection canceled")
}

// finishLoop forgets the current run loop; c.mu must be held. The returned function cancels the loop's context.
func (c *Client) finishLoop() context.CancelFunc {
	cancel := c.cancel
	c.cancel = nil
	c.gen++
	c.detach()
	if cancel == nil {
		return func() {}
	}
	return cancel
}

// detach drops the connection and ends its write queue after the queued frames; c.mu must be held.
func (c *Client) detach() *outbound {
	out := c.out
	if out != nil {
		close(out.frames)
		c.out = nil
	}
	c.conn = nil
	return out
}

// clearRoom drops membership, messages and presence; c.mu must be held.
func (c *Client) clearRoom() {
	c.room = ""
	c.buffer.clear()
	c.presence.clear()
}

// emit queues an event on the open connection; c.mu must be held. Without connection the event is dropped.
func (c *Client) emit(event string, payload interface{}) bool {
	if c.status != Connected || c.out == nil {
		return false
	}
	raw, err := types.NewWebsocketMessage(event, payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal chat event", "event", event, "error", err)
		return false
	}
	select {
	case c.out.frames <- raw:
		return true
	default:
		globals.AppLogger.Warn("chat send queue full, dropping event", "event", event)
		return false
	}
}

// JoinRoom leaves the current room, if any, and joins id. The buffer and the presence set are reset and get
// repopulated by the server's history snapshot.
func (c *Client) JoinRoom(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == "" {
		return
	}
	if c.room != "" {
		c.emit(types.WireEventLeaveRoom, types.RoomPayload{RoomId: c.room})
	}
	c.emit(types.WireEventJoinRoom, types.RoomPayload{RoomId: id})
	c.room = id
	c.buffer.clear()
	c.presence.clear()
}

func (c *Client) LeaveRoom() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == "" {
		return
	}
	c.emit(types.WireEventLeaveRoom, types.RoomPayload{RoomId: c.room})
	c.clearRoom()
}

// SendMessage does nothing unless connected and in a room. The message is not appended locally, the server
// echoes it as new_message.
func (c *Client) SendMessage(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == "" || strings.TrimSpace(text) == "" {
		return
	}
	c.emit(types.WireEventSendMessage, types.SendMessagePayload{RoomId: c.room, Content: text})
}

func (c *Client) StartTyping() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == "" {
		return
	}
	c.emit(types.WireEventTypingStart, types.RoomPayload{RoomId: c.room})
}

func (c *Client) StopTyping() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == "" {
		return
	}
	c.emit(types.WireEventTypingStop, types.RoomPayload{RoomId: c.room})
}

// Disconnect leaves the current room, closes the connection, stops reconnecting and clears the chat state. It
// is safe to call at any time. Queued events, including the leave, are flushed before the connection is closed.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.room != "" {
		c.emit(types.WireEventLeaveRoom, types.RoomPayload{RoomId: c.room})
	}
	conn := c.conn
	out := c.out
	cancel := c.finishLoop()
	c.clearRoom()
	c.err = ""
	c.apply(evClose)
	c.mu.Unlock()

	if out != nil {
		select {
		case <-out.done:
		case <-time.After(writeWait):
		}
	}
	cancel()
	if conn != nil {
		_ = conn.Close()
	}
}

package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/campusconnect/messaging/internal/logger"
	"github.com/campusconnect/messaging/internal/presence"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufSize    = 256
)

// bufPool pools bytes.Buffer for JSON encoding in the hot path (writePump).
var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Client represents a single WebSocket connection.
// Lifecycle: NewClient -> Start(ctx, cancel) -> [readPump, writePump] -> Close -> Wait.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan OutgoingMessage
	userID string

	// convs is the set of conversation subscriptions; guarded by hub.mu.
	convs map[string]struct{}

	// presSubs maps watched user ids to their live presence streams; each
	// stream is pumped by one forwarder goroutine and released on teardown.
	presMu   sync.Mutex
	presSubs map[string]*presence.Subscription

	// done is used as a non-blocking guard in sendToClient.
	done chan struct{}
	// cancel cancels the context passed to Start, triggering pump shutdown.
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan OutgoingMessage, sendBufSize),
		userID:   userID,
		convs:    make(map[string]struct{}),
		presSubs: make(map[string]*presence.Subscription),
		done:     make(chan struct{}),
	}
}

// Start launches the pump goroutines with a controlled lifecycle.
// ctx controls pump lifetime; cancel is stored for Close().
func (c *Client) Start(ctx context.Context, cancel context.CancelFunc) {
	c.cancel = cancel
	c.wg.Add(2)
	go c.writePump(ctx)
	go c.readPump(ctx)
}

// Wait blocks until both pump goroutines have exited.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Close signals the client to stop. Safe to call multiple times from any goroutine.
func (c *Client) Close() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		close(c.done)
		c.releasePresenceSubs()
		// Force both pumps to unblock (ReadMessage / WriteMessage will error).
		c.conn.Close()
	})
}

// watchPresence subscribes the client to a user's presence stream and pumps
// updates into the send channel until the stream or the client closes.
func (c *Client) watchPresence(ctx context.Context, userID string) {
	c.presMu.Lock()
	if _, ok := c.presSubs[userID]; ok {
		c.presMu.Unlock()
		return
	}
	sub := c.hub.tracker.Subscribe(ctx, userID)
	c.presSubs[userID] = sub
	c.presMu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for p := range sub.Updates() {
			c.hub.sendToClient(c, OutgoingMessage{Type: EventPresence, Payload: p})
		}
	}()
}

func (c *Client) releasePresenceSubs() {
	c.presMu.Lock()
	subs := c.presSubs
	c.presSubs = make(map[string]*presence.Subscription)
	c.presMu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}

// readPump reads messages from the WebSocket connection.
// Exits on read error (triggered by conn.Close from Close() or writePump exit).
func (c *Client) readPump(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Errorf("ws set read deadline user=%s: %v", c.userID, err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("ws read error user=%s: %v", c.userID, err)
			}
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Errorf("ws unmarshal error user=%s: %v", c.userID, err)
			continue
		}

		c.hub.HandleMessage(ctx, c, msg)
	}
}

// writePump writes messages to the WebSocket connection.
// Exits on ctx cancellation, write error, or connection close.
func (c *Client) writePump(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
				logger.Errorf("ws close message user=%s: %v", c.userID, err)
			}
			return
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Errorf("ws set write deadline user=%s: %v", c.userID, err)
				return
			}
			buf := bufPool.Get().(*bytes.Buffer)
			buf.Reset()
			enc := json.NewEncoder(buf)
			if err := enc.Encode(msg); err != nil {
				bufPool.Put(buf)
				logger.Errorf("ws marshal error user=%s: %v", c.userID, err)
				continue
			}
			data := buf.Bytes()
			// json.Encoder appends '\n'; trim it for WebSocket text messages.
			if len(data) > 0 && data[len(data)-1] == '\n' {
				data = data[:len(data)-1]
			}
			writeErr := c.conn.WriteMessage(websocket.TextMessage, data)
			bufPool.Put(buf)
			if writeErr != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Errorf("ws set write deadline user=%s: %v", c.userID, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

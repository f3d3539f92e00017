package notifications

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"huddle/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16384

	defaultSendBuffer = 256
)

type clientState int

const (
	stateNew clientState = iota
	stateLive
	stateGone
)

// Client is one live websocket connection. Its Send buffer is never closed;
// done signals the writer to stop instead, so senders can never panic.
type Client struct {
	ID     string
	UserID uint

	// The websocket connection. Nil in tests that only exercise routing.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	// Callback for handling incoming messages
	IncomingHandler func(*Client, []byte)

	hub     *Hub
	limiter *rate.Limiter
	dropped atomic.Int64

	done       chan struct{}
	closeOnce  sync.Once
	closeFrame []byte
	unregister sync.Once

	// mu guards state and rooms.
	mu    sync.Mutex
	state clientState
	rooms map[string]struct{}
}

// NewClient creates a client with a send buffer of bufSize messages.
func NewClient(conn *websocket.Conn, userID uint, bufSize int) *Client {
	if bufSize <= 0 {
		bufSize = defaultSendBuffer
	}
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, bufSize),
		done:   make(chan struct{}),
		rooms:  make(map[string]struct{}),
	}
}

// SetInboundLimit rate-limits messages read from the peer.
func (c *Client) SetInboundLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// TrySend enqueues message without blocking. A full buffer drops the message
// and records the gap for the writer to report.
func (c *Client) TrySend(message []byte) bool {
	select {
	case <-c.done:
		observability.DeliveryDropped.WithLabelValues("closed").Inc()
		return false
	default:
	}

	select {
	case c.Send <- message:
		observability.DeliveriesTotal.Inc()
		return true
	default:
		c.dropped.Add(1)
		observability.DeliveryDropped.WithLabelValues("buffer_full").Inc()
		return false
	}
}

// Dropped returns how many messages were dropped since the writer last reported.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close stops the writer, which sends a normal close frame.
func (c *Client) Close() {
	c.closeWith(websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *Client) closeWith(frame []byte) {
	c.closeOnce.Do(func() {
		c.closeFrame = frame
		close(c.done)
	})
}

// SendJSON marshals v and enqueues it.
func (c *Client) SendJSON(v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return c.TrySend(data)
}

// ReadPump pumps messages from the websocket connection to IncomingHandler.
// Its exit is the single disconnect path for the client.
func (c *Client) ReadPump() {
	defer func() {
		if c.hub != nil {
			c.hub.UnregisterClient(c)
		}
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				observability.Logger.Warn("ws_read_failed",
					slog.String("conn_id", c.ID),
					slog.Uint64("user_id", uint64(c.UserID)),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			observability.InboundRejected.WithLabelValues("rate_limited").Inc()
			c.SendJSON(ErrorMessage("rate limit exceeded"))
			continue
		}
		if c.IncomingHandler != nil {
			c.IncomingHandler(c, message)
		}
	}
}

// WritePump pumps messages from the send buffer to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, c.closeFrame)
			return

		case message := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.flushDropped(); err != nil {
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.flushDropped(); err != nil {
				return
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// flushDropped tells the peer how many events it missed so it can re-fetch.
func (c *Client) flushDropped() error {
	n := c.dropped.Swap(0)
	if n == 0 {
		return nil
	}
	notice, _ := json.Marshal(DroppedMessage{Type: TypeEventsDropped, Count: n})
	return c.Conn.WriteMessage(websocket.TextMessage, notice)
}

package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

// Errors returned by Register.
var (
	ErrHubClosed       = errors.New("server is shutting down")
	ErrServerConnLimit = errors.New("server connection limit reached")
	ErrUserConnLimit   = errors.New("user connection limit reached")
)

// HubConfig sizes per-connection resources.
type HubConfig struct {
	SendBuffer   int
	InboundRPS   float64
	InboundBurst int
}

// Hub admits websocket connections into the registry, enforces connection
// limits, and closes everything on shutdown.
type Hub struct {
	registry *Registry
	cfg      HubConfig

	mu      sync.Mutex
	perUser map[uint]int
	closed  bool
}

// NewHub creates a hub admitting connections into registry.
func NewHub(registry *Registry, cfg HubConfig) *Hub {
	return &Hub{
		registry: registry,
		cfg:      cfg,
		perUser:  make(map[uint]int),
	}
}

// Registry returns the hub's registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Register creates and connects a client for userID.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if h.registry.ConnectionCount() >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrServerConnLimit
	}
	if h.perUser[userID] >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, ErrUserConnLimit
	}
	h.perUser[userID]++
	h.mu.Unlock()

	client := NewClient(conn, userID, h.cfg.SendBuffer)
	client.SetInboundLimit(h.cfg.InboundRPS, h.cfg.InboundBurst)
	client.hub = h
	h.registry.Connect(client)
	return client, nil
}

// UnregisterClient disconnects client from every room and stops its writer.
// Only the first call has any effect.
func (h *Hub) UnregisterClient(client *Client) {
	client.unregister.Do(func() {
		h.registry.Disconnect(client)
		client.Close()

		h.mu.Lock()
		if h.perUser[client.UserID] <= 1 {
			delete(h.perUser, client.UserID)
		} else {
			h.perUser[client.UserID]--
		}
		h.mu.Unlock()
	})
}

// Shutdown sends a going-away close frame to every client and waits until
// their read loops have disconnected them or ctx expires. Clients without a
// socket are disconnected directly.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	frame := websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")
	for _, c := range h.registry.Connections() {
		c.closeWith(frame)
		if c.Conn == nil {
			h.UnregisterClient(c)
		}
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for h.registry.ConnectionCount() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

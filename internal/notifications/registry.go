package notifications

import (
	"sort"
	"sync"

	"huddle/internal/observability"
)

// Registry tracks which live connections are in which rooms.
//
// Lock order is client, then directory, then room. The directory lock guards
// only the room map; membership of a room is guarded by that room's lock and
// a client's room set by the client's lock, so traffic in one room never
// contends with another.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room

	connMu sync.Mutex
	conns  map[*Client]struct{}

	multiRoom func(userID uint) bool
}

type room struct {
	// publish orders deliveries into this room.
	publish sync.Mutex

	mu      sync.RWMutex
	members map[*Client]struct{}
	// dead marks a room removed from the directory; joiners holding a stale
	// pointer must look it up again.
	dead bool
}

// NewRegistry creates a registry. multiRoom decides per user whether a
// connection may be in several rooms; nil means single-room for everyone.
func NewRegistry(multiRoom func(userID uint) bool) *Registry {
	return &Registry{
		rooms:     make(map[string]*room),
		conns:     make(map[*Client]struct{}),
		multiRoom: multiRoom,
	}
}

// Connect registers a new live connection. Reconnecting a disconnected
// client is a no-op.
func (r *Registry) Connect(c *Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateNew {
		return
	}
	c.state = stateLive

	r.connMu.Lock()
	r.conns[c] = struct{}{}
	r.connMu.Unlock()
	observability.ActiveConnections.Inc()
}

// Join adds c to roomID. Under the single-room policy c first leaves every
// other room. It reports false when c is not live.
func (r *Registry) Join(c *Client, roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateLive {
		return false
	}
	if _, ok := c.rooms[roomID]; ok {
		return true
	}

	if r.multiRoom == nil || !r.multiRoom(c.UserID) {
		for other := range c.rooms {
			r.removeMember(other, c)
			delete(c.rooms, other)
		}
	}

	r.addMember(roomID, c)
	c.rooms[roomID] = struct{}{}
	return true
}

// Leave removes c from roomID. Leaving a room c is not in is a no-op.
func (r *Registry) Leave(c *Client, roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[roomID]; !ok {
		return
	}
	r.removeMember(roomID, c)
	delete(c.rooms, roomID)
}

// Disconnect removes c from every room and forgets it. Later calls are no-ops.
func (r *Registry) Disconnect(c *Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateLive {
		c.state = stateGone
		return
	}
	c.state = stateGone

	for roomID := range c.rooms {
		r.removeMember(roomID, c)
	}
	c.rooms = make(map[string]struct{})

	r.connMu.Lock()
	delete(r.conns, c)
	r.connMu.Unlock()
	observability.ActiveConnections.Dec()
}

// Rooms lists the rooms c is in.
func (r *Registry) Rooms(c *Client) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Members returns a snapshot of roomID's connections.
func (r *Registry) Members(roomID string) []*Client {
	rm := r.lookup(roomID)
	if rm == nil {
		return nil
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.snapshot()
}

// RoomCount reports how many rooms have at least one member.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Connections returns a snapshot of every live connection.
func (r *Registry) Connections() []*Client {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	out := make([]*Client, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// ConnectionCount reports how many connections are live.
func (r *Registry) ConnectionCount() int {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	return len(r.conns)
}

func (r *Registry) lookup(roomID string) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[roomID]
}

func (r *Registry) addMember(roomID string, c *Client) {
	for {
		r.mu.Lock()
		rm, ok := r.rooms[roomID]
		if !ok {
			rm = &room{members: make(map[*Client]struct{})}
			r.rooms[roomID] = rm
			observability.ActiveRooms.Inc()
		}
		r.mu.Unlock()

		rm.mu.Lock()
		if rm.dead {
			rm.mu.Unlock()
			continue
		}
		rm.members[c] = struct{}{}
		rm.mu.Unlock()
		return
	}
}

func (r *Registry) removeMember(roomID string, c *Client) {
	rm := r.lookup(roomID)
	if rm == nil {
		return
	}
	rm.mu.Lock()
	delete(rm.members, c)
	empty := len(rm.members) == 0
	rm.mu.Unlock()
	if !empty {
		return
	}

	r.mu.Lock()
	rm.mu.Lock()
	if len(rm.members) == 0 && !rm.dead && r.rooms[roomID] == rm {
		rm.dead = true
		delete(r.rooms, roomID)
		observability.ActiveRooms.Dec()
	}
	rm.mu.Unlock()
	r.mu.Unlock()
}

func (rm *room) snapshot() []*Client {
	out := make([]*Client, 0, len(rm.members))
	for c := range rm.members {
		out = append(out, c)
	}
	return out
}

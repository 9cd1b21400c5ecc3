package realtime

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNotConnected is returned when the user has no live connection.
var ErrNotConnected = errors.New("realtime: user not connected")

// Conn is a handle to one connected client.
type Conn interface {
	Send(event string, data any) error
	Close() error
}

// Registry maps user ids to their live connection. Add and Remove are the
// only mutators; a newer connection replaces an older one for the same user.
type Registry struct {
	clients sync.Map
	count   atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers c for userID and returns the connection it replaced, if any.
func (r *Registry) Add(userID string, c Conn) Conn {
	prev, loaded := r.clients.Swap(userID, c)
	if !loaded {
		r.count.Add(1)
		return nil
	}
	return prev.(Conn)
}

// Remove unregisters c only if it is still the connection held for userID.
func (r *Registry) Remove(userID string, c Conn) bool {
	if r.clients.CompareAndDelete(userID, c) {
		r.count.Add(-1)
		return true
	}
	return false
}

func (r *Registry) Get(userID string) (Conn, bool) {
	v, ok := r.clients.Load(userID)
	if !ok {
		return nil, false
	}
	return v.(Conn), true
}

// Send pushes an event to the user's connection.
func (r *Registry) Send(userID, event string, data any) error {
	c, ok := r.Get(userID)
	if !ok {
		return ErrNotConnected
	}
	return c.Send(event, data)
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	return int(r.count.Load())
}

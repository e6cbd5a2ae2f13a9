package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Observer is one websocket client watching the gateway's event stream.
type Observer struct {
	ID          string
	Conn        *websocket.Conn
	ConnectedAt time.Time

	writeMu sync.Mutex
}

func (o *Observer) writeJSON(v interface{}) error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	return o.Conn.WriteJSON(v)
}

// ObserverRegistry tracks connected event-stream observers.
type ObserverRegistry struct {
	mu        sync.RWMutex
	observers map[string]*Observer
}

// NewObserverRegistry creates an empty observer registry
func NewObserverRegistry() *ObserverRegistry {
	return &ObserverRegistry{
		observers: make(map[string]*Observer),
	}
}

// Add registers an observer
func (r *ObserverRegistry) Add(o *Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[o.ID] = o
}

// Remove drops an observer
func (r *ObserverRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, id)
}

// All returns the current observers
func (r *ObserverRegistry) All() []*Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	observers := make([]*Observer, 0, len(r.observers))
	for _, o := range r.observers {
		observers = append(observers, o)
	}
	return observers
}

// Len returns the number of connected observers
func (r *ObserverRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}

// EventBroadcaster fans session lifecycle events out to all connected
// observers. A slow or broken observer is logged and skipped, never blocks
// session handling.
type EventBroadcaster struct {
	observers *ObserverRegistry
	logger    zerolog.Logger
	seq       atomic.Int64
}

// NewEventBroadcaster creates a broadcaster over an observer registry
func NewEventBroadcaster(observers *ObserverRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		observers: observers,
		logger:    logger,
	}
}

// Broadcast sends an event to all observers
func (b *EventBroadcaster) Broadcast(msg EventMessage) {
	if msg.Seq == 0 {
		msg.Seq = b.seq.Add(1)
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	observers := b.observers.All()
	if len(observers) == 0 {
		return
	}

	for _, o := range observers {
		if err := o.writeJSON(msg); err != nil {
			b.logger.Warn().
				Err(err).
				Str("observerId", o.ID).
				Str("event", msg.Event).
				Msg("Failed to broadcast to observer")
		}
	}
}

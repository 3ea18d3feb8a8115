// Package bus is a typed in-process publish/subscribe channel for domain
// events, decoupling the synchronization engine from UI notification
// mechanisms.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adrata/record-sync/internal/model"
)

// EventType discriminates domain events.
type EventType string

const (
	// EventRecordUpdated signals that a record's merged state changed.
	EventRecordUpdated EventType = "record-updated"
	// EventRefreshCollection asks list views of one collection to reload.
	EventRefreshCollection EventType = "refresh-collection"
	// EventRefreshCounts asks count badges to reload.
	EventRefreshCounts EventType = "refresh-counts"
	// EventCacheInvalidated reports a completed cache purge.
	EventCacheInvalidated EventType = "cache-invalidated"
	// EventNavigate carries a navigation target for UI surfaces that own
	// routing out of process.
	EventNavigate EventType = "navigate"
)

// Event is a single domain event.
type Event struct {
	ID          string             `json:"id"`
	Type        EventType          `json:"type"`
	WorkspaceID string             `json:"workspaceId,omitempty"`
	RecordID    string             `json:"recordId,omitempty"`
	Collections []model.Collection `json:"collections,omitempty"`
	Field       string             `json:"field,omitempty"`
	Path        string             `json:"path,omitempty"`
	At          time.Time          `json:"at"`
}

const subscriberBuffer = 64

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event and a warning is logged.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release the subscription; the channel is closed by cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers the event to all current subscribers. The event ID and
// timestamp are filled in when absent.
func (b *Bus) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			zap.L().Warn("bus: subscriber buffer full, dropping event",
				zap.String("event_id", ev.ID),
				zap.String("type", string(ev.Type)),
			)
		}
	}
}

// Package events fans installation and volume changes out to in-process
// subscribers (websocket streams) and, optionally, to NATS.
package events

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/volumes"
)

// Event types.
const (
	TypeInstallation = "installation"
	TypeVolume       = "volume"
)

// Event is one change notification.
type Event struct {
	Type         string                    `json:"type"`
	GameID       string                    `json:"game_id,omitempty"`
	PlatformID   string                    `json:"platform_id,omitempty"`
	Installation *games.InstallationRecord `json:"installation,omitempty"`
	VolumeID     string                    `json:"volume_id,omitempty"`
	Volume       *volumes.Volume           `json:"volume,omitempty"`
	Time         time.Time                 `json:"time"`
}

// Subject returns the NATS subject suffix for the event.
func (e Event) Subject() string {
	switch e.Type {
	case TypeInstallation:
		return "installation." + e.GameID + "." + e.PlatformID
	case TypeVolume:
		return "volume." + e.VolumeID
	}
	return e.Type
}

// Publisher forwards encoded events to an external bus.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

// Hub delivers events to subscribers without blocking the sender: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]*subscription
	nextID int

	pub    Publisher
	prefix string
}

type subscription struct {
	ch     chan Event
	filter func(Event) bool
}

// NewHub returns a Hub. pub may be nil; prefix is the NATS subject root.
func NewHub(pub Publisher, prefix string) *Hub {
	return &Hub{subs: make(map[int]*subscription), pub: pub, prefix: prefix}
}

// Subscribe registers a subscriber. filter may be nil to receive every
// event. The returned cancel func closes the channel.
func (h *Hub) Subscribe(buf int, filter func(Event) bool) (<-chan Event, func()) {
	if buf < 1 {
		buf = 1
	}
	sub := &subscription{ch: make(chan Event, buf), filter: filter}
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Publish delivers ev to subscribers and the external publisher.
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	h.mu.Lock()
	for _, sub := range h.subs {
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
	h.mu.Unlock()

	if h.pub == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[events] encoding %s event: %v", ev.Type, err)
		return
	}
	subject := ev.Subject()
	if h.prefix != "" {
		subject = h.prefix + "." + subject
	}
	if err := h.pub.Publish(context.Background(), subject, payload); err != nil {
		log.Printf("[events] publish %s: %v", subject, err)
	}
}

// InstallationChanged publishes an installation record change.
func (h *Hub) InstallationChanged(gameID, platformID string, rec games.InstallationRecord) {
	h.Publish(Event{Type: TypeInstallation, GameID: gameID, PlatformID: platformID, Installation: &rec})
}

// VolumeChanged publishes a volume change. v is nil for removals.
func (h *Hub) VolumeChanged(id string, v *volumes.Volume) {
	h.Publish(Event{Type: TypeVolume, VolumeID: id, Volume: v})
}

// ForInstallation filters events of one installation.
func ForInstallation(gameID, platformID string) func(Event) bool {
	return func(e Event) bool {
		return e.Type == TypeInstallation && e.GameID == gameID && e.PlatformID == platformID
	}
}

package bus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/jamroom/internal/domain"
)

const subscriberBuffer = 32

// Message is one delivered room event. Seq is the sender's logical clock
// at send time; it travels with the event end to end.
type Message struct {
	SenderID uuid.UUID
	Seq      uint64
	Event    domain.Event
}

// PresenceMeta is what a client advertises on the presence channel.
type PresenceMeta struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
}

// Subscription is one client's feed of a room's events. Close is
// idempotent and detaches the subscriber synchronously, so no event for a
// left room is delivered after it returns.
type Subscription struct {
	C      <-chan Message
	ch     chan Message
	once   sync.Once
	cancel func()
}

func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// Hub is an in-process publish/subscribe fabric, one logical channel per
// room. Broadcasts never echo to the sender. Slow subscribers drop events
// rather than block the publisher; the periodic admin tick repairs
// whatever a drop loses.
type Hub struct {
	log      *slog.Logger
	mu       sync.RWMutex
	rooms    map[string]map[uuid.UUID]*Subscription
	presence map[string]map[uuid.UUID]PresenceMeta
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:      log,
		rooms:    make(map[string]map[uuid.UUID]*Subscription),
		presence: make(map[string]map[uuid.UUID]PresenceMeta),
	}
}

// Subscribe attaches selfID to the room's channel. A second subscription
// for the same id replaces the first.
func (h *Hub) Subscribe(roomID string, selfID uuid.UUID) *Subscription {
	h.mu.Lock()

	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[uuid.UUID]*Subscription)
		h.rooms[roomID] = subs
	}
	prev := subs[selfID]

	ch := make(chan Message, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch}
	sub.cancel = func() {
		h.mu.Lock()
		if cur, ok := h.rooms[roomID][selfID]; ok && cur == sub {
			delete(h.rooms[roomID], selfID)
			if len(h.rooms[roomID]) == 0 {
				delete(h.rooms, roomID)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
	subs[selfID] = sub
	h.mu.Unlock()

	// The replaced subscription is already out of the map; closing its
	// channel must happen outside the lock, and through its once so a
	// later Close on the same handle stays a no-op.
	if prev != nil {
		prev.once.Do(func() { close(prev.ch) })
	}
	return sub
}

// Publish delivers the event to every room subscriber except the sender.
func (h *Hub) Publish(roomID string, senderID uuid.UUID, seq uint64, ev domain.Event) {
	msg := Message{SenderID: senderID, Seq: seq, Event: ev}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, sub := range h.rooms[roomID] {
		if id == senderID {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			h.log.Debug("dropping bus event",
				slog.String("room_id", roomID),
				slog.String("subscriber", id.String()),
				slog.String("kind", string(ev.Kind())),
			)
		}
	}
}

// Track advertises a client on the room's presence channel.
func (h *Hub) Track(roomID string, selfID uuid.UUID, meta PresenceMeta) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.presence[roomID]
	if !ok {
		room = make(map[uuid.UUID]PresenceMeta)
		h.presence[roomID] = room
	}
	room[selfID] = meta
}

func (h *Hub) Untrack(roomID string, selfID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.presence[roomID], selfID)
	if len(h.presence[roomID]) == 0 {
		delete(h.presence, roomID)
	}
}

// Presence returns the full current online set for a room.
func (h *Hub) Presence(roomID string) []PresenceMeta {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]PresenceMeta, 0, len(h.presence[roomID]))
	for _, meta := range h.presence[roomID] {
		out = append(out, meta)
	}
	return out
}

// OnlineCount reports how many clients are tracked in the room right now.
func (h *Hub) OnlineCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.presence[roomID])
}

// CloseRoom tears down every subscription and presence entry for a room.
// Called after a destroy broadcast has gone out.
func (h *Hub) CloseRoom(roomID string) {
	h.mu.Lock()
	subs := h.rooms[roomID]
	delete(h.rooms, roomID)
	delete(h.presence, roomID)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.ch) })
	}
}

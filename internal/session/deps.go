package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/jamroom/internal/bus"
	"github.com/immxrtalbeast/jamroom/internal/domain"
	"github.com/immxrtalbeast/jamroom/internal/repository"
	"github.com/immxrtalbeast/jamroom/internal/service"
)

// Registry is the slice of the room registry a session consumes. The
// registry row is the single arbitration point for authoritative state;
// the session never assumes its local copy wins except through the admin
// ticker.
type Registry interface {
	GetRoom(ctx context.Context, roomID string, requesterID uuid.UUID) (*service.RoomWithMeta, error)
	Join(ctx context.Context, roomID string, userID uuid.UUID, displayName string, password string) (*domain.Member, *domain.Room, error)
	Leave(ctx context.Context, roomID string, userID uuid.UUID) error
	UpdatePlayback(ctx context.Context, roomID string, userID uuid.UUID, patch repository.PlaybackPatch) (*domain.Room, error)
}

// Bus is the per-room publish/subscribe transport. Publish never echoes
// to the sender.
type Bus interface {
	Subscribe(roomID string, selfID uuid.UUID) *bus.Subscription
	Publish(roomID string, senderID uuid.UUID, seq uint64, ev domain.Event)
	Track(roomID string, selfID uuid.UUID, meta bus.PresenceMeta)
	Untrack(roomID string, selfID uuid.UUID)
}

// SuggestionSource feeds the recommendation buffer of the local queue.
type SuggestionSource interface {
	Suggestions(ctx context.Context, songID string, limit int) ([]domain.Song, error)
}

// Config tunes the sync behavior. Zero values fall back to the defaults
// the protocol was designed around.
type Config struct {
	// TickInterval is how often the admin rebroadcasts ground truth.
	TickInterval time.Duration
	// ListenerDriftTolerance is the snap threshold for plain listeners.
	ListenerDriftTolerance float64
	// ControllerDriftTolerance is the larger threshold for delegated
	// controllers, so a tick does not fight their own recent seek.
	ControllerDriftTolerance float64
	// SettleDelay is how long a fresh join waits before announcing
	// itself and requesting a sync.
	SettleDelay time.Duration
	// HistoryCap bounds the previously-played buffer.
	HistoryCap int
	// QueueRefill is how many suggestions to fetch after a song change.
	QueueRefill int
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 3 * time.Second
	}
	if c.ListenerDriftTolerance <= 0 {
		c.ListenerDriftTolerance = 0.8
	}
	if c.ControllerDriftTolerance <= 0 {
		c.ControllerDriftTolerance = 3.0
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = time.Second
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = 50
	}
	if c.QueueRefill <= 0 {
		c.QueueRefill = 10
	}
	return c
}

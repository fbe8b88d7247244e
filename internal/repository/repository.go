package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/jamroom/internal/domain"
)

// PlaybackPatch is a partial update of a room's playback fields. Nil
// fields are left untouched; every applied patch stamps last_sync_at.
// Concurrent patches resolve last-writer-wins.
type PlaybackPatch struct {
	CurrentSongID  *string
	CurrentSong    *domain.Song
	IsPlaying      *bool
	CurrentTimeSec *float64
}

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	UpdatePlayback(ctx context.Context, id string, patch PlaybackPatch) (*domain.Room, error)
	SetAdmin(ctx context.Context, id string, adminID uuid.UUID) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.Room, error)
}

type MemberRepository interface {
	Add(ctx context.Context, member *domain.Member) error
	Get(ctx context.Context, roomID string, userID uuid.UUID) (*domain.Member, error)
	// ListByRoom returns members ordered by joined_at ascending.
	ListByRoom(ctx context.Context, roomID string) ([]*domain.Member, error)
	Remove(ctx context.Context, roomID string, userID uuid.UUID) error
	RemoveByRoom(ctx context.Context, roomID string) error
	SetControl(ctx context.Context, roomID string, userID uuid.UUID, canControl bool) error
	Count(ctx context.Context, roomID string) (int, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/jamroom/internal/domain"
	"github.com/immxrtalbeast/jamroom/internal/repository"
)

// RoomFilter selects which rooms ListRooms returns.
type RoomFilter string

const (
	FilterAll     RoomFilter = "all"
	FilterPublic  RoomFilter = "public"
	FilterPrivate RoomFilter = "private"
	FilterJoined  RoomFilter = "joined"
)

// RoomWithMeta is a room plus the requester-relative fields the API and
// session layer need on every read.
type RoomWithMeta struct {
	Room        *domain.Room
	MemberCount int
	OnlineCount int
	IsMember    bool
	CanControl  bool
}

type RoomInteractor interface {
	CreateRoom(ctx context.Context, name string, creatorID uuid.UUID, creatorName string, isPrivate bool, password string) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID string, requesterID uuid.UUID) (*RoomWithMeta, error)
	ListRooms(ctx context.Context, filter RoomFilter, search string, requesterID uuid.UUID) ([]*RoomWithMeta, error)
	UpdatePlayback(ctx context.Context, roomID string, userID uuid.UUID, patch repository.PlaybackPatch) (*domain.Room, error)
	Join(ctx context.Context, roomID string, userID uuid.UUID, displayName string, password string) (*domain.Member, *domain.Room, error)
	Leave(ctx context.Context, roomID string, userID uuid.UUID) error
	Destroy(ctx context.Context, roomID string, userID uuid.UUID) error
	SetMemberControl(ctx context.Context, roomID string, adminID uuid.UUID, userID uuid.UUID, canControl bool) error
}

type UserInteractor interface {
	CreateUser(ctx context.Context, name string, email string) (*domain.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
}

// Broadcaster is the slice of the event hub the registry needs for
// server-originated announcements (destroy, permission changes, handoff).
type Broadcaster interface {
	Publish(roomID string, senderID uuid.UUID, seq uint64, ev domain.Event)
	CloseRoom(roomID string)
	OnlineCount(roomID string) int
}

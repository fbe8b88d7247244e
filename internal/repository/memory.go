package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/jamroom/internal/domain"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomIDExists    = errors.New("room id already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserEmailExists = errors.New("user with email already exists")
	ErrMemberNotFound  = errors.New("member not found")
	ErrMemberExists    = errors.New("member already joined")
)

type InMemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

func NewInMemoryRoomRepository() *InMemoryRoomRepository {
	return &InMemoryRoomRepository{
		rooms: make(map[string]*domain.Room),
	}
}

func (r *InMemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room.ID]; ok {
		return ErrRoomIDExists
	}

	clone := *room
	r.rooms[room.ID] = &clone
	return nil
}

func (r *InMemoryRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}

	clone := *room
	return &clone, nil
}

func (r *InMemoryRoomRepository) UpdatePlayback(ctx context.Context, id string, patch PlaybackPatch) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}

	if patch.CurrentSongID != nil {
		room.CurrentSongID = *patch.CurrentSongID
	}
	if patch.CurrentSong != nil {
		song := *patch.CurrentSong
		room.CurrentSong = &song
	}
	if patch.IsPlaying != nil {
		room.IsPlaying = *patch.IsPlaying
	}
	if patch.CurrentTimeSec != nil {
		room.CurrentTimeSec = *patch.CurrentTimeSec
	}
	room.LastSyncAt = time.Now().UTC()

	clone := *room
	return &clone, nil
}

func (r *InMemoryRoomRepository) SetAdmin(ctx context.Context, id string, adminID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}

	room.AdminID = adminID
	return nil
}

func (r *InMemoryRoomRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[id]; !ok {
		return ErrRoomNotFound
	}

	delete(r.rooms, id)
	return nil
}

func (r *InMemoryRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		clone := *room
		result = append(result, &clone)
	}
	return result, nil
}

type InMemoryMemberRepository struct {
	mu      sync.RWMutex
	members map[string]map[uuid.UUID]*domain.Member
}

func NewInMemoryMemberRepository() *InMemoryMemberRepository {
	return &InMemoryMemberRepository{
		members: make(map[string]map[uuid.UUID]*domain.Member),
	}
}

func (r *InMemoryMemberRepository) Add(ctx context.Context, member *domain.Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.members[member.RoomID]
	if !ok {
		room = make(map[uuid.UUID]*domain.Member)
		r.members[member.RoomID] = room
	}

	if _, ok := room[member.UserID]; ok {
		return ErrMemberExists
	}

	clone := *member
	room[member.UserID] = &clone
	return nil
}

func (r *InMemoryMemberRepository) Get(ctx context.Context, roomID string, userID uuid.UUID) (*domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	member, ok := r.members[roomID][userID]
	if !ok {
		return nil, ErrMemberNotFound
	}

	clone := *member
	return &clone, nil
}

func (r *InMemoryMemberRepository) ListByRoom(ctx context.Context, roomID string) ([]*domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Member, 0, len(r.members[roomID]))
	for _, member := range r.members[roomID] {
		clone := *member
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].JoinedAt.Before(result[j].JoinedAt)
	})
	return result, nil
}

func (r *InMemoryMemberRepository) Remove(ctx context.Context, roomID string, userID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[roomID][userID]; !ok {
		return ErrMemberNotFound
	}

	delete(r.members[roomID], userID)
	return nil
}

func (r *InMemoryMemberRepository) RemoveByRoom(ctx context.Context, roomID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.members, roomID)
	return nil
}

func (r *InMemoryMemberRepository) SetControl(ctx context.Context, roomID string, userID uuid.UUID, canControl bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	member, ok := r.members[roomID][userID]
	if !ok {
		return ErrMemberNotFound
	}

	member.CanControl = canControl
	return nil
}

func (r *InMemoryMemberRepository) Count(ctx context.Context, roomID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.members[roomID]), nil
}

type InMemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]*domain.User
	emails map[string]uuid.UUID
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:  make(map[uuid.UUID]*domain.User),
		emails: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if user.Email != "" {
		if _, ok := r.emails[user.Email]; ok {
			return ErrUserEmailExists
		}
		r.emails[user.Email] = user.ID
	}

	r.users[user.ID] = user
	return nil
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	return user, nil
}

func (r *InMemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return ErrUserNotFound
	}

	r.users[user.ID] = user
	if user.Email != "" {
		r.emails[user.Email] = user.ID
	}
	return nil
}

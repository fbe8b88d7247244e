package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/jamroom/internal/domain"
	"github.com/immxrtalbeast/jamroom/internal/repository"
	"github.com/immxrtalbeast/jamroom/lib/logger/sl"
	"github.com/samber/lo"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidPassword = errors.New("invalid room password")
	ErrNotAuthorized   = errors.New("not authorized to control playback")
	ErrNotAdmin        = errors.New("only the room admin may do this")
	ErrNotMember       = errors.New("not a member of this room")
)

// Rooms with no sync activity for longer than this are hidden from
// listings; they linger in the registry until explicitly destroyed.
const inactivityHorizon = 36 * time.Hour

const createRetries = 3

// RoomService owns room lifecycle, membership and playback authorization.
// Every playback mutation re-derives the caller's rights from the
// membership table; the client's own view is never trusted.
type RoomService struct {
	rooms   repository.RoomRepository
	members repository.MemberRepository
	bus     Broadcaster
	log     *slog.Logger
}

func NewRoomService(rooms repository.RoomRepository, members repository.MemberRepository, bus Broadcaster, log *slog.Logger) *RoomService {
	if log == nil {
		log = slog.Default()
	}
	return &RoomService{
		rooms:   rooms,
		members: members,
		bus:     bus,
		log:     log,
	}
}

func (s *RoomService) CreateRoom(ctx context.Context, name string, creatorID uuid.UUID, creatorName string, isPrivate bool, password string) (*domain.Room, error) {
	const op = "service.room.create"
	log := s.log.With(slog.String("op", op))

	if name == "" {
		return nil, errors.New("room name is required")
	}
	if creatorID == uuid.Nil {
		return nil, errors.New("creator is required")
	}
	if isPrivate && password == "" {
		return nil, errors.New("private rooms require a password")
	}

	var room *domain.Room
	for attempt := 0; ; attempt++ {
		room = domain.NewRoom(name, creatorID, isPrivate, password)
		err := s.rooms.Create(ctx, room)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrRoomIDExists) && attempt < createRetries {
			continue
		}
		return nil, err
	}

	member := domain.NewMember(room.ID, creatorID, creatorName, true)
	if err := s.members.Add(ctx, member); err != nil {
		log.Error("failed to add creator membership", sl.Err(err))
		_ = s.rooms.Delete(ctx, room.ID)
		return nil, err
	}

	log.Info("room created",
		slog.String("room_id", room.ID),
		slog.String("creator", creatorID.String()),
		slog.Bool("private", isPrivate),
	)
	return room, nil
}

func (s *RoomService) GetRoom(ctx context.Context, roomID string, requesterID uuid.UUID) (*RoomWithMeta, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	return s.withMeta(ctx, room, requesterID)
}

func (s *RoomService) ListRooms(ctx context.Context, filter RoomFilter, search string, requesterID uuid.UUID) ([]*RoomWithMeta, error) {
	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-inactivityHorizon)
	rooms = lo.Filter(rooms, func(room *domain.Room, _ int) bool {
		return room.LastActivity().After(cutoff)
	})

	if search != "" {
		needle := strings.ToLower(search)
		rooms = lo.Filter(rooms, func(room *domain.Room, _ int) bool {
			return strings.Contains(strings.ToLower(room.Name), needle)
		})
	}

	result := make([]*RoomWithMeta, 0, len(rooms))
	for _, room := range rooms {
		meta, err := s.withMeta(ctx, room, requesterID)
		if err != nil {
			return nil, err
		}

		switch filter {
		case FilterPublic:
			if room.IsPrivate {
				continue
			}
		case FilterPrivate:
			if !room.IsPrivate {
				continue
			}
		case FilterJoined:
			if !meta.IsMember {
				continue
			}
		}
		result = append(result, meta)
	}
	return result, nil
}

func (s *RoomService) UpdatePlayback(ctx context.Context, roomID string, userID uuid.UUID, patch repository.PlaybackPatch) (*domain.Room, error) {
	const op = "service.room.updatePlayback"

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	allowed, err := s.canControl(ctx, room, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.log.Warn("playback write rejected",
			slog.String("op", op),
			slog.String("room_id", roomID),
			slog.String("user", userID.String()),
		)
		return nil, ErrNotAuthorized
	}

	return s.rooms.UpdatePlayback(ctx, roomID, patch)
}

func (s *RoomService) Join(ctx context.Context, roomID string, userID uuid.UUID, displayName string, password string) (*domain.Member, *domain.Room, error) {
	const op = "service.room.join"
	log := s.log.With(slog.String("op", op), slog.String("room_id", roomID))

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, nil, ErrRoomNotFound
		}
		return nil, nil, err
	}

	if !room.CheckPassword(password) {
		return nil, nil, ErrInvalidPassword
	}

	// The original creator reclaims adminship on rejoin; the interim
	// admin loses both the role and the control flag that came with it.
	if userID == room.CreatorID && room.AdminID != userID {
		prevAdmin := room.AdminID
		if err := s.rooms.SetAdmin(ctx, roomID, userID); err != nil {
			return nil, nil, err
		}
		room.AdminID = userID

		if err := s.members.SetControl(ctx, roomID, prevAdmin, false); err != nil && !errors.Is(err, repository.ErrMemberNotFound) {
			return nil, nil, err
		}

		s.bus.Publish(roomID, uuid.Nil, 0, &domain.PermissionUpdateEvent{UserID: prevAdmin, CanControl: false, IsAdmin: false})
		s.bus.Publish(roomID, uuid.Nil, 0, &domain.PermissionUpdateEvent{UserID: userID, CanControl: true, IsAdmin: true})
		log.Info("creator reclaimed adminship",
			slog.String("creator", userID.String()),
			slog.String("previous_admin", prevAdmin.String()),
		)
	}

	member, err := s.members.Get(ctx, roomID, userID)
	if err == nil {
		return member, room, nil
	}
	if !errors.Is(err, repository.ErrMemberNotFound) {
		return nil, nil, err
	}

	member = domain.NewMember(roomID, userID, displayName, userID == room.CreatorID)
	if err := s.members.Add(ctx, member); err != nil {
		return nil, nil, err
	}

	log.Info("member joined", slog.String("user", userID.String()))
	return member, room, nil
}

func (s *RoomService) Leave(ctx context.Context, roomID string, userID uuid.UUID) error {
	const op = "service.room.leave"
	log := s.log.With(slog.String("op", op), slog.String("room_id", roomID))

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	if err := s.members.Remove(ctx, roomID, userID); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return ErrNotMember
		}
		return err
	}

	remaining, err := s.members.ListByRoom(ctx, roomID)
	if err != nil {
		return err
	}

	if len(remaining) == 0 {
		log.Info("last member left, destroying room")
		return s.teardown(ctx, roomID)
	}

	if room.AdminID == userID {
		// Earliest-joined member inherits the room: deterministic, no
		// admin churn, rewards long-standing members.
		next := remaining[0]
		if err := s.rooms.SetAdmin(ctx, roomID, next.UserID); err != nil {
			return err
		}
		if err := s.members.SetControl(ctx, roomID, next.UserID, true); err != nil {
			return err
		}

		s.bus.Publish(roomID, uuid.Nil, 0, &domain.PermissionUpdateEvent{UserID: next.UserID, CanControl: true, IsAdmin: true})
		log.Info("admin handed off",
			slog.String("from", userID.String()),
			slog.String("to", next.UserID.String()),
		)
	}

	return nil
}

func (s *RoomService) Destroy(ctx context.Context, roomID string, userID uuid.UUID) error {
	const op = "service.room.destroy"

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	if room.AdminID != userID {
		return ErrNotAdmin
	}

	s.log.Info("room destroyed by admin",
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.String("admin", userID.String()),
	)
	return s.teardown(ctx, roomID)
}

func (s *RoomService) SetMemberControl(ctx context.Context, roomID string, adminID uuid.UUID, userID uuid.UUID, canControl bool) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	if room.AdminID != adminID {
		return ErrNotAdmin
	}
	if userID == adminID {
		return errors.New("admin control is implicit")
	}

	if err := s.members.SetControl(ctx, roomID, userID, canControl); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return ErrNotMember
		}
		return err
	}

	s.bus.Publish(roomID, uuid.Nil, 0, &domain.PermissionUpdateEvent{
		UserID:     userID,
		CanControl: canControl,
		IsAdmin:    false,
	})
	return nil
}

// teardown broadcasts the destroy event before deleting any rows, so no
// client ever reads a half-deleted room.
func (s *RoomService) teardown(ctx context.Context, roomID string) error {
	s.bus.Publish(roomID, uuid.Nil, 0, &domain.RoomDestroyedEvent{})

	if err := s.members.RemoveByRoom(ctx, roomID); err != nil {
		return err
	}
	if err := s.rooms.Delete(ctx, roomID); err != nil && !errors.Is(err, repository.ErrRoomNotFound) {
		return err
	}

	s.bus.CloseRoom(roomID)
	return nil
}

func (s *RoomService) canControl(ctx context.Context, room *domain.Room, userID uuid.UUID) (bool, error) {
	if room.AdminID == userID {
		return true, nil
	}

	member, err := s.members.Get(ctx, room.ID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return false, nil
		}
		return false, err
	}
	return member.CanControl, nil
}

func (s *RoomService) withMeta(ctx context.Context, room *domain.Room, requesterID uuid.UUID) (*RoomWithMeta, error) {
	count, err := s.members.Count(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	meta := &RoomWithMeta{
		Room:        room,
		MemberCount: count,
		OnlineCount: s.bus.OnlineCount(room.ID),
	}

	if requesterID != uuid.Nil {
		member, err := s.members.Get(ctx, room.ID, requesterID)
		switch {
		case err == nil:
			meta.IsMember = true
			meta.CanControl = member.CanControl || room.AdminID == requesterID
		case errors.Is(err, repository.ErrMemberNotFound):
		default:
			return nil, err
		}
	}
	return meta, nil
}

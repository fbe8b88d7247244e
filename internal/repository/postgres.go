package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/jamroom/internal/domain"
	"github.com/immxrtalbeast/jamroom/internal/repository/model"
	"gorm.io/gorm"
)

type PostgresRoomRepository struct {
	db *gorm.DB
}

func NewPostgresRoomRepository(db *gorm.DB) *PostgresRoomRepository {
	return &PostgresRoomRepository{db: db}
}

func (r *PostgresRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if room == nil {
		return errors.New("room is nil")
	}

	roomModel, err := toModelRoom(room)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(roomModel).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrRoomIDExists
		}
		return err
	}
	return nil
}

func (r *PostgresRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var room model.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	return toDomainRoom(&room)
}

func (r *PostgresRoomRepository) UpdatePlayback(ctx context.Context, id string, patch PlaybackPatch) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"last_sync_at": time.Now().UTC(),
	}
	if patch.CurrentSongID != nil {
		updates["current_song_id"] = *patch.CurrentSongID
	}
	if patch.CurrentSong != nil {
		data, err := json.Marshal(patch.CurrentSong)
		if err != nil {
			return nil, err
		}
		updates["current_song"] = data
	}
	if patch.IsPlaying != nil {
		updates["is_playing"] = *patch.IsPlaying
	}
	if patch.CurrentTimeSec != nil {
		updates["current_time_sec"] = *patch.CurrentTimeSec
	}

	res := r.db.WithContext(ctx).Model(&model.Room{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrRoomNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *PostgresRoomRepository) SetAdmin(ctx context.Context, id string, adminID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&model.Room{}).Where("id = ?", id).Update("admin_id", adminID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (r *PostgresRoomRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Delete(&model.Room{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (r *PostgresRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rooms []model.Room
	if err := r.db.WithContext(ctx).Find(&rooms).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.Room, 0, len(rooms))
	for i := range rooms {
		room, err := toDomainRoom(&rooms[i])
		if err != nil {
			return nil, err
		}
		result = append(result, room)
	}
	return result, nil
}

type PostgresMemberRepository struct {
	db *gorm.DB
}

func NewPostgresMemberRepository(db *gorm.DB) *PostgresMemberRepository {
	return &PostgresMemberRepository{db: db}
}

func (r *PostgresMemberRepository) Add(ctx context.Context, member *domain.Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if member == nil {
		return errors.New("member is nil")
	}

	if err := r.db.WithContext(ctx).Create(toModelMember(member)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrMemberExists
		}
		return err
	}
	return nil
}

func (r *PostgresMemberRepository) Get(ctx context.Context, roomID string, userID uuid.UUID) (*domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var member model.Member
	err := r.db.WithContext(ctx).First(&member, "room_id = ? AND user_id = ?", roomID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	return toDomainMember(&member), nil
}

func (r *PostgresMemberRepository) ListByRoom(ctx context.Context, roomID string) ([]*domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var members []model.Member
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}

	result := make([]*domain.Member, 0, len(members))
	for i := range members {
		result = append(result, toDomainMember(&members[i]))
	}
	return result, nil
}

func (r *PostgresMemberRepository) Remove(ctx context.Context, roomID string, userID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Delete(&model.Member{}, "room_id = ? AND user_id = ?", roomID, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *PostgresMemberRepository) RemoveByRoom(ctx context.Context, roomID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Delete(&model.Member{}, "room_id = ?", roomID).Error
}

func (r *PostgresMemberRepository) SetControl(ctx context.Context, roomID string, userID uuid.UUID, canControl bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&model.Member{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("can_control", canControl)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *PostgresMemberRepository) Count(ctx context.Context, roomID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&model.Member{}).Where("room_id = ?", roomID).Count(&count).Error
	return int(count), err
}

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	if err := r.db.WithContext(ctx).Create(toModelUser(user)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserEmailExists
		}
		return err
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user model.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return toDomainUser(&user), nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	userModel := toModelUser(user)

	updateData := map[string]any{
		"name":       userModel.Name,
		"is_guest":   userModel.IsGuest,
		"updated_at": userModel.UpdatedAt,
	}

	if userModel.Email == nil {
		updateData["email"] = gorm.Expr("NULL")
	} else {
		updateData["email"] = userModel.Email
	}

	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userModel.ID).Updates(updateData)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrUserEmailExists
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func toModelRoom(room *domain.Room) (*model.Room, error) {
	var songData []byte
	if room.CurrentSong != nil {
		data, err := json.Marshal(room.CurrentSong)
		if err != nil {
			return nil, err
		}
		songData = data
	}

	var lastSyncAt *time.Time
	if !room.LastSyncAt.IsZero() {
		t := room.LastSyncAt.UTC()
		lastSyncAt = &t
	}

	return &model.Room{
		ID:             room.ID,
		Name:           room.Name,
		AdminID:        room.AdminID,
		CreatorID:      room.CreatorID,
		IsPrivate:      room.IsPrivate,
		Password:       room.Password,
		CurrentSongID:  room.CurrentSongID,
		CurrentSong:    songData,
		IsPlaying:      room.IsPlaying,
		CurrentTimeSec: room.CurrentTimeSec,
		LastSyncAt:     lastSyncAt,
		CreatedAt:      room.CreatedAt.UTC(),
	}, nil
}

func toDomainRoom(room *model.Room) (*domain.Room, error) {
	var song *domain.Song
	if len(room.CurrentSong) > 0 {
		song = &domain.Song{}
		if err := json.Unmarshal(room.CurrentSong, song); err != nil {
			return nil, err
		}
	}

	var lastSyncAt time.Time
	if room.LastSyncAt != nil {
		lastSyncAt = room.LastSyncAt.UTC()
	}

	return &domain.Room{
		ID:             room.ID,
		Name:           room.Name,
		AdminID:        room.AdminID,
		CreatorID:      room.CreatorID,
		IsPrivate:      room.IsPrivate,
		Password:       room.Password,
		CurrentSongID:  room.CurrentSongID,
		CurrentSong:    song,
		IsPlaying:      room.IsPlaying,
		CurrentTimeSec: room.CurrentTimeSec,
		LastSyncAt:     lastSyncAt,
		CreatedAt:      room.CreatedAt.UTC(),
	}, nil
}

func toModelMember(member *domain.Member) *model.Member {
	return &model.Member{
		RoomID:      member.RoomID,
		UserID:      member.UserID,
		DisplayName: member.DisplayName,
		CanControl:  member.CanControl,
		JoinedAt:    member.JoinedAt.UTC(),
	}
}

func toDomainMember(member *model.Member) *domain.Member {
	return &domain.Member{
		RoomID:      member.RoomID,
		UserID:      member.UserID,
		DisplayName: member.DisplayName,
		CanControl:  member.CanControl,
		JoinedAt:    member.JoinedAt.UTC(),
	}
}

func toModelUser(user *domain.User) *model.User {
	var email *string
	if user.Email != "" {
		e := user.Email
		email = &e
	}
	return &model.User{
		ID:        user.ID,
		Name:      user.Name,
		Email:     email,
		IsGuest:   user.IsGuest,
		CreatedAt: user.CreatedAt.UTC(),
		UpdatedAt: user.UpdatedAt.UTC(),
	}
}

func toDomainUser(user *model.User) *domain.User {
	email := ""
	if user.Email != nil {
		email = *user.Email
	}

	return &domain.User{
		ID:        user.ID,
		Name:      user.Name,
		Email:     email,
		IsGuest:   user.IsGuest,
		CreatedAt: user.CreatedAt.UTC(),
		UpdatedAt: user.UpdatedAt.UTC(),
	}
}

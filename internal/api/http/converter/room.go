package converter

import (
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/jamroom/internal/domain"
	"github.com/immxrtalbeast/jamroom/internal/service"
)

// RoomResponse never carries the password, only whether one is required.
type RoomResponse struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	AdminID        uuid.UUID    `json:"admin_id"`
	CreatorID      uuid.UUID    `json:"creator_id"`
	IsPrivate      bool         `json:"is_private"`
	CurrentSong    *domain.Song `json:"current_song,omitempty"`
	IsPlaying      bool         `json:"is_playing"`
	CurrentTimeSec float64      `json:"current_time_sec"`
	MemberCount    int          `json:"member_count"`
	OnlineCount    int          `json:"online_count"`
	IsMember       bool         `json:"is_member"`
	CanControl     bool         `json:"can_control"`
	LastSyncAt     *time.Time   `json:"last_sync_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

type MemberResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	CanControl  bool      `json:"can_control"`
	JoinedAt    time.Time `json:"joined_at"`
}

func RoomToApi(meta *service.RoomWithMeta) *RoomResponse {
	r := meta.Room
	resp := &RoomResponse{
		ID:             r.ID,
		Name:           r.Name,
		AdminID:        r.AdminID,
		CreatorID:      r.CreatorID,
		IsPrivate:      r.IsPrivate,
		CurrentSong:    r.CurrentSong,
		IsPlaying:      r.IsPlaying,
		CurrentTimeSec: r.CurrentTimeSec,
		MemberCount:    meta.MemberCount,
		OnlineCount:    meta.OnlineCount,
		IsMember:       meta.IsMember,
		CanControl:     meta.CanControl,
		CreatedAt:      r.CreatedAt,
	}
	if !r.LastSyncAt.IsZero() {
		t := r.LastSyncAt
		resp.LastSyncAt = &t
	}
	return resp
}

func MemberToApi(m *domain.Member) *MemberResponse {
	return &MemberResponse{
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		CanControl:  m.CanControl,
		JoinedAt:    m.JoinedAt,
	}
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Member is one (room, user) membership row. CanControl marks users the
// admin delegated playback control to; the admin itself is privileged
// implicitly and needs no flag.
type Member struct {
	RoomID      string
	UserID      uuid.UUID
	DisplayName string
	CanControl  bool
	JoinedAt    time.Time
}

func NewMember(roomID string, userID uuid.UUID, displayName string, canControl bool) *Member {
	return &Member{
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: displayName,
		CanControl:  canControl,
		JoinedAt:    time.Now().UTC(),
	}
}

package model

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	ID             string    `gorm:"size:16;primaryKey"`
	Name           string    `gorm:"size:255;not null"`
	AdminID        uuid.UUID `gorm:"type:uuid;not null"`
	CreatorID      uuid.UUID `gorm:"type:uuid;not null"`
	IsPrivate      bool      `gorm:"not null"`
	Password       string    `gorm:"size:255"`
	CurrentSongID  string    `gorm:"size:64"`
	CurrentSong    []byte    `gorm:"type:jsonb"`
	IsPlaying      bool      `gorm:"not null"`
	CurrentTimeSec float64   `gorm:"not null;default:0"`
	LastSyncAt     *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	Members        []Member  `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}

type Member struct {
	RoomID      string    `gorm:"size:16;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	DisplayName string    `gorm:"size:255;not null"`
	CanControl  bool      `gorm:"not null"`
	JoinedAt    time.Time `gorm:"not null;index"`
}

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:255;not null"`
	Email     *string   `gorm:"size:255;uniqueIndex:idx_users_email,where:email IS NOT NULL"`
	IsGuest   bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

package domain

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const roomIDLength = 8

// Alphabet excludes visually confusable characters (0/O, 1/l/I).
const roomIDAlphabet = "23456789abcdefghjkmnpqrstuvwxyz"

// Room is the authoritative shared-playback state of one listening room.
// AdminID and CreatorID are distinct on purpose: adminship can be handed
// off when the admin leaves, and the creator reclaims it on rejoin.
type Room struct {
	ID             string
	Name           string
	AdminID        uuid.UUID
	CreatorID      uuid.UUID
	IsPrivate      bool
	Password       string
	CurrentSongID  string
	CurrentSong    *Song
	IsPlaying      bool
	CurrentTimeSec float64
	LastSyncAt     time.Time
	CreatedAt      time.Time
}

// NewRoom constructs a room with a generated short id. The creator is the
// initial admin.
func NewRoom(name string, creator uuid.UUID, isPrivate bool, password string) *Room {
	return &Room{
		ID:        GenerateRoomID(),
		Name:      name,
		AdminID:   creator,
		CreatorID: creator,
		IsPrivate: isPrivate,
		Password:  password,
		CreatedAt: time.Now().UTC(),
	}
}

// GenerateRoomID returns an 8-character URL-safe token.
func GenerateRoomID() string {
	buf := make([]byte, roomIDLength)
	max := big.NewInt(int64(len(roomIDAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand never fails on supported platforms
			panic(err)
		}
		buf[i] = roomIDAlphabet[n.Int64()]
	}
	return string(buf)
}

// CheckPassword reports whether the supplied password matches. Public
// rooms accept anything.
func (r *Room) CheckPassword(password string) bool {
	if !r.IsPrivate {
		return true
	}
	return r.Password == password
}

// LastActivity is the timestamp used for the inactivity horizon: the last
// sync if the room ever played, otherwise its creation time.
func (r *Room) LastActivity() time.Time {
	if r.LastSyncAt.IsZero() {
		return r.CreatedAt
	}
	return r.LastSyncAt
}

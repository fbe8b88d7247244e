package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGenerateRoomID(t *testing.T) {
	req := require.New(t)

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := GenerateRoomID()
		req.Len(id, 8)
		for _, ch := range id {
			req.True(strings.ContainsRune(roomIDAlphabet, ch), "unexpected character %q in %q", ch, id)
		}
		seen[id] = struct{}{}
	}
	req.Greater(len(seen), 95, "ids collide far too often")
}

func TestNewRoom_CreatorIsAdmin(t *testing.T) {
	req := require.New(t)

	creator := uuid.New()
	room := NewRoom("friday vibes", creator, true, "hunter2")

	req.Equal(creator, room.AdminID)
	req.Equal(creator, room.CreatorID)
	req.True(room.IsPrivate)
	req.False(room.IsPlaying)
	req.NotEmpty(room.ID)
}

func TestRoom_CheckPassword(t *testing.T) {
	req := require.New(t)

	private := NewRoom("private", uuid.New(), true, "secret")
	req.True(private.CheckPassword("secret"))
	req.False(private.CheckPassword("wrong"))
	req.False(private.CheckPassword(""))

	public := NewRoom("public", uuid.New(), false, "")
	req.True(public.CheckPassword(""))
	req.True(public.CheckPassword("anything"))
}

func TestRoom_LastActivity(t *testing.T) {
	req := require.New(t)

	room := NewRoom("quiet", uuid.New(), false, "")
	req.Equal(room.CreatedAt, room.LastActivity())

	synced := time.Now().UTC().Add(time.Hour)
	room.LastSyncAt = synced
	req.Equal(synced, room.LastActivity())
}

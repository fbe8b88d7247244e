package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/jamroom/internal/bus"
	"github.com/immxrtalbeast/jamroom/internal/domain"
	"github.com/immxrtalbeast/jamroom/internal/repository"
	"github.com/stretchr/testify/require"
)

func newTestRoomService() (*RoomService, *bus.Hub) {
	hub := bus.NewHub(nil)
	svc := NewRoomService(
		repository.NewInMemoryRoomRepository(),
		repository.NewInMemoryMemberRepository(),
		hub,
		nil,
	)
	return svc, hub
}

func TestRoomService_CreateRoom(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _ := newTestRoomService()

	creator := uuid.New()
	room, err := svc.CreateRoom(ctx, "friday", creator, "alice", false, "")
	req.NoError(err)
	req.Equal(creator, room.AdminID)

	meta, err := svc.GetRoom(ctx, room.ID, creator)
	req.NoError(err)
	req.Equal(1, meta.MemberCount)
	req.True(meta.IsMember)
	req.True(meta.CanControl)
}

func TestRoomService_CreateRoom_PrivateNeedsPassword(t *testing.T) {
	req := require.New(t)
	svc, _ := newTestRoomService()

	_, err := svc.CreateRoom(context.Background(), "secret", uuid.New(), "alice", true, "")
	req.Error(err)
}

func TestRoomService_Join_WrongPassword(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _ := newTestRoomService()

	room, err := svc.CreateRoom(ctx, "secret", uuid.New(), "alice", true, "hunter2")
	req.NoError(err)

	_, _, err = svc.Join(ctx, room.ID, uuid.New(), "bob", "wrong")
	req.ErrorIs(err, ErrInvalidPassword)

	member, _, err := svc.Join(ctx, room.ID, uuid.New(), "carol", "hunter2")
	req.NoError(err)
	req.False(member.CanControl)
}

func TestRoomService_Join_Idempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _ := newTestRoomService()

	creator := uuid.New()
	room, err := svc.CreateRoom(ctx, "room", creator, "alice", false, "")
	req.NoError(err)

	bob := uuid.New()
	_, _, err = svc.Join(ctx, room.ID, bob, "bob", "")
	req.NoError(err)
	_, _, err = svc.Join(ctx, room.ID, bob, "bob", "")
	req.NoError(err)

	meta, err := svc.GetRoom(ctx, room.ID, bob)
	req.NoError(err)
	req.Equal(2, meta.MemberCount)
}

func TestRoomService_UpdatePlayback_Authorization(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _ := newTestRoomService()

	admin := uuid.New()
	room, err := svc.CreateRoom(ctx, "room", admin, "alice", false, "")
	req.NoError(err)

	bob := uuid.New()
	_, _, err = svc.Join(ctx, room.ID, bob, "bob", "")
	req.NoError(err)

	playing := true
	_, err = svc.UpdatePlayback(ctx, room.ID, bob, repository.PlaybackPatch{IsPlaying: &playing})
	req.ErrorIs(err, ErrNotAuthorized)

	updated, err := svc.UpdatePlayback(ctx, room.ID, admin, repository.PlaybackPatch{IsPlaying: &playing})
	req.NoError(err)
	req.True(updated.IsPlaying)

	// A granted member may write; a revoked one may not again.
	req.NoError(svc.SetMemberControl(ctx, room.ID, admin, bob, true))
	_, err = svc.UpdatePlayback(ctx, room.ID, bob, repository.PlaybackPatch{IsPlaying: &playing})
	req.NoError(err)

	req.NoError(svc.SetMemberControl(ctx, room.ID, admin, bob, false))
	_, err = svc.UpdatePlayback(ctx, room.ID, bob, repository.PlaybackPatch{IsPlaying: &playing})
	req.ErrorIs(err, ErrNotAuthorized)
}

func TestRoomService_SetMemberControl_Guards(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _ := newTestRoomService()

	admin := uuid.New()
	room, err := svc.CreateRoom(ctx, "room", admin, "alice", false, "")
	req.NoError(err)

	bob := uuid.New()
	_, _, err = svc.Join(ctx, room.ID, bob, "bob", "")
	req.NoError(err)

	req.ErrorIs(svc.SetMemberControl(ctx, room.ID, bob, bob, true), ErrNotAdmin)
	req.Error(svc.SetMemberControl(ctx, room.ID, admin, admin, true))
	req.ErrorIs(svc.SetMemberControl(ctx, room.ID, admin, uuid.New(), true), ErrNotMember)
}

func TestRoomService_Leave_HandsOffToEarliestJoined(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _ := newTestRoomService()

	admin := uuid.New()
	room, err := svc.CreateRoom(ctx, "room", admin, "alice", false, "")
	req.NoError(err)

	bob := uuid.New()
	_, _, err = svc.Join(ctx, room.ID, bob, "bob", "")
	req.NoError(err)
	time.Sleep(5 * time.Millisecond)
	carol := uuid.New()
	_, _, err = svc.Join(ctx, room.ID, carol, "carol", "")
	req.NoError(err)

	req.NoError(svc.Leave(ctx, room.ID, admin))

	meta, err := svc.GetRoom(ctx, room.ID, bob)
	req.NoError(err)
	req.Equal(bob, meta.Room.AdminID, "earliest remaining member inherits the room")
	req.True(meta.CanControl)
}

func TestRoomService_Leave_LastMemberDestroysRoom(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _ := newTestRoomService()

	admin := uuid.New()
	room, err := svc.CreateRoom(ctx, "room", admin, "alice", false, "")
	req.NoError(err)

	req.NoError(svc.Leave(ctx, room.ID, admin))

	_, err = svc.GetRoom(ctx, room.ID, admin)
	req.ErrorIs(err, ErrRoomNotFound)
}

func TestRoomService_Destroy(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, hub := newTestRoomService()

	admin := uuid.New()
	room, err := svc.CreateRoom(ctx, "room", admin, "alice", false, "")
	req.NoError(err)

	bob := uuid.New()
	_, _, err = svc.Join(ctx, room.ID, bob, "bob", "")
	req.NoError(err)
	sub := hub.Subscribe(room.ID, bob)

	req.ErrorIs(svc.Destroy(ctx, room.ID, bob), ErrNotAdmin)
	req.NoError(svc.Destroy(ctx, room.ID, admin))

	// The destroy event went out before the rows were deleted.
	select {
	case msg := <-sub.C:
		req.Equal(domain.EventRoomDestroyed, msg.Event.Kind())
	case <-time.After(time.Second):
		t.Fatal("no destroy broadcast")
	}

	_, err = svc.GetRoom(ctx, room.ID, admin)
	req.ErrorIs(err, ErrRoomNotFound)
}

func TestRoomService_CreatorReclaimsAdminOnRejoin(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _ := newTestRoomService()

	creator := uuid.New()
	room, err := svc.CreateRoom(ctx, "room", creator, "alice", false, "")
	req.NoError(err)

	bob := uuid.New()
	_, _, err = svc.Join(ctx, room.ID, bob, "bob", "")
	req.NoError(err)

	req.NoError(svc.Leave(ctx, room.ID, creator))
	meta, err := svc.GetRoom(ctx, room.ID, bob)
	req.NoError(err)
	req.Equal(bob, meta.Room.AdminID)

	member, rejoined, err := svc.Join(ctx, room.ID, creator, "alice", "")
	req.NoError(err)
	req.Equal(creator, rejoined.AdminID)
	req.True(member.CanControl)

	// The interim admin lost both the role and the control flag.
	meta, err = svc.GetRoom(ctx, room.ID, bob)
	req.NoError(err)
	req.Equal(creator, meta.Room.AdminID)
	req.False(meta.CanControl)
}

func TestRoomService_ListRooms(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _ := newTestRoomService()

	alice := uuid.New()
	_, err := svc.CreateRoom(ctx, "public jazz", alice, "alice", false, "")
	req.NoError(err)
	private, err := svc.CreateRoom(ctx, "private rock", alice, "alice", true, "pw")
	req.NoError(err)

	bob := uuid.New()
	all, err := svc.ListRooms(ctx, FilterAll, "", bob)
	req.NoError(err)
	req.Len(all, 2)

	public, err := svc.ListRooms(ctx, FilterPublic, "", bob)
	req.NoError(err)
	req.Len(public, 1)
	req.False(public[0].Room.IsPrivate)

	privates, err := svc.ListRooms(ctx, FilterPrivate, "", bob)
	req.NoError(err)
	req.Len(privates, 1)
	req.Equal(private.ID, privates[0].Room.ID)

	joined, err := svc.ListRooms(ctx, FilterJoined, "", bob)
	req.NoError(err)
	req.Empty(joined)

	_, _, err = svc.Join(ctx, private.ID, bob, "bob", "pw")
	req.NoError(err)
	joined, err = svc.ListRooms(ctx, FilterJoined, "", bob)
	req.NoError(err)
	req.Len(joined, 1)

	byName, err := svc.ListRooms(ctx, FilterAll, "JAZZ", bob)
	req.NoError(err)
	req.Len(byName, 1)
	req.Equal("public jazz", byName[0].Room.Name)
}

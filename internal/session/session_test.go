package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/jamroom/internal/bus"
	"github.com/immxrtalbeast/jamroom/internal/domain"
	"github.com/immxrtalbeast/jamroom/internal/repository"
	"github.com/immxrtalbeast/jamroom/internal/service"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeSink struct {
	mu      sync.Mutex
	loaded  string
	playing bool
	pos     float64
}

func (f *fakeSink) Load(song domain.Song) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = song.ID
	f.pos = 0
}

func (f *fakeSink) Play() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = true
}

func (f *fakeSink) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
}

func (f *fakeSink) Seek(positionSec float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = positionSec
}

func (f *fakeSink) Position() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *fakeSink) setPos(pos float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = pos
}

func (f *fakeSink) loadedSong() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

func (f *fakeSink) isPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

type fakeCatalog struct {
	mu          sync.Mutex
	suggestions map[string][]domain.Song
}

func (f *fakeCatalog) Suggestions(_ context.Context, songID string, _ int) ([]domain.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suggestions[songID], nil
}

type testEnv struct {
	svc *service.RoomService
	hub *bus.Hub
	cat *fakeCatalog
}

func newTestEnv() *testEnv {
	hub := bus.NewHub(nil)
	svc := service.NewRoomService(
		repository.NewInMemoryRoomRepository(),
		repository.NewInMemoryMemberRepository(),
		hub,
		nil,
	)
	return &testEnv{svc: svc, hub: hub, cat: &fakeCatalog{suggestions: map[string][]domain.Song{}}}
}

func fastConfig() Config {
	return Config{
		TickInterval: 20 * time.Millisecond,
		SettleDelay:  10 * time.Millisecond,
	}
}

func (e *testEnv) newSession(name string) (*Session, *fakeSink, uuid.UUID) {
	sink := &fakeSink{}
	id := uuid.New()
	sess := New(e.svc, e.hub, e.cat, sink, id, name, fastConfig(), nil)
	return sess, sink, id
}

func song(id string) domain.Song {
	return domain.Song{ID: id, Name: "song " + id, Artists: []string{"tester"}}
}

func TestSession_EnterLoadsRoomState(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv()

	alice, _, aliceID := env.newSession("alice")
	room, err := env.svc.CreateRoom(ctx, "room", aliceID, "alice", false, "")
	req.NoError(err)
	req.NoError(alice.Enter(ctx, room.ID, ""))
	defer alice.Dispose()

	req.Equal(StateSynced, alice.State())
	req.True(alice.IsAdmin())
	req.True(alice.RequestChangeSong(ctx, song("s1")))
	req.True(alice.RequestSeek(ctx, 33))

	// A late joiner picks the current song and position up from the
	// registry, before any event arrives.
	bob, bobSink, _ := env.newSession("bob")
	req.NoError(bob.Enter(ctx, room.ID, ""))
	defer bob.Dispose()

	req.Equal("s1", bobSink.loadedSong())
	req.True(bobSink.isPlaying())
	req.Equal(33.0, bobSink.Position())
	req.False(bob.IsAdmin())
	req.False(bob.CanControl())
}

func TestSession_EnterWrongPassword(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv()

	alice, _, aliceID := env.newSession("alice")
	room, err := env.svc.CreateRoom(ctx, "room", aliceID, "alice", true, "pw")
	req.NoError(err)
	req.NoError(alice.Enter(ctx, room.ID, "pw"))
	defer alice.Dispose()

	bob, _, _ := env.newSession("bob")
	err = bob.Enter(ctx, room.ID, "wrong")
	req.ErrorIs(err, service.ErrInvalidPassword)
	req.Equal(StateDisconnected, bob.State())
}

func TestSession_StateSyncAnswersJoiner(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv()

	alice, _, aliceID := env.newSession("alice")
	room, err := env.svc.CreateRoom(ctx, "room", aliceID, "alice", false, "")
	req.NoError(err)
	req.NoError(alice.Enter(ctx, room.ID, ""))
	defer alice.Dispose()

	req.True(alice.RequestChangeSong(ctx, song("s1")))
	req.True(alice.Enqueue(ctx, song("s2")))

	bob, _, _ := env.newSession("bob")
	req.NoError(bob.Enter(ctx, room.ID, ""))
	defer bob.Dispose()

	// After the settle delay bob asks for state and only the admin
	// answers, carrying the queue along.
	req.Eventually(func() bool {
		queue := bob.Queue()
		return len(queue) == 1 && queue[0].ID == "s2"
	}, waitFor, tick)
}

func TestSession_ChangeSongPropagates(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv()

	alice, _, aliceID := env.newSession("alice")
	room, err := env.svc.CreateRoom(ctx, "room", aliceID, "alice", false, "")
	req.NoError(err)
	req.NoError(alice.Enter(ctx, room.ID, ""))
	defer alice.Dispose()

	bob, bobSink, _ := env.newSession("bob")
	req.NoError(bob.Enter(ctx, room.ID, ""))
	defer bob.Dispose()

	req.True(alice.RequestChangeSong(ctx, song("s1")))
	req.Eventually(func() bool {
		return bobSink.loadedSong() == "s1" && bobSink.isPlaying()
	}, waitFor, tick)

	// The registry row carries the change for clients joining later.
	meta, err := env.svc.GetRoom(ctx, room.ID, aliceID)
	req.NoError(err)
	req.Equal("s1", meta.Room.CurrentSongID)
	req.True(meta.Room.IsPlaying)

	req.True(alice.RequestChangeSong(ctx, song("s2")))
	req.Eventually(func() bool { return bobSink.loadedSong() == "s2" }, waitFor, tick)

	// Both replicas agree the previous song is at the head of history.
	aliceHistory := alice.History()
	req.NotEmpty(aliceHistory)
	req.Equal("s1", aliceHistory[0].ID)
	req.Eventually(func() bool {
		h := bob.History()
		return len(h) > 0 && h[0].ID == "s1"
	}, waitFor, tick)
}

func clockOf(s *Session) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

func TestSession_ListenerCannotControl(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv()

	alice, aliceSink, aliceID := env.newSession("alice")
	room, err := env.svc.CreateRoom(ctx, "room", aliceID, "alice", false, "")
	req.NoError(err)
	req.NoError(alice.Enter(ctx, room.ID, ""))
	defer alice.Dispose()
	req.True(alice.RequestChangeSong(ctx, song("s1")))

	bob, _, bobID := env.newSession("bob")
	req.NoError(bob.Enter(ctx, room.ID, ""))
	defer bob.Dispose()

	req.False(bob.RequestPlay(ctx, 0))
	req.False(bob.RequestSeek(ctx, 50))
	req.False(bob.RequestChangeSong(ctx, song("s2")))
	time.Sleep(50 * time.Millisecond)
	req.Equal("s1", aliceSink.loadedSong(), "a rejected request must not leak an event")

	// A delegated controller's requests go through, once its clock has
	// caught up with the room's traffic.
	req.NoError(env.svc.SetMemberControl(ctx, room.ID, aliceID, bobID, true))
	req.Eventually(func() bool { return bob.CanControl() && clockOf(bob) > 0 }, waitFor, tick)

	req.True(bob.RequestPause(ctx, 10))
	req.Eventually(func() bool { return !aliceSink.isPlaying() }, waitFor, tick)

	// Revocation closes the door again.
	req.NoError(env.svc.SetMemberControl(ctx, room.ID, aliceID, bobID, false))
	req.Eventually(func() bool { return !bob.CanControl() }, waitFor, tick)
	req.False(bob.RequestPlay(ctx, 12))
}

func TestSession_TickDrift(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv()

	alice, aliceSink, aliceID := env.newSession("alice")
	room, err := env.svc.CreateRoom(ctx, "room", aliceID, "alice", false, "")
	req.NoError(err)
	req.NoError(alice.Enter(ctx, room.ID, ""))
	defer alice.Dispose()
	req.True(alice.RequestChangeSong(ctx, song("s1")))

	bob, bobSink, bobID := env.newSession("bob")
	req.NoError(bob.Enter(ctx, room.ID, ""))
	defer bob.Dispose()
	req.Eventually(func() bool { return bobSink.loadedSong() == "s1" }, waitFor, tick)

	// Drift beyond the listener tolerance snaps to the admin's position.
	aliceSink.setPos(30)
	bobSink.setPos(10)
	req.Eventually(func() bool { return bobSink.Position() == 30 }, waitFor, tick)

	// Drift within the listener tolerance is left alone, so ticks do not
	// jitter a healthy playback position.
	bobSink.setPos(29.5)
	time.Sleep(150 * time.Millisecond)
	req.Equal(29.5, bobSink.Position())

	// A controller gets a wider margin: two seconds of drift survive.
	req.NoError(env.svc.SetMemberControl(ctx, room.ID, aliceID, bobID, true))
	req.Eventually(func() bool { return bob.CanControl() }, waitFor, tick)

	bobSink.setPos(28)
	time.Sleep(150 * time.Millisecond)
	req.Equal(28.0, bobSink.Position())

	// Past the controller tolerance it snaps anyway.
	bobSink.setPos(20)
	req.Eventually(func() bool { return bobSink.Position() == 30 }, waitFor, tick)
}

func TestSession_StaleEventsIgnored(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv()

	alice, aliceSink, aliceID := env.newSession("alice")
	room, err := env.svc.CreateRoom(ctx, "room", aliceID, "alice", false, "")
	req.NoError(err)
	req.NoError(alice.Enter(ctx, room.ID, ""))
	defer alice.Dispose()

	req.True(alice.RequestChangeSong(ctx, song("s1")))
	req.True(alice.RequestSeek(ctx, 100))

	// A peer that had not yet seen the seek broadcasts with an old clock;
	// the seek must win locally.
	ghost := uuid.New()
	env.hub.Publish(room.ID, ghost, 1, &domain.SeekEvent{PositionSec: 5})
	time.Sleep(100 * time.Millisecond)
	req.Equal(100.0, aliceSink.Position())

	// An event causally after the seek is applied.
	env.hub.Publish(room.ID, ghost, 9999, &domain.SeekEvent{PositionSec: 55})
	req.Eventually(func() bool { return aliceSink.Position() == 55 }, waitFor, tick)
}

func TestSession_AnnounceSeqsAreMonotonic(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv()

	alice, _, aliceID := env.newSession("alice")
	room, err := env.svc.CreateRoom(ctx, "room", aliceID, "alice", false, "")
	req.NoError(err)
	req.NoError(alice.Enter(ctx, room.ID, ""))
	defer alice.Dispose()

	observer := env.hub.Subscribe(room.ID, uuid.New())
	defer observer.Close()

	bob, _, bobID := env.newSession("bob")
	req.NoError(bob.Enter(ctx, room.ID, ""))
	defer bob.Dispose()

	// A joiner announces itself and then asks for state; each event must
	// carry its own sequence number, strictly increasing per sender.
	var joinSeq, syncSeq uint64
	deadline := time.After(waitFor)
	for joinSeq == 0 || syncSeq == 0 {
		select {
		case msg := <-observer.C:
			if msg.SenderID != bobID {
				continue
			}
			switch msg.Event.(type) {
			case *domain.UserJoinedEvent:
				joinSeq = msg.Seq
			case *domain.RequestSyncEvent:
				syncSeq = msg.Seq
			}
		case <-deadline:
			t.Fatal("joiner announcements never arrived")
		}
	}
	req.Greater(syncSeq, joinSeq)
}

func TestSession_SkipNextAndPrev(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv()

	env.cat.suggestions["s1"] = []domain.Song{song("s2"), song("s3")}

	alice, aliceSink, aliceID := env.newSession("alice")
	room, err := env.svc.CreateRoom(ctx, "room", aliceID, "alice", false, "")
	req.NoError(err)
	req.NoError(alice.Enter(ctx, room.ID, ""))
	defer alice.Dispose()

	req.True(alice.RequestChangeSong(ctx, song("s1")))
	req.Eventually(func() bool { return len(alice.Queue()) == 2 }, waitFor, tick)

	req.True(alice.RequestSkipNext(ctx))
	req.Equal("s2", aliceSink.loadedSong())
	queue := alice.Queue()
	req.Len(queue, 1)
	req.Equal("s3", queue[0].ID)
	history := alice.History()
	req.NotEmpty(history)
	req.Equal("s1", history[0].ID)

	req.True(alice.RequestSkipPrev(ctx))
	req.Equal("s1", aliceSink.loadedSong())
	history = alice.History()
	req.NotEmpty(history)
	req.Equal("s2", history[0].ID)

	// The end-of-track callback behaves like a skip for controllers.
	alice.HandleEnded(ctx)
	req.Equal("s3", aliceSink.loadedSong())
}

func TestSession_ExitAndHandoff(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv()

	alice, _, aliceID := env.newSession("alice")
	room, err := env.svc.CreateRoom(ctx, "room", aliceID, "alice", false, "")
	req.NoError(err)
	req.NoError(alice.Enter(ctx, room.ID, ""))

	bob, _, bobID := env.newSession("bob")
	req.NoError(bob.Enter(ctx, room.ID, ""))
	defer bob.Dispose()

	req.NoError(alice.Exit(ctx))
	req.Equal(StateDisconnected, alice.State())
	req.NoError(alice.Exit(ctx), "second exit is a no-op")

	// Bob inherits the room and starts ticking as the new admin.
	req.Eventually(func() bool { return bob.IsAdmin() && bob.CanControl() }, waitFor, tick)

	meta, err := env.svc.GetRoom(ctx, room.ID, bobID)
	req.NoError(err)
	req.Equal(bobID, meta.Room.AdminID)
	req.Equal(1, meta.MemberCount)
}

func TestSession_DestroyDisconnectsEveryone(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv()

	alice, _, aliceID := env.newSession("alice")
	room, err := env.svc.CreateRoom(ctx, "room", aliceID, "alice", false, "")
	req.NoError(err)
	req.NoError(alice.Enter(ctx, room.ID, ""))

	bob, bobSink, _ := env.newSession("bob")
	req.NoError(bob.Enter(ctx, room.ID, ""))

	done := bob.Done()
	req.NoError(env.svc.Destroy(ctx, room.ID, aliceID))

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("bob never noticed the destroy")
	}
	req.Eventually(func() bool { return bob.State() == StateDisconnected }, waitFor, tick)
	req.Eventually(func() bool { return alice.State() == StateDisconnected }, waitFor, tick)
	req.False(bobSink.isPlaying())

	// Leaving after the destroy is a quiet no-op.
	req.NoError(bob.Exit(ctx))

	_, err = env.svc.GetRoom(ctx, room.ID, aliceID)
	req.ErrorIs(err, service.ErrRoomNotFound)
}

func TestSession_ReenterAfterExit(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newTestEnv()

	alice, _, aliceID := env.newSession("alice")
	room, err := env.svc.CreateRoom(ctx, "room", aliceID, "alice", false, "")
	req.NoError(err)

	req.NoError(alice.Enter(ctx, room.ID, ""))
	req.NoError(alice.Exit(ctx))

	// The room died with its last member; a fresh one works.
	room2, err := env.svc.CreateRoom(ctx, "room2", aliceID, "alice", false, "")
	req.NoError(err)
	req.NoError(alice.Enter(ctx, room2.ID, ""))
	defer alice.Dispose()
	req.Equal(StateSynced, alice.State())
	req.Equal(room2.ID, alice.RoomID())
}

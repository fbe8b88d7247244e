package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/jamroom/internal/bus"
	"github.com/immxrtalbeast/jamroom/internal/domain"
	"github.com/immxrtalbeast/jamroom/internal/repository"
	"github.com/immxrtalbeast/jamroom/internal/service"
	"github.com/immxrtalbeast/jamroom/lib/logger/sl"
)

var ErrNoUser = errors.New("session has no user")

// State is the session's connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateJoining
	StateSynced
)

func (s State) String() string {
	switch s {
	case StateJoining:
		return "joining"
	case StateSynced:
		return "synced"
	default:
		return "disconnected"
	}
}

// Session is one user's live connection to a room. It is disposable: a
// session joins exactly one room, and entering another room (or rejoining
// the same one) tears the current one down first. Local playback state is
// a replica; the registry row and the admin's periodic tick are the
// ground truth it converges to.
type Session struct {
	log      *slog.Logger
	registry Registry
	bus      Bus
	catalog  SuggestionSource
	sink     Sink
	cfg      Config

	userID      uuid.UUID
	displayName string

	mu         sync.Mutex
	gen        uint64
	state      State
	roomID     string
	isAdmin    bool
	canControl bool

	current  *domain.Song
	playing  bool
	position float64
	queue    []domain.Song
	history  []domain.Song

	// clock is a Lamport clock over this session's bus traffic.
	// lastIntent is the clock value of the last position mutation this
	// session issued itself; inbound position-bearing events at or below
	// it are causally stale and dropped.
	clock      uint64
	lastIntent uint64

	sub         *bus.Subscription
	settleTimer *time.Timer
	tickCancel  context.CancelFunc
	done        chan struct{}
}

func New(registry Registry, b Bus, catalog SuggestionSource, sink Sink, userID uuid.UUID, displayName string, cfg Config, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		log:         log.With(slog.String("user", userID.String())),
		registry:    registry,
		bus:         b,
		catalog:     catalog,
		sink:        sink,
		cfg:         cfg.withDefaults(),
		userID:      userID,
		displayName: displayName,
	}
}

// Enter joins the room and starts replicating its state. If the session
// is already in a room, that room is left first. The join announcement
// and sync request are deferred by the settle delay so the subscription
// is live before anyone answers.
func (s *Session) Enter(ctx context.Context, roomID string, password string) error {
	if s.userID == uuid.Nil {
		return ErrNoUser
	}

	s.mu.Lock()
	if s.state != StateDisconnected {
		prev := s.roomID
		s.clock++
		seq := s.clock
		s.teardownLocked(true)
		s.mu.Unlock()
		s.bus.Publish(prev, s.userID, seq, &domain.UserLeftEvent{UserID: s.userID})
		if err := s.registry.Leave(ctx, prev, s.userID); err != nil {
			s.log.Warn("leave before re-enter failed", slog.String("room_id", prev), sl.Err(err))
		}
		s.mu.Lock()
	}
	s.state = StateJoining
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	member, room, err := s.registry.Join(ctx, roomID, s.userID, s.displayName, password)
	if err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.state = StateDisconnected
		}
		s.mu.Unlock()
		return err
	}

	sub := s.bus.Subscribe(roomID, s.userID)
	s.bus.Track(roomID, s.userID, bus.PresenceMeta{UserID: s.userID, DisplayName: s.displayName})

	s.mu.Lock()
	s.roomID = roomID
	s.isAdmin = room.AdminID == s.userID
	s.canControl = member.CanControl || s.isAdmin
	s.current = room.CurrentSong
	s.playing = room.IsPlaying
	s.position = room.CurrentTimeSec
	s.queue = nil
	s.history = nil
	s.lastIntent = 0
	s.sub = sub
	s.done = make(chan struct{})
	s.state = StateSynced

	if s.current != nil {
		s.sink.Load(*s.current)
		s.sink.Seek(s.position)
		if s.playing {
			s.sink.Play()
		}
	}

	if s.isAdmin {
		s.startTickerLocked()
	}
	s.settleTimer = time.AfterFunc(s.cfg.SettleDelay, func() { s.announceJoin(gen) })
	s.mu.Unlock()

	go s.run(sub, gen)

	s.log.Info("entered room",
		slog.String("room_id", roomID),
		slog.Bool("admin", room.AdminID == s.userID),
	)
	return nil
}

// Exit leaves the current room and releases everything the session holds
// on it. Safe to call when already disconnected.
func (s *Session) Exit(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	roomID := s.roomID
	s.clock++
	seq := s.clock
	s.teardownLocked(true)
	s.mu.Unlock()

	s.bus.Publish(roomID, s.userID, seq, &domain.UserLeftEvent{UserID: s.userID})

	err := s.registry.Leave(ctx, roomID, s.userID)
	if err != nil && !errors.Is(err, service.ErrRoomNotFound) && !errors.Is(err, service.ErrNotMember) {
		return err
	}
	return nil
}

// Dispose is Exit for teardown paths that have no context or use for the
// error. A disposed session can Enter again.
func (s *Session) Dispose() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Exit(ctx); err != nil {
		s.log.Warn("dispose: leave failed", sl.Err(err))
	}
}

// Done returns a channel closed when the session disconnects, whether by
// Exit or because the room was destroyed under it. Nil before the first
// Enter.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// RequestPlay starts playback at the given position. Returns false when
// the session lacks control; no event leaves the client in that case.
func (s *Session) RequestPlay(ctx context.Context, positionSec float64) bool {
	s.mu.Lock()
	if !s.controllableLocked() {
		s.mu.Unlock()
		return false
	}
	roomID := s.roomID
	s.playing = true
	s.position = positionSec
	seq := s.nextIntentLocked()
	s.sink.Seek(positionSec)
	s.sink.Play()
	s.mu.Unlock()

	playing := true
	s.persistPlayback(ctx, roomID, repository.PlaybackPatch{IsPlaying: &playing, CurrentTimeSec: &positionSec})
	s.bus.Publish(roomID, s.userID, seq, &domain.PlayEvent{PositionSec: positionSec})
	return true
}

// RequestPause pauses playback, pinning peers to the given position so
// everyone resumes from the same spot.
func (s *Session) RequestPause(ctx context.Context, positionSec float64) bool {
	s.mu.Lock()
	if !s.controllableLocked() {
		s.mu.Unlock()
		return false
	}
	roomID := s.roomID
	s.playing = false
	s.position = positionSec
	seq := s.nextIntentLocked()
	s.sink.Pause()
	s.mu.Unlock()

	playing := false
	s.persistPlayback(ctx, roomID, repository.PlaybackPatch{IsPlaying: &playing, CurrentTimeSec: &positionSec})
	s.bus.Publish(roomID, s.userID, seq, &domain.PauseEvent{PositionSec: positionSec})
	return true
}

func (s *Session) RequestSeek(ctx context.Context, positionSec float64) bool {
	s.mu.Lock()
	if !s.controllableLocked() {
		s.mu.Unlock()
		return false
	}
	roomID := s.roomID
	s.position = positionSec
	seq := s.nextIntentLocked()
	s.sink.Seek(positionSec)
	s.mu.Unlock()

	s.persistPlayback(ctx, roomID, repository.PlaybackPatch{CurrentTimeSec: &positionSec})
	s.bus.Publish(roomID, s.userID, seq, &domain.SeekEvent{PositionSec: positionSec})
	return true
}

// RequestChangeSong switches the room to a new song: the outgoing song
// moves to the head of history, the new one is pulled out of the queue if
// it was there, and playback restarts from zero.
func (s *Session) RequestChangeSong(ctx context.Context, song domain.Song) bool {
	s.mu.Lock()
	if !s.controllableLocked() {
		s.mu.Unlock()
		return false
	}
	roomID := s.roomID
	if s.current != nil {
		s.history = pushHistory(s.history, *s.current, s.cfg.HistoryCap)
	}
	s.queue = removeFromQueue(s.queue, song.ID)
	cur := song
	s.current = &cur
	s.playing = true
	s.position = 0
	seq := s.nextIntentLocked()
	s.sink.Load(song)
	s.sink.Play()
	s.mu.Unlock()

	playing := true
	zero := 0.0
	s.persistPlayback(ctx, roomID, repository.PlaybackPatch{
		CurrentSongID:  &song.ID,
		CurrentSong:    &song,
		IsPlaying:      &playing,
		CurrentTimeSec: &zero,
	})
	s.bus.Publish(roomID, s.userID, seq, &domain.ChangeSongEvent{Song: song})

	go s.refillQueue(song.ID)
	return true
}

// RequestSkipNext plays the head of the queue, if any.
func (s *Session) RequestSkipNext(ctx context.Context) bool {
	s.mu.Lock()
	if !s.controllableLocked() || len(s.queue) == 0 {
		s.mu.Unlock()
		return false
	}
	roomID := s.roomID
	next := s.queue[0]
	s.queue = s.queue[1:]
	s.clock++
	seq := s.clock
	s.mu.Unlock()

	s.bus.Publish(roomID, s.userID, seq, &domain.SkipNextEvent{})
	return s.RequestChangeSong(ctx, next)
}

// RequestSkipPrev replays the most recently played song.
func (s *Session) RequestSkipPrev(ctx context.Context) bool {
	s.mu.Lock()
	if !s.controllableLocked() || len(s.history) == 0 {
		s.mu.Unlock()
		return false
	}
	roomID := s.roomID
	prev := s.history[0]
	s.history = s.history[1:]
	s.clock++
	seq := s.clock
	s.mu.Unlock()

	s.bus.Publish(roomID, s.userID, seq, &domain.SkipPrevEvent{})
	return s.RequestChangeSong(ctx, prev)
}

// Enqueue appends a song to the shared queue. Any member may enqueue.
func (s *Session) Enqueue(ctx context.Context, song domain.Song) bool {
	s.mu.Lock()
	if s.state != StateSynced {
		s.mu.Unlock()
		return false
	}
	roomID := s.roomID
	s.queue = mergeSuggestions(s.queue, []domain.Song{song}, s.current, nil)
	queue := append([]domain.Song(nil), s.queue...)
	s.clock++
	seq := s.clock
	s.mu.Unlock()

	s.bus.Publish(roomID, s.userID, seq, &domain.QueueUpdateEvent{Queue: queue})
	return true
}

// HandleEnded is the sink's track-finished callback. Controllers advance
// to the next song; listeners wait for whoever controls playback.
func (s *Session) HandleEnded(ctx context.Context) {
	s.mu.Lock()
	controllable := s.controllableLocked()
	s.mu.Unlock()
	if controllable {
		s.RequestSkipNext(ctx)
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *Session) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAdmin
}

func (s *Session) CanControl() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canControl
}

func (s *Session) CurrentSong() *domain.Song {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cur := *s.current
	return &cur
}

func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Session) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *Session) Queue() []domain.Song {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Song(nil), s.queue...)
}

func (s *Session) History() []domain.Song {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Song(nil), s.history...)
}

func (s *Session) controllableLocked() bool {
	return s.state == StateSynced && s.canControl
}

func (s *Session) nextIntentLocked() uint64 {
	s.clock++
	s.lastIntent = s.clock
	return s.clock
}

func (s *Session) persistPlayback(ctx context.Context, roomID string, patch repository.PlaybackPatch) {
	if _, err := s.registry.UpdatePlayback(ctx, roomID, s.userID, patch); err != nil {
		s.log.Warn("playback write failed", slog.String("room_id", roomID), sl.Err(err))
	}
}

// announceJoin fires once the settle delay has passed: tell the room we
// are here, then ask the admin for the authoritative state. The admin
// announces but never asks.
func (s *Session) announceJoin(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.state != StateSynced {
		s.mu.Unlock()
		return
	}
	roomID := s.roomID
	isAdmin := s.isAdmin
	s.clock++
	joinSeq := s.clock
	var syncSeq uint64
	if !isAdmin {
		s.clock++
		syncSeq = s.clock
	}
	s.mu.Unlock()

	s.bus.Publish(roomID, s.userID, joinSeq, &domain.UserJoinedEvent{UserID: s.userID, DisplayName: s.displayName})
	if !isAdmin {
		s.bus.Publish(roomID, s.userID, syncSeq, &domain.RequestSyncEvent{UserID: s.userID})
	}
}

func (s *Session) refillQueue(songID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	suggestions, err := s.catalog.Suggestions(ctx, songID, s.cfg.QueueRefill)
	if err != nil {
		s.log.Debug("queue refill failed", slog.String("song_id", songID), sl.Err(err))
		return
	}
	if len(suggestions) == 0 {
		return
	}

	s.mu.Lock()
	if s.state != StateSynced || s.current == nil || s.current.ID != songID {
		s.mu.Unlock()
		return
	}
	roomID := s.roomID
	s.queue = mergeSuggestions(s.queue, suggestions, s.current, s.history)
	queue := append([]domain.Song(nil), s.queue...)
	s.clock++
	seq := s.clock
	s.mu.Unlock()

	s.bus.Publish(roomID, s.userID, seq, &domain.QueueUpdateEvent{Queue: queue})
}

// teardownLocked detaches the session from its room synchronously: after
// it returns no further event for that room will be applied. It does not
// touch the registry; callers decide whether a Leave is owed.
func (s *Session) teardownLocked(untrack bool) {
	if s.state == StateDisconnected {
		return
	}

	if s.settleTimer != nil {
		s.settleTimer.Stop()
		s.settleTimer = nil
	}
	s.stopTickerLocked()
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	if untrack {
		s.bus.Untrack(s.roomID, s.userID)
	}
	if s.done != nil {
		close(s.done)
	}

	s.state = StateDisconnected
	s.roomID = ""
	s.isAdmin = false
	s.canControl = false
	s.playing = false
	s.sink.Pause()
}

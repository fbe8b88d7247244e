package session

import (
	"log/slog"
	"math"

	"github.com/immxrtalbeast/jamroom/internal/bus"
	"github.com/immxrtalbeast/jamroom/internal/domain"
)

// run drains the subscription until the hub closes it. A close without a
// preceding destroy event still disconnects the session.
func (s *Session) run(sub *bus.Subscription, gen uint64) {
	for msg := range sub.C {
		s.apply(gen, msg)
	}

	s.mu.Lock()
	if s.gen == gen && s.state != StateDisconnected {
		s.log.Info("room channel closed", slog.String("room_id", s.roomID))
		s.teardownLocked(false)
	}
	s.mu.Unlock()
}

// apply merges one inbound event into local state. Handlers are
// idempotent: re-applying an event the session already reflects changes
// nothing. Position-bearing events causally older than the session's own
// last intent are dropped; the sender simply had not seen our edit yet.
func (s *Session) apply(gen uint64, msg bus.Message) {
	s.mu.Lock()

	if s.gen != gen || s.state != StateSynced {
		s.mu.Unlock()
		return
	}
	if msg.Seq > s.clock {
		s.clock = msg.Seq
	}
	stale := msg.Seq != 0 && msg.Seq <= s.lastIntent

	var reply domain.Event
	var replySeq uint64
	roomID := s.roomID

	switch ev := msg.Event.(type) {
	case *domain.PlayEvent:
		if stale {
			break
		}
		s.playing = true
		s.position = ev.PositionSec
		s.sink.Seek(ev.PositionSec)
		s.sink.Play()

	case *domain.PauseEvent:
		if stale {
			break
		}
		s.playing = false
		s.position = ev.PositionSec
		s.sink.Seek(ev.PositionSec)
		s.sink.Pause()

	case *domain.SeekEvent:
		if stale {
			break
		}
		s.position = ev.PositionSec
		s.sink.Seek(ev.PositionSec)

	case *domain.ChangeSongEvent:
		if stale {
			break
		}
		if s.current != nil && s.current.ID != ev.Song.ID {
			s.history = pushHistory(s.history, *s.current, s.cfg.HistoryCap)
		}
		s.queue = removeFromQueue(s.queue, ev.Song.ID)
		cur := ev.Song
		s.current = &cur
		s.playing = true
		s.position = 0
		s.sink.Load(ev.Song)
		s.sink.Play()

	case *domain.StateSyncEvent:
		if stale || s.isAdmin {
			break
		}
		if ev.Song != nil && (s.current == nil || s.current.ID != ev.Song.ID) {
			cur := *ev.Song
			s.current = &cur
			s.sink.Load(cur)
		}
		s.position = ev.PositionSec
		s.sink.Seek(ev.PositionSec)
		s.playing = ev.IsPlaying
		if ev.IsPlaying {
			s.sink.Play()
		} else {
			s.sink.Pause()
		}
		if ev.Queue != nil {
			s.queue = append([]domain.Song(nil), ev.Queue...)
		}

	case *domain.TickEvent:
		if stale || s.isAdmin {
			break
		}
		tolerance := s.cfg.ListenerDriftTolerance
		if s.canControl {
			tolerance = s.cfg.ControllerDriftTolerance
		}
		if math.Abs(s.sink.Position()-ev.PositionSec) > tolerance {
			s.position = ev.PositionSec
			s.sink.Seek(ev.PositionSec)
		}
		if ev.IsPlaying != s.playing {
			s.playing = ev.IsPlaying
			if ev.IsPlaying {
				s.sink.Play()
			} else {
				s.sink.Pause()
			}
		}

	case *domain.QueueUpdateEvent:
		s.queue = append([]domain.Song(nil), ev.Queue...)

	case *domain.SkipNextEvent, *domain.SkipPrevEvent:
		// The change_song that follows carries the actual transition.

	case *domain.UserJoinedEvent:
		s.log.Debug("user joined room",
			slog.String("room_id", roomID),
			slog.String("joined", ev.UserID.String()),
		)

	case *domain.UserLeftEvent:
		s.log.Debug("user left room",
			slog.String("room_id", roomID),
			slog.String("left", ev.UserID.String()),
		)

	case *domain.PermissionUpdateEvent:
		if ev.UserID != s.userID {
			break
		}
		s.canControl = ev.CanControl || ev.IsAdmin
		if ev.IsAdmin && !s.isAdmin {
			s.isAdmin = true
			s.startTickerLocked()
		} else if !ev.IsAdmin && s.isAdmin {
			s.isAdmin = false
			s.stopTickerLocked()
		}

	case *domain.RequestSyncEvent:
		if !s.isAdmin {
			break
		}
		s.clock++
		replySeq = s.clock
		var song *domain.Song
		if s.current != nil {
			cur := *s.current
			song = &cur
		}
		pos := s.sink.Position()
		if !s.playing {
			pos = s.position
		}
		reply = &domain.StateSyncEvent{
			Song:        song,
			IsPlaying:   s.playing,
			PositionSec: pos,
			Queue:       append([]domain.Song(nil), s.queue...),
		}

	case *domain.RoomDestroyedEvent:
		s.log.Info("room destroyed", slog.String("room_id", roomID))
		s.teardownLocked(false)

	default:
		s.log.Debug("ignoring event", slog.String("kind", string(msg.Event.Kind())))
	}

	s.mu.Unlock()

	if reply != nil {
		s.bus.Publish(roomID, s.userID, replySeq, reply)
	}
}

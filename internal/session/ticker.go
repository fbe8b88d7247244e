package session

import (
	"context"
	"time"

	"github.com/immxrtalbeast/jamroom/internal/domain"
	"github.com/immxrtalbeast/jamroom/internal/repository"
	"github.com/immxrtalbeast/jamroom/lib/logger/sl"
)

// startTickerLocked launches the admin's periodic ground-truth broadcast.
// The tick sources the position from the media sink, not the last
// commanded value, so peers converge on what is actually playing.
func (s *Session) startTickerLocked() {
	if s.tickCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.tickCancel = cancel

	go s.runTicker(ctx, s.gen, s.roomID)
}

func (s *Session) stopTickerLocked() {
	if s.tickCancel != nil {
		s.tickCancel()
		s.tickCancel = nil
	}
}

func (s *Session) runTicker(ctx context.Context, gen uint64, roomID string) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.adminTick(ctx, gen, roomID)
		}
	}
}

func (s *Session) adminTick(ctx context.Context, gen uint64, roomID string) {
	s.mu.Lock()
	if s.gen != gen || s.state != StateSynced || !s.isAdmin {
		s.mu.Unlock()
		return
	}
	if !s.playing {
		s.mu.Unlock()
		return
	}
	pos := s.sink.Position()
	s.position = pos
	s.clock++
	seq := s.clock
	s.mu.Unlock()

	s.bus.Publish(roomID, s.userID, seq, &domain.TickEvent{PositionSec: pos, IsPlaying: true})

	if _, err := s.registry.UpdatePlayback(ctx, roomID, s.userID, repository.PlaybackPatch{CurrentTimeSec: &pos}); err != nil {
		s.log.Debug("tick persist failed", sl.Err(err))
	}
}

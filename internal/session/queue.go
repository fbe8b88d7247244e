package session

import (
	"github.com/immxrtalbeast/jamroom/internal/domain"
	"github.com/samber/lo"
)

// pushHistory prepends song to the history buffer. The head is the most
// recently played song; pushing the same song twice in a row is a no-op
// so a play/prev ping-pong does not stack duplicates.
func pushHistory(history []domain.Song, song domain.Song, limit int) []domain.Song {
	if len(history) > 0 && history[0].ID == song.ID {
		return history
	}
	history = append([]domain.Song{song}, history...)
	if len(history) > limit {
		history = history[:limit]
	}
	return history
}

func removeFromQueue(queue []domain.Song, songID string) []domain.Song {
	return lo.Reject(queue, func(s domain.Song, _ int) bool {
		return s.ID == songID
	})
}

// mergeSuggestions appends fetched suggestions to the queue, skipping
// anything already queued, currently playing, or recently played.
func mergeSuggestions(queue []domain.Song, suggestions []domain.Song, current *domain.Song, history []domain.Song) []domain.Song {
	seen := make(map[string]struct{}, len(queue)+len(history)+1)
	for _, s := range queue {
		seen[s.ID] = struct{}{}
	}
	for _, s := range history {
		seen[s.ID] = struct{}{}
	}
	if current != nil {
		seen[current.ID] = struct{}{}
	}

	for _, s := range suggestions {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		queue = append(queue, s)
	}
	return queue
}

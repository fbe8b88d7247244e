package domain

// SongImage is one resolution variant of a song's cover art.
type SongImage struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

// SongAudio is one quality variant of a song's downloadable audio.
type SongAudio struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

// Song is a denormalized catalog snapshot. Rooms, queues and history carry
// full snapshots so that joining clients never have to refetch metadata.
type Song struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Artists     []string    `json:"artists"`
	Images      []SongImage `json:"images,omitempty"`
	Audio       []SongAudio `json:"audio,omitempty"`
	DurationSec int         `json:"duration_sec,omitempty"`
}

package session

import "github.com/immxrtalbeast/jamroom/internal/domain"

// Sink is the black-box media element the session drives. It decodes and
// plays audio on its own; the session only decides when and where.
// Implementations must not block: commands are fire-and-forget and
// Position reports whatever the element currently believes.
type Sink interface {
	Load(song domain.Song)
	Play()
	Pause()
	Seek(positionSec float64)
	Position() float64
}

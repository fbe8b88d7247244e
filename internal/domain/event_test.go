package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	req := require.New(t)

	sender := uuid.New()
	env, err := NewEnvelope(sender, 7, &SeekEvent{PositionSec: 42.5})
	req.NoError(err)
	req.Equal(EventSeek, env.Kind)

	raw, err := json.Marshal(env)
	req.NoError(err)

	var decoded Envelope
	req.NoError(json.Unmarshal(raw, &decoded))
	req.Equal(sender, decoded.SenderID)
	req.Equal(uint64(7), decoded.Seq)

	ev, err := decoded.Decode()
	req.NoError(err)
	seek, ok := ev.(*SeekEvent)
	req.True(ok)
	req.Equal(42.5, seek.PositionSec)
}

func TestEnvelope_RoundTripChangeSong(t *testing.T) {
	req := require.New(t)

	song := Song{
		ID:          "track-1",
		Name:        "Night Drive",
		Artists:     []string{"Somebody"},
		DurationSec: 213,
	}

	env, err := NewEnvelope(uuid.New(), 3, &ChangeSongEvent{Song: song})
	req.NoError(err)

	raw, err := json.Marshal(env)
	req.NoError(err)

	var decoded Envelope
	req.NoError(json.Unmarshal(raw, &decoded))

	ev, err := decoded.Decode()
	req.NoError(err)
	change, ok := ev.(*ChangeSongEvent)
	req.True(ok)
	req.Equal(song, change.Song)
}

func TestEnvelope_EmptyPayloadVariants(t *testing.T) {
	req := require.New(t)

	env, err := NewEnvelope(uuid.Nil, 0, &RoomDestroyedEvent{})
	req.NoError(err)

	ev, err := env.Decode()
	req.NoError(err)
	req.IsType(&RoomDestroyedEvent{}, ev)
}

func TestEnvelope_UnknownKind(t *testing.T) {
	req := require.New(t)

	env := Envelope{Kind: EventKind("no_such_event")}
	_, err := env.Decode()
	req.Error(err)
	req.Contains(err.Error(), "unknown event kind")
}

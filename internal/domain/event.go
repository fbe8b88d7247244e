package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EventKind discriminates the room event variants on the wire.
type EventKind string

const (
	EventPlay             EventKind = "play"
	EventPause            EventKind = "pause"
	EventSeek             EventKind = "seek"
	EventChangeSong       EventKind = "change_song"
	EventStateSync        EventKind = "state_sync"
	EventTick             EventKind = "tick"
	EventQueueUpdate      EventKind = "queue_update"
	EventSkipNext         EventKind = "skip_next"
	EventSkipPrev         EventKind = "skip_prev"
	EventUserJoined       EventKind = "user_joined"
	EventUserLeft         EventKind = "user_left"
	EventPermissionUpdate EventKind = "permission_update"
	EventRoomDestroyed    EventKind = "room_destroyed"
	EventRequestSync      EventKind = "request_sync"
)

// Event is one room broadcast. Handlers dispatch on the concrete type, so
// adding a variant surfaces every switch that needs updating.
type Event interface {
	Kind() EventKind
}

type PlayEvent struct {
	PositionSec float64 `json:"position_sec"`
}

type PauseEvent struct {
	PositionSec float64 `json:"position_sec"`
}

type SeekEvent struct {
	PositionSec float64 `json:"position_sec"`
}

type ChangeSongEvent struct {
	Song Song `json:"song"`
}

// StateSyncEvent is the admin's full answer to a RequestSyncEvent.
type StateSyncEvent struct {
	Song        *Song   `json:"song,omitempty"`
	IsPlaying   bool    `json:"is_playing"`
	PositionSec float64 `json:"position_sec"`
	Queue       []Song  `json:"queue,omitempty"`
}

// TickEvent carries the admin's ground-truth position, sourced from the
// actual media sink rather than the last commanded value.
type TickEvent struct {
	PositionSec float64 `json:"position_sec"`
	IsPlaying   bool    `json:"is_playing"`
}

type QueueUpdateEvent struct {
	Queue []Song `json:"queue"`
}

type SkipNextEvent struct{}

type SkipPrevEvent struct{}

type UserJoinedEvent struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
}

type UserLeftEvent struct {
	UserID uuid.UUID `json:"user_id"`
}

// PermissionUpdateEvent propagates control grants/revocations and admin
// handoff without forcing peers to re-read the registry.
type PermissionUpdateEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	CanControl bool      `json:"can_control"`
	IsAdmin    bool      `json:"is_admin"`
}

type RoomDestroyedEvent struct{}

// RequestSyncEvent asks the room's admin for a StateSyncEvent. Only the
// admin answers, so a join does not trigger a response storm.
type RequestSyncEvent struct {
	UserID uuid.UUID `json:"user_id"`
}

func (PlayEvent) Kind() EventKind             { return EventPlay }
func (PauseEvent) Kind() EventKind            { return EventPause }
func (SeekEvent) Kind() EventKind             { return EventSeek }
func (ChangeSongEvent) Kind() EventKind       { return EventChangeSong }
func (StateSyncEvent) Kind() EventKind        { return EventStateSync }
func (TickEvent) Kind() EventKind             { return EventTick }
func (QueueUpdateEvent) Kind() EventKind      { return EventQueueUpdate }
func (SkipNextEvent) Kind() EventKind         { return EventSkipNext }
func (SkipPrevEvent) Kind() EventKind         { return EventSkipPrev }
func (UserJoinedEvent) Kind() EventKind       { return EventUserJoined }
func (UserLeftEvent) Kind() EventKind         { return EventUserLeft }
func (PermissionUpdateEvent) Kind() EventKind { return EventPermissionUpdate }
func (RoomDestroyedEvent) Kind() EventKind    { return EventRoomDestroyed }
func (RequestSyncEvent) Kind() EventKind      { return EventRequestSync }

// Envelope is the wire framing for bus events. Seq is the sender's logical
// clock value at send time; receivers use it to discard events that are
// causally older than their own last issued intent.
type Envelope struct {
	Kind     EventKind       `json:"kind"`
	SenderID uuid.UUID       `json:"sender_id"`
	Seq      uint64          `json:"seq"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(senderID uuid.UUID, seq uint64, ev Event) (Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s event: %w", ev.Kind(), err)
	}
	return Envelope{
		Kind:     ev.Kind(),
		SenderID: senderID,
		Seq:      seq,
		Payload:  payload,
	}, nil
}

// Decode unmarshals the payload into the concrete event variant.
func (e Envelope) Decode() (Event, error) {
	var ev Event
	switch e.Kind {
	case EventPlay:
		ev = &PlayEvent{}
	case EventPause:
		ev = &PauseEvent{}
	case EventSeek:
		ev = &SeekEvent{}
	case EventChangeSong:
		ev = &ChangeSongEvent{}
	case EventStateSync:
		ev = &StateSyncEvent{}
	case EventTick:
		ev = &TickEvent{}
	case EventQueueUpdate:
		ev = &QueueUpdateEvent{}
	case EventSkipNext:
		ev = &SkipNextEvent{}
	case EventSkipPrev:
		ev = &SkipPrevEvent{}
	case EventUserJoined:
		ev = &UserJoinedEvent{}
	case EventUserLeft:
		ev = &UserLeftEvent{}
	case EventPermissionUpdate:
		ev = &PermissionUpdateEvent{}
	case EventRoomDestroyed:
		ev = &RoomDestroyedEvent{}
	case EventRequestSync:
		ev = &RequestSyncEvent{}
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}

	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, ev); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", e.Kind, err)
		}
	}
	return ev, nil
}

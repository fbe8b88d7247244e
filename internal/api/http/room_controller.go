package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/jamroom/internal/api/http/converter"
	"github.com/immxrtalbeast/jamroom/internal/bus"
	"github.com/immxrtalbeast/jamroom/internal/domain"
	"github.com/immxrtalbeast/jamroom/internal/repository"
	"github.com/immxrtalbeast/jamroom/internal/service"
	"github.com/immxrtalbeast/jamroom/lib/logger/sl"
)

// EventHub is the slice of the bus the websocket bridge needs.
type EventHub interface {
	Subscribe(roomID string, selfID uuid.UUID) *bus.Subscription
	Publish(roomID string, senderID uuid.UUID, seq uint64, ev domain.Event)
	Track(roomID string, selfID uuid.UUID, meta bus.PresenceMeta)
	Untrack(roomID string, selfID uuid.UUID)
	Presence(roomID string) []bus.PresenceMeta
}

type RoomController struct {
	rooms    service.RoomInteractor
	hub      EventHub
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewRoomController(rooms service.RoomInteractor, hub EventHub, log *slog.Logger) *RoomController {
	if log == nil {
		log = slog.Default()
	}
	return &RoomController{
		rooms: rooms,
		hub:   hub,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (c *RoomController) CreateRoom(ctx *gin.Context) {
	type CreateRoomRequest struct {
		Name      string `json:"name" binding:"required"`
		IsPrivate bool   `json:"is_private"`
		Password  string `json:"password"`
	}
	var req CreateRoomRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	claims := currentClaims(ctx)
	room, err := c.rooms.CreateRoom(ctx.Request.Context(), req.Name, claims.UserID, claims.DisplayName, req.IsPrivate, req.Password)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta, err := c.rooms.GetRoom(ctx.Request.Context(), room.ID, claims.UserID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"room": converter.RoomToApi(meta)})
}

func (c *RoomController) GetRoom(ctx *gin.Context) {
	claims := currentClaims(ctx)
	meta, err := c.rooms.GetRoom(ctx.Request.Context(), ctx.Param("roomID"), claims.UserID)
	if err != nil {
		c.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(meta)})
}

func (c *RoomController) ListRooms(ctx *gin.Context) {
	filter := service.RoomFilter(ctx.DefaultQuery("filter", string(service.FilterAll)))
	search := ctx.Query("search")

	claims := currentClaims(ctx)
	rooms, err := c.rooms.ListRooms(ctx.Request.Context(), filter, search, claims.UserID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]*converter.RoomResponse, 0, len(rooms))
	for _, meta := range rooms {
		out = append(out, converter.RoomToApi(meta))
	}
	ctx.JSON(http.StatusOK, gin.H{"rooms": out})
}

func (c *RoomController) JoinRoom(ctx *gin.Context) {
	type JoinRequest struct {
		Password string `json:"password"`
	}
	var req JoinRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	claims := currentClaims(ctx)
	member, _, err := c.rooms.Join(ctx.Request.Context(), ctx.Param("roomID"), claims.UserID, claims.DisplayName, req.Password)
	if err != nil {
		c.writeError(ctx, err)
		return
	}

	meta, err := c.rooms.GetRoom(ctx.Request.Context(), ctx.Param("roomID"), claims.UserID)
	if err != nil {
		c.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"room":   converter.RoomToApi(meta),
		"member": converter.MemberToApi(member),
	})
}

func (c *RoomController) LeaveRoom(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if err := c.rooms.Leave(ctx.Request.Context(), ctx.Param("roomID"), claims.UserID); err != nil {
		c.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "left"})
}

func (c *RoomController) DestroyRoom(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if err := c.rooms.Destroy(ctx.Request.Context(), ctx.Param("roomID"), claims.UserID); err != nil {
		c.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "destroyed"})
}

func (c *RoomController) UpdatePlayback(ctx *gin.Context) {
	type PlaybackRequest struct {
		SongID         *string      `json:"song_id"`
		Song           *domain.Song `json:"song"`
		IsPlaying      *bool        `json:"is_playing"`
		CurrentTimeSec *float64     `json:"current_time_sec"`
	}
	var req PlaybackRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	patch := repository.PlaybackPatch{
		CurrentSongID:  req.SongID,
		CurrentSong:    req.Song,
		IsPlaying:      req.IsPlaying,
		CurrentTimeSec: req.CurrentTimeSec,
	}
	if req.Song != nil && req.SongID == nil {
		patch.CurrentSongID = &req.Song.ID
	}

	claims := currentClaims(ctx)
	room, err := c.rooms.UpdatePlayback(ctx.Request.Context(), ctx.Param("roomID"), claims.UserID, patch)
	if err != nil {
		c.writeError(ctx, err)
		return
	}

	meta, err := c.rooms.GetRoom(ctx.Request.Context(), room.ID, claims.UserID)
	if err != nil {
		c.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(meta)})
}

func (c *RoomController) SetMemberControl(ctx *gin.Context) {
	type ControlRequest struct {
		CanControl *bool `json:"can_control" binding:"required"`
	}
	var req ControlRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	userID, err := uuid.Parse(ctx.Param("userID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	claims := currentClaims(ctx)
	if err := c.rooms.SetMemberControl(ctx.Request.Context(), ctx.Param("roomID"), claims.UserID, userID, req.CanControl != nil && *req.CanControl); err != nil {
		c.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (c *RoomController) ListParticipants(ctx *gin.Context) {
	claims := currentClaims(ctx)
	if _, err := c.rooms.GetRoom(ctx.Request.Context(), ctx.Param("roomID"), claims.UserID); err != nil {
		c.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"participants": c.hub.Presence(ctx.Param("roomID"))})
}

// RoomEvents bridges the websocket to the room's event channel. The
// connection joins the room (password via query for private rooms),
// relays inbound envelopes onto the bus with the authenticated sender id,
// and streams outbound events back. Closing the socket does not leave the
// room; membership survives disconnects until an explicit leave.
func (c *RoomController) RoomEvents(ctx *gin.Context) {
	roomID := ctx.Param("roomID")
	claims := currentClaims(ctx)

	_, _, err := c.rooms.Join(ctx.Request.Context(), roomID, claims.UserID, claims.DisplayName, ctx.Query("password"))
	if err != nil {
		c.writeError(ctx, err)
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		ctx.String(http.StatusInternalServerError, "failed to upgrade connection")
		return
	}

	sub := c.hub.Subscribe(roomID, claims.UserID)
	c.hub.Track(roomID, claims.UserID, bus.PresenceMeta{UserID: claims.UserID, DisplayName: claims.DisplayName})

	log := c.log.With(slog.String("room_id", roomID), slog.String("user", claims.UserID.String()))
	log.Info("websocket attached")

	go c.writePump(conn, sub)

	for {
		var env domain.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			break
		}

		ev, err := env.Decode()
		if err != nil {
			log.Debug("dropping malformed envelope", sl.Err(err))
			continue
		}

		// The socket's identity wins over whatever the client wrote.
		c.hub.Publish(roomID, claims.UserID, env.Seq, ev)
	}

	c.hub.Untrack(roomID, claims.UserID)
	sub.Close()
	conn.Close()
	log.Info("websocket detached")
}

func (c *RoomController) writePump(conn *websocket.Conn, sub *bus.Subscription) {
	for msg := range sub.C {
		env, err := domain.NewEnvelope(msg.SenderID, msg.Seq, msg.Event)
		if err != nil {
			c.log.Error("failed to encode event", sl.Err(err))
			continue
		}
		if err := conn.WriteJSON(env); err != nil {
			conn.Close()
			return
		}
	}
	// Channel closed: the room is gone, hang up.
	conn.Close()
}

func (c *RoomController) writeError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrNotAuthorized),
		errors.Is(err, service.ErrNotAdmin):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotMember):
		status = http.StatusConflict
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}

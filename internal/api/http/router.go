package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/jamroom/internal/auth"
)

func SetupRouter(tokens *auth.Manager, roomController *RoomController, userController *UserController, songController *SongController, allowedOrigins []string) *gin.Engine {
	router := gin.Default()

	config := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		config.AllowOrigins = allowedOrigins
	} else {
		config.AllowAllOrigins = true
	}
	config.AllowCredentials = !config.AllowAllOrigins
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	if userController != nil {
		users := api.Group("/users")
		users.POST("/create", userController.CreateUser)
		users.GET("/:userID", userController.GetUser)

		api.POST("/auth/token", userController.IssueToken)
	}

	if roomController != nil {
		rooms := api.Group("/rooms")
		rooms.Use(AuthRequired(tokens))
		rooms.POST("/create", roomController.CreateRoom)
		rooms.GET("", roomController.ListRooms)
		rooms.GET("/:roomID", roomController.GetRoom)
		rooms.POST("/:roomID/join", roomController.JoinRoom)
		rooms.POST("/:roomID/leave", roomController.LeaveRoom)
		rooms.DELETE("/:roomID", roomController.DestroyRoom)
		rooms.PATCH("/:roomID/playback", roomController.UpdatePlayback)
		rooms.PUT("/:roomID/members/:userID/control", roomController.SetMemberControl)
		rooms.GET("/:roomID/participants", roomController.ListParticipants)
		rooms.GET("/:roomID/ws", roomController.RoomEvents)
	}

	if songController != nil {
		songs := api.Group("/songs")
		songs.GET("/search", songController.Search)
		songs.GET("/:songID", songController.GetSong)
		songs.GET("/:songID/suggestions", songController.Suggestions)
	}

	return router
}

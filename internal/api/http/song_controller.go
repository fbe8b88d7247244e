package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/jamroom/internal/catalog"
)

// SongController proxies the external catalog so browser clients do not
// need direct access to it.
type SongController struct {
	catalog *catalog.Client
}

func NewSongController(c *catalog.Client) *SongController {
	return &SongController{catalog: c}
}

func (c *SongController) Search(ctx *gin.Context) {
	query := ctx.Query("query")
	if query == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	songs, err := c.catalog.Search(ctx.Request.Context(), query)
	if err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"songs": songs})
}

func (c *SongController) GetSong(ctx *gin.Context) {
	song, err := c.catalog.SongByID(ctx.Request.Context(), ctx.Param("songID"))
	if err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"song": song})
}

func (c *SongController) Suggestions(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))

	songs, err := c.catalog.Suggestions(ctx.Request.Context(), ctx.Param("songID"), limit)
	if err != nil {
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"songs": songs})
}

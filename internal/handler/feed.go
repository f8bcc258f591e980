package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dialogues/internal/middleware"
	"dialogues/internal/service"
	"dialogues/pkg/logger"
)

type FeedHandler struct {
	feedService service.FeedService
	log         logger.Logger
}

func NewFeedHandler(feedService service.FeedService, log logger.Logger) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
		log:         log,
	}
}

// Poll возвращает посты с id больше last_id
func (h *FeedHandler) Poll(c *gin.Context) {
	watermark := parseWatermark(c.Query("last_id"))

	batch, err := h.feedService.Poll(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c), watermark)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

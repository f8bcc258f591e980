package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dialogues/internal/middleware"
	"dialogues/internal/service"
	"dialogues/pkg/logger"
)

type DashboardHandler struct {
	dashboardService service.DashboardService
	log              logger.Logger
}

func NewDashboardHandler(dashboardService service.DashboardService, log logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		log:              log,
	}
}

// Get - диалоги пользователя, последние по активности сверху
func (h *DashboardHandler) Get(c *gin.Context) {
	entries, err := h.dashboardService.For(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

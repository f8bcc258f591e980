package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dialogues/internal/config"
	"dialogues/internal/metrics"
	"dialogues/internal/service"
	apperrors "dialogues/pkg/errors"
	"dialogues/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Dialogue  *DialogueHandler
	Post      *PostHandler
	Feed      *FeedHandler
	Stream    *StreamHandler
	WebSocket *WebSocketHandler
	Dashboard *DashboardHandler
	User      *UserHandler
}

func NewHandlers(services *service.Services, cfg *config.Config, m *metrics.Metrics, ping Pinger, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(cfg, ping),
		Dialogue:  NewDialogueHandler(services.Dialogue, log),
		Post:      NewPostHandler(services.Post, log),
		Feed:      NewFeedHandler(services.Feed, log),
		Stream:    NewStreamHandler(services.Feed, m, log),
		WebSocket: NewWebSocketHandler(services.Feed, cfg.Server.AllowedOrigins, m, log),
		Dashboard: NewDashboardHandler(services.Dashboard, log),
		User:      NewUserHandler(services.User, log),
	}
}

// badRequest оборачивает ошибку разбора запроса
func badRequest(c *gin.Context, err error) {
	_ = c.Error(fmt.Errorf("%w: %v", apperrors.ErrBadRequest, err))
}

// parseWatermark: нечисловой или отрицательный курсор означает "с начала"
func parseWatermark(raw string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

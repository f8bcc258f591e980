package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dialogues/internal/config"
)

// Pinger проверяет доступность хранилища. nil - проверять нечего
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	storage string
	ping    Pinger
}

func NewHealthHandler(cfg *config.Config, ping Pinger) *HealthHandler {
	return &HealthHandler{
		storage: cfg.Storage.Driver,
		ping:    ping,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":  "ok",
		"service": "dialogues",
		"storage": h.storage,
	}

	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["error"] = "storage unavailable"
		}
	}

	c.JSON(status, body)
}

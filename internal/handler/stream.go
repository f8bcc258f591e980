package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"dialogues/internal/domain"
	"dialogues/internal/metrics"
	"dialogues/internal/middleware"
	"dialogues/internal/service"
	apperrors "dialogues/pkg/errors"
	"dialogues/pkg/logger"
)

const (
	eventPosts     = "posts"
	eventForbidden = "forbidden"
)

// StreamHandler отдает новые посты диалога через Server-Sent Events.
// id события - last_id порции, поэтому EventSource после обрыва
// переподключается с Last-Event-ID и ничего не получает дважды
type StreamHandler struct {
	feedService service.FeedService
	metrics     *metrics.Metrics
	log         logger.Logger
}

func NewStreamHandler(feedService service.FeedService, m *metrics.Metrics, log logger.Logger) *StreamHandler {
	return &StreamHandler{
		feedService: feedService,
		metrics:     m,
		log:         log,
	}
}

func (h *StreamHandler) Stream(c *gin.Context) {
	raw := c.GetHeader("Last-Event-ID")
	if raw == "" {
		raw = c.Query("last_id")
	}
	watermark := parseWatermark(raw)
	dialogueID := c.Param("id")

	sink := &sseSink{c: c, metrics: h.metrics, log: h.log}
	err := h.feedService.Stream(c.Request.Context(), dialogueID, middleware.CurrentUser(c), watermark, sink)
	if !sink.opened {
		// Поток не начался: обычный ответ с ошибкой
		if err != nil && !errors.Is(err, context.Canceled) {
			_ = c.Error(err)
		}
		return
	}

	h.metrics.StreamsActive.WithLabelValues(metrics.TransportSSE).Dec()
	finishStream(h.metrics, h.log, metrics.TransportSSE, dialogueID, err)
}

type sseSink struct {
	c       *gin.Context
	metrics *metrics.Metrics
	log     logger.Logger
	opened  bool
}

func (s *sseSink) Open() error {
	// Общий WriteTimeout сервера оборвал бы долгий поток
	rc := http.NewResponseController(s.c.Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.log.Debug("Failed to clear stream write deadline", "error", err)
	}

	h := s.c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.c.Status(http.StatusOK)
	s.c.Writer.WriteHeaderNow()
	s.c.Writer.Flush()

	s.opened = true
	s.metrics.StreamsActive.WithLabelValues(metrics.TransportSSE).Inc()
	return nil
}

func (s *sseSink) Send(batch *domain.FeedBatch) error {
	err := sse.Encode(s.c.Writer, sse.Event{
		Id:    strconv.FormatInt(batch.LastID, 10),
		Event: eventPosts,
		Data:  *batch,
	})
	if err != nil {
		return err
	}
	s.c.Writer.Flush()
	s.metrics.StreamBatches.WithLabelValues(metrics.TransportSSE).Inc()
	return nil
}

// KeepAlive пишет SSE комментарий, его клиент игнорирует
func (s *sseSink) KeepAlive() error {
	if _, err := s.c.Writer.WriteString(": keep-alive\n\n"); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}

func (s *sseSink) Forbidden() error {
	err := sse.Encode(s.c.Writer, sse.Event{
		Event: eventForbidden,
		Data:  gin.H{"error": apperrors.ErrForbidden.Error()},
	})
	if err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}

// finishStream учитывает причину закрытия открытого потока
func finishStream(m *metrics.Metrics, log logger.Logger, transport, dialogueID string, err error) {
	reason := disconnectReason(err)
	m.StreamDisconnects.WithLabelValues(transport, reason).Inc()

	if reason == metrics.ReasonError {
		log.Error("Stream failed", "transport", transport, "dialogue_id", dialogueID, "error", err)
		return
	}
	log.Debug("Stream closed", "transport", transport, "dialogue_id", dialogueID, "reason", reason)
}

func disconnectReason(err error) string {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return metrics.ReasonClientGone
	case errors.Is(err, service.ErrStreamExpired):
		return metrics.ReasonLifetime
	case errors.Is(err, apperrors.ErrForbidden):
		return metrics.ReasonForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		return metrics.ReasonNotFound
	case errors.Is(err, service.ErrSinkClosed):
		return metrics.ReasonSendError
	default:
		return metrics.ReasonError
	}
}

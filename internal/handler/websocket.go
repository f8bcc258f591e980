package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"dialogues/internal/domain"
	"dialogues/internal/metrics"
	"dialogues/internal/middleware"
	"dialogues/internal/service"
	"dialogues/pkg/logger"
)

const (
	wsWriteWait = 10 * time.Second

	frameTypePosts     = "posts"
	frameTypeForbidden = "forbidden"
)

// Frame - JSON сообщение сервера в WebSocket потоке
type Frame struct {
	Type   string         `json:"type"`
	Posts  []*domain.Post `json:"posts,omitempty"`
	LastID int64          `json:"last_id,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type WebSocketHandler struct {
	feedService service.FeedService
	upgrader    websocket.Upgrader
	metrics     *metrics.Metrics
	log         logger.Logger
}

func NewWebSocketHandler(feedService service.FeedService, allowedOrigins []string, m *metrics.Metrics, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		feedService: feedService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Не браузерные клиенты Origin не присылают
				return origin == "" || middleware.OriginAllowed(allowedOrigins, origin)
			},
		},
		metrics: m,
		log:     log,
	}
}

// HandleDialogue - поток новых постов диалога. Соединение открывается
// только после проверки доступа, иначе клиент получает обычный 403/404
func (h *WebSocketHandler) HandleDialogue(c *gin.Context) {
	dialogueID := c.Param("id")
	watermark := parseWatermark(c.Query("last_id"))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sink := &wsSink{c: c, upgrader: &h.upgrader, cancel: cancel, log: h.log, metrics: h.metrics}
	err := h.feedService.Stream(ctx, dialogueID, middleware.CurrentUser(c), watermark, sink)
	if sink.conn == nil {
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, service.ErrSinkClosed) {
			_ = c.Error(err)
		}
		return
	}

	sink.close(err)
	h.metrics.StreamsActive.WithLabelValues(metrics.TransportWebSocket).Dec()
	finishStream(h.metrics, h.log, metrics.TransportWebSocket, dialogueID, err)
}

type wsSink struct {
	c        *gin.Context
	upgrader *websocket.Upgrader
	cancel   context.CancelFunc
	metrics  *metrics.Metrics
	log      logger.Logger

	conn       *websocket.Conn
	readerDone chan struct{}
}

func (s *wsSink) Open() error {
	conn, err := s.upgrader.Upgrade(s.c.Writer, s.c.Request, nil)
	if err != nil {
		// Upgrade уже ответил клиенту ошибкой
		s.log.Warn("Failed to upgrade connection", "error", err)
		return err
	}
	s.conn = conn
	s.readerDone = make(chan struct{})
	s.metrics.StreamsActive.WithLabelValues(metrics.TransportWebSocket).Inc()

	// Входящие сообщения не нужны, но читать надо: так обрабатываются
	// control-фреймы и обнаруживается закрытие соединения клиентом
	go func() {
		defer close(s.readerDone)
		defer s.cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

func (s *wsSink) Send(batch *domain.FeedBatch) error {
	if err := s.write(Frame{Type: frameTypePosts, Posts: batch.Posts, LastID: batch.LastID}); err != nil {
		return err
	}
	s.metrics.StreamBatches.WithLabelValues(metrics.TransportWebSocket).Inc()
	return nil
}

func (s *wsSink) KeepAlive() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (s *wsSink) Forbidden() error {
	return s.write(Frame{Type: frameTypeForbidden, Error: "forbidden"})
}

func (s *wsSink) write(frame Frame) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(frame)
}

// close отправляет close-фрейм с причиной и ждет завершения чтения
func (s *wsSink) close(err error) {
	code, text := websocket.CloseNormalClosure, disconnectReason(err)
	if text == metrics.ReasonError {
		code = websocket.CloseInternalServerErr
	}
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteWait))
	_ = s.conn.Close()
	<-s.readerDone
}

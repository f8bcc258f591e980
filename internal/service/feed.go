package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dialogues/internal/access"
	"dialogues/internal/config"
	"dialogues/internal/domain"
	"dialogues/internal/metrics"
	"dialogues/internal/notify"
	"dialogues/internal/repository"
	apperrors "dialogues/pkg/errors"
	"dialogues/pkg/logger"
)

var (
	// ErrStreamExpired - поток закрыт по истечении максимального времени жизни
	ErrStreamExpired = errors.New("stream lifetime exceeded")
	// ErrSinkClosed - клиент перестал принимать сообщения
	ErrSinkClosed = errors.New("stream sink closed")
)

// Sink - транспорт потока (SSE, WebSocket)
type Sink interface {
	// Open вызывается один раз, после первой успешной проверки доступа.
	// До него транспорт еще может ответить обычной ошибкой HTTP
	Open() error
	Send(batch *domain.FeedBatch) error
	KeepAlive() error
	// Forbidden сообщает клиенту, что доступ к диалогу закрыт
	Forbidden() error
}

type FeedService interface {
	Poll(ctx context.Context, dialogueID string, user *domain.User, watermark int64) (*domain.FeedBatch, error)
	Stream(ctx context.Context, dialogueID string, user *domain.User, watermark int64, sink Sink) error
}

type feedService struct {
	dialogueRepo repository.DialogueRepository
	postRepo     repository.PostRepository
	notifier     *notify.Notifier
	cfg          config.StreamConfig
	metrics      *metrics.Metrics
	log          logger.Logger
}

func NewFeedService(dialogueRepo repository.DialogueRepository, postRepo repository.PostRepository, notifier *notify.Notifier, cfg config.StreamConfig, m *metrics.Metrics, log logger.Logger) FeedService {
	return &feedService{
		dialogueRepo: dialogueRepo,
		postRepo:     postRepo,
		notifier:     notifier,
		cfg:          cfg,
		metrics:      m,
		log:          log,
	}
}

// Poll - один запрос клиента с курсором. Состояния между вызовами нет
func (s *feedService) Poll(ctx context.Context, dialogueID string, user *domain.User, watermark int64) (*domain.FeedBatch, error) {
	batch, err := s.next(ctx, dialogueID, user, clampWatermark(watermark))
	s.metrics.FeedPolls.WithLabelValues(pollStatus(err)).Inc()
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// Stream держит поток до отмены ctx, истечения времени жизни, ошибки отправки
// или потери доступа. Каждый цикл заново читает диалог и проверяет CanRead.
// Курсор потока только растет, поэтому пост с id <= курсора не уходит дважды
func (s *feedService) Stream(ctx context.Context, dialogueID string, user *domain.User, watermark int64, sink Sink) error {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, s.cfg.MaxLifetime)
	defer cancel()

	wake, unsubscribe := s.notifier.Subscribe(dialogueID)
	defer unsubscribe()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	keepAlive := time.NewTicker(s.cfg.KeepAliveInterval)
	defer keepAlive.Stop()

	cursor := clampWatermark(watermark)
	opened := false
	for {
		batch, err := s.next(ctx, dialogueID, user, cursor)
		switch {
		case errors.Is(err, apperrors.ErrForbidden):
			if opened {
				if sendErr := sink.Forbidden(); sendErr != nil {
					s.log.Debug("Failed to notify stream about lost access", "error", sendErr)
				}
			}
			return err
		case err != nil:
			if ctx.Err() != nil {
				return s.streamDone(parent, ctx)
			}
			return err
		}

		if !opened {
			if err := sink.Open(); err != nil {
				return fmt.Errorf("%w: %v", ErrSinkClosed, err)
			}
			opened = true
		}

		if len(batch.Posts) > 0 {
			if err := sink.Send(batch); err != nil {
				return fmt.Errorf("%w: %v", ErrSinkClosed, err)
			}
			cursor = batch.LastID
			keepAlive.Reset(s.cfg.KeepAliveInterval)

			// Порция заполнена целиком - дочитываем без ожидания
			if s.cfg.BatchLimit > 0 && len(batch.Posts) >= s.cfg.BatchLimit {
				continue
			}
		}

		select {
		case <-ctx.Done():
			return s.streamDone(parent, ctx)
		case <-ticker.C:
		case <-wake:
		case <-keepAlive.C:
			if err := sink.KeepAlive(); err != nil {
				return fmt.Errorf("%w: %v", ErrSinkClosed, err)
			}
		}
	}
}

func (s *feedService) next(ctx context.Context, dialogueID string, user *domain.User, watermark int64) (*domain.FeedBatch, error) {
	d, err := s.dialogueRepo.GetByID(ctx, dialogueID)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(access.ActionRead, d, user); err != nil {
		return nil, err
	}

	posts, err := s.postRepo.Since(ctx, d.ID, watermark, s.cfg.BatchLimit)
	if err != nil {
		return nil, err
	}
	return domain.NewFeedBatch(posts, watermark), nil
}

func (s *feedService) streamDone(parent, ctx context.Context) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrStreamExpired
	}
	return ctx.Err()
}

// clampWatermark: отрицательный курсор означает "с начала"
func clampWatermark(w int64) int64 {
	if w < 0 {
		return 0
	}
	return w
}

func pollStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

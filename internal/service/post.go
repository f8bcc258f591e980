package service

import (
	"context"

	"dialogues/internal/access"
	"dialogues/internal/domain"
	"dialogues/internal/metrics"
	"dialogues/internal/notify"
	"dialogues/internal/repository"
	apperrors "dialogues/pkg/errors"
	"dialogues/pkg/logger"
)

type PostService interface {
	Submit(ctx context.Context, dialogueID string, user *domain.User, rawBody string, watermark int64) (*domain.Submission, error)
	Edit(ctx context.Context, postID int64, user *domain.User, rawBody string) (*domain.Post, error)
	Delete(ctx context.Context, postID int64, user *domain.User) error
}

type postService struct {
	dialogueRepo repository.DialogueRepository
	postRepo     repository.PostRepository
	audit        AuditService
	notifier     *notify.Notifier
	metrics      *metrics.Metrics
	log          logger.Logger
}

func NewPostService(dialogueRepo repository.DialogueRepository, postRepo repository.PostRepository, audit AuditService, notifier *notify.Notifier, m *metrics.Metrics, log logger.Logger) PostService {
	return &postService{
		dialogueRepo: dialogueRepo,
		postRepo:     postRepo,
		audit:        audit,
		notifier:     notifier,
		metrics:      m,
		log:          log,
	}
}

// Submit публикует пост. Пустое после обрезки тело и отсутствие прав на запись
// возвращаются как Submission.Rejected, а не как ошибка. Принятая отправка
// возвращает все посты с id больше watermark, включая новый
func (s *postService) Submit(ctx context.Context, dialogueID string, user *domain.User, rawBody string, watermark int64) (*domain.Submission, error) {
	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}

	body := domain.NormalizeBody(rawBody)
	if body == "" {
		s.metrics.PostsRejected.WithLabelValues(string(domain.RejectEmptyBody)).Inc()
		return &domain.Submission{Rejected: domain.RejectEmptyBody}, nil
	}

	d, err := s.dialogueRepo.GetByID(ctx, dialogueID)
	if err != nil {
		return nil, err
	}

	if !access.CanWrite(d, user) {
		s.metrics.PostsRejected.WithLabelValues(string(domain.RejectForbidden)).Inc()
		s.log.Warn("Post rejected, not a participant", "dialogue_id", dialogueID, "user_id", user.ID)
		return &domain.Submission{Rejected: domain.RejectForbidden}, nil
	}

	post := &domain.Post{
		DialogueID: d.ID,
		Author:     *user,
		Body:       body,
	}
	if err := s.postRepo.Append(ctx, post); err != nil {
		return nil, err
	}

	s.metrics.PostsCreated.Inc()
	s.notifier.Publish(d.ID)
	s.log.Debug("Post created", "dialogue_id", d.ID, "post_id", post.ID, "author_id", user.ID)

	// Пост уже сохранен, поэтому ошибка догрузки не отменяет отправку
	watermark = clampWatermark(watermark)
	posts, err := s.postRepo.Since(ctx, d.ID, watermark, 0)
	if err != nil {
		s.log.Warn("Failed to load posts since watermark", "error", err, "dialogue_id", d.ID, "last_id", watermark)
		posts = []*domain.Post{post}
	}

	return &domain.Submission{Post: post, Batch: domain.NewFeedBatch(posts, watermark)}, nil
}

// Edit меняет текст поста. Уже доставленные клиентам посты повторно не
// рассылаются: курсор ленты идет только по новым id
func (s *postService) Edit(ctx context.Context, postID int64, user *domain.User, rawBody string) (*domain.Post, error) {
	post, err := s.authorizeOwnPost(ctx, postID, user)
	if err != nil {
		return nil, err
	}

	body := domain.NormalizeBody(rawBody)
	if body == "" {
		verr := apperrors.NewValidationError()
		verr.Add("body", "is required")
		return nil, verr
	}

	post.Body = body
	if err := s.postRepo.UpdateBody(ctx, post); err != nil {
		return nil, err
	}

	logAudit(ctx, s.audit, s.log, user, post.DialogueID, domain.EventTypePostEdited, map[string]interface{}{
		"post_id": post.ID,
	})
	return post, nil
}

func (s *postService) Delete(ctx context.Context, postID int64, user *domain.User) error {
	post, err := s.authorizeOwnPost(ctx, postID, user)
	if err != nil {
		return err
	}

	if err := s.postRepo.Delete(ctx, post.ID); err != nil {
		return err
	}

	logAudit(ctx, s.audit, s.log, user, post.DialogueID, domain.EventTypePostDeleted, map[string]interface{}{
		"post_id": post.ID,
	})
	return nil
}

// authorizeOwnPost: менять пост может только его автор, и только пока он участник диалога
func (s *postService) authorizeOwnPost(ctx context.Context, postID int64, user *domain.User) (*domain.Post, error) {
	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	d, err := s.dialogueRepo.GetByID(ctx, post.DialogueID)
	if err != nil {
		return nil, err
	}

	if post.Author.ID != user.ID {
		return nil, apperrors.ErrForbidden
	}
	if err := access.Authorize(access.ActionWrite, d, user); err != nil {
		return nil, err
	}
	return post, nil
}

package service

import (
	"context"

	"dialogues/internal/access"
	"dialogues/internal/domain"
	"dialogues/internal/notify"
	"dialogues/internal/repository"
	apperrors "dialogues/pkg/errors"
	"dialogues/pkg/logger"
)

type DialogueService interface {
	Create(ctx context.Context, user *domain.User, draft *domain.DialogueDraft) (*domain.Dialogue, error)
	View(ctx context.Context, id string, user *domain.User) (*domain.DialogueView, error)
	ToggleVisibility(ctx context.Context, id string, user *domain.User) (*domain.Dialogue, error)
	Delete(ctx context.Context, id string, user *domain.User) error
}

type dialogueService struct {
	dialogueRepo repository.DialogueRepository
	postRepo     repository.PostRepository
	audit        AuditService
	notifier     *notify.Notifier
	log          logger.Logger
}

func NewDialogueService(dialogueRepo repository.DialogueRepository, postRepo repository.PostRepository, audit AuditService, notifier *notify.Notifier, log logger.Logger) DialogueService {
	return &dialogueService{
		dialogueRepo: dialogueRepo,
		postRepo:     postRepo,
		audit:        audit,
		notifier:     notifier,
		log:          log,
	}
}

// Create: автор - всегда текущий пользователь, что бы ни пришло в черновике
func (s *dialogueService) Create(ctx context.Context, user *domain.User, draft *domain.DialogueDraft) (*domain.Dialogue, error) {
	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}
	if draft == nil {
		draft = &domain.DialogueDraft{}
	}
	draft.Author = user

	d, err := s.dialogueRepo.Create(ctx, draft)
	if err != nil {
		return nil, err
	}

	s.log.Info("Dialogue created", "dialogue_id", d.ID, "author_id", user.ID, "participants", len(d.Participants))
	logAudit(ctx, s.audit, s.log, user, d.ID, domain.EventTypeDialogueCreated, map[string]interface{}{
		"title":        d.Title,
		"is_visible":   d.IsVisible,
		"participants": len(d.Participants),
	})

	return d, nil
}

// View возвращает диалог со всеми постами. Просмотр публичного диалога
// не участником увеличивает счетчик просмотров
func (s *dialogueService) View(ctx context.Context, id string, user *domain.User) (*domain.DialogueView, error) {
	d, err := s.dialogueRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := access.Authorize(access.ActionRead, d, user); err != nil {
		return nil, err
	}

	posts, err := s.postRepo.ListByDialogue(ctx, d.ID)
	if err != nil {
		return nil, err
	}

	participant := user != nil && d.HasParticipant(user.ID)
	if d.IsVisible && !participant {
		if err := s.dialogueRepo.IncrementViews(ctx, d.ID); err != nil {
			s.log.Warn("Failed to count view", "error", err, "dialogue_id", d.ID)
		} else {
			d.Views++
		}
	}

	batch := domain.NewFeedBatch(posts, 0)
	return &domain.DialogueView{Dialogue: d, Posts: batch.Posts, LastID: batch.LastID}, nil
}

func (s *dialogueService) ToggleVisibility(ctx context.Context, id string, user *domain.User) (*domain.Dialogue, error) {
	d, err := s.dialogueRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(access.ActionManage, d, user); err != nil {
		return nil, err
	}

	updated, err := s.dialogueRepo.ToggleVisibility(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Info("Dialogue visibility toggled", "dialogue_id", id, "is_visible", updated.IsVisible)
	logAudit(ctx, s.audit, s.log, user, id, domain.EventTypeDialogueVisibilityToggled, map[string]interface{}{
		"is_visible": updated.IsVisible,
	})

	// Открытые потоки сразу перепроверят доступ
	s.notifier.Publish(id)
	return updated, nil
}

func (s *dialogueService) Delete(ctx context.Context, id string, user *domain.User) error {
	d, err := s.dialogueRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := access.Authorize(access.ActionManage, d, user); err != nil {
		return err
	}

	if err := s.dialogueRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info("Dialogue deleted", "dialogue_id", id, "author_id", user.ID)
	logAudit(ctx, s.audit, s.log, user, id, domain.EventTypeDialogueDeleted, map[string]interface{}{
		"title": d.Title,
	})

	s.notifier.Publish(id)
	return nil
}

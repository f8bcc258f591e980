package service

import (
	"context"

	"dialogues/internal/domain"
	"dialogues/internal/repository"
	apperrors "dialogues/pkg/errors"
	"dialogues/pkg/logger"
)

type DashboardService interface {
	For(ctx context.Context, user *domain.User) ([]*domain.DashboardEntry, error)
}

type dashboardService struct {
	dialogueRepo repository.DialogueRepository
	log          logger.Logger
}

func NewDashboardService(dialogueRepo repository.DialogueRepository, log logger.Logger) DashboardService {
	return &dashboardService{dialogueRepo: dialogueRepo, log: log}
}

// For - диалоги пользователя в порядке, который дает ListForUser
func (s *dashboardService) For(ctx context.Context, user *domain.User) ([]*domain.DashboardEntry, error) {
	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}

	list, err := s.dialogueRepo.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]*domain.DashboardEntry, 0, len(list))
	for _, a := range list {
		d := a.Dialogue
		entries = append(entries, &domain.DashboardEntry{
			ID:               d.ID,
			Title:            d.Title,
			Summary:          d.Summary,
			IsVisible:        d.IsVisible,
			IsOpen:           d.IsOpen,
			Author:           d.Author,
			ParticipantCount: len(d.Participants),
			PostCount:        a.PostCount,
			Views:            d.Views,
			ActivityOn:       a.ActivityOn,
		})
	}
	return entries, nil
}

package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"dialogues/internal/domain"
	"dialogues/internal/repository"
	apperrors "dialogues/pkg/errors"
	"dialogues/pkg/logger"
)

type UserService interface {
	// Provision сохраняет пользователя, пришедшего из токена
	Provision(ctx context.Context, user *domain.User) (*domain.User, error)
	GetMe(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	Search(ctx context.Context, query string, requester *domain.User) ([]*domain.User, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

type userService struct {
	userRepo repository.UserRepository
	log      logger.Logger
}

func NewUserService(userRepo repository.UserRepository, log logger.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		log:      log,
	}
}

func (s *userService) Provision(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, apperrors.ErrInvalidToken
	}
	// Служебным пользователем войти нельзя
	if user.IsDeleted() {
		return nil, apperrors.ErrForbidden
	}
	if user.Username == "" {
		user.Username = user.ID.String()
	}

	if err := s.userRepo.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) GetMe(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// Search для выбора участников: не короче двух символов, без самого
// пользователя, не больше десяти результатов
func (s *userService) Search(ctx context.Context, query string, requester *domain.User) ([]*domain.User, error) {
	if requester == nil {
		return nil, apperrors.ErrUnauthorized
	}

	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < domain.UserSearchMinQuery {
		return []*domain.User{}, nil
	}

	return s.userRepo.Search(ctx, query, requester.ID, domain.UserSearchLimit)
}

func (s *userService) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return err
	}
	s.log.Info("User deleted, dialogues handed over to sentinel", "user_id", userID)
	return nil
}

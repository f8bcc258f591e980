package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/redis/go-redis/v9"

	"dialogues/internal/domain"
	"dialogues/pkg/logger"
)

// Сколько раз пытаемся сгенерировать id диалога при коллизии
const maxIDAttempts = 5

type DialogueRepository interface {
	Create(ctx context.Context, draft *domain.DialogueDraft) (*domain.Dialogue, error)
	GetByID(ctx context.Context, id string) (*domain.Dialogue, error)
	Delete(ctx context.Context, id string) error
	ToggleVisibility(ctx context.Context, id string) (*domain.Dialogue, error)
	IncrementViews(ctx context.Context, id string) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.DialogueActivity, error)
}

type PostRepository interface {
	Append(ctx context.Context, post *domain.Post) error
	// Since возвращает посты диалога с id > watermark по возрастанию id.
	// limit <= 0 - без ограничения
	Since(ctx context.Context, dialogueID string, watermark int64, limit int) ([]*domain.Post, error)
	ListByDialogue(ctx context.Context, dialogueID string) ([]*domain.Post, error)
	GetByID(ctx context.Context, id int64) (*domain.Post, error)
	UpdateBody(ctx context.Context, post *domain.Post) error
	Delete(ctx context.Context, id int64) error
}

type UserRepository interface {
	Upsert(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Search(ctx context.Context, query string, excludeID uuid.UUID, limit int) ([]*domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type AuditRepository interface {
	CreateLog(ctx context.Context, log *domain.AuditLog) error
}

type RateLimitRepository interface {
	// Allow учитывает попытку и сообщает, укладывается ли она в limit за window
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Repositories struct {
	User      UserRepository
	Dialogue  DialogueRepository
	Post      PostRepository
	Audit     AuditRepository
	RateLimit RateLimitRepository
}

// NewRepositories собирает Postgres репозитории. Без redis лимиты
// считаются в памяти процесса.
func NewRepositories(db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	repos := &Repositories{
		User:     NewUserRepository(db, log),
		Dialogue: NewDialogueRepository(db, log),
		Post:     NewPostRepository(db, log),
		Audit:    NewAuditRepository(db, log),
	}

	if redis != nil {
		repos.RateLimit = NewRateLimitRepository(redis, log)
	} else {
		log.Warn("Redis is not configured, rate limit falls back to in-process limiter")
	}

	return repos
}

// NewDialogueID генерирует короткий id диалога
func NewDialogueID() (string, error) {
	return gonanoid.New(domain.DialogueIDLength)
}

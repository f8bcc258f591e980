package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dialogues/internal/domain"
	apperrors "dialogues/pkg/errors"
	"dialogues/pkg/logger"
)

type userRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewUserRepository(db *pgxpool.Pool, log logger.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

// Upsert сохраняет пользователя из токена. Имена обновляются при каждом входе
func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, username, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username, display_name = EXCLUDED.display_name
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query, user.ID, user.Username, user.DisplayName).Scan(&user.CreatedAt)
	if err != nil {
		r.log.Error("Failed to upsert user", "error", err, "user_id", user.ID)
		return storageError(err)
	}

	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, username, display_name, created_at
		FROM users
		WHERE id = $1
	`

	user := &domain.User{}
	err := r.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.Username, &user.DisplayName, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		r.log.Error("Failed to get user by ID", "error", err)
		return nil, storageError(err)
	}

	return user, nil
}

// Search ищет по подстроке в username или display_name без учета регистра
func (r *userRepository) Search(ctx context.Context, query string, excludeID uuid.UUID, limit int) ([]*domain.User, error) {
	sql := `
		SELECT id, username, display_name, created_at
		FROM users
		WHERE id <> $2 AND id <> $3
		  AND (username ILIKE $1 ESCAPE '\' OR display_name ILIKE $1 ESCAPE '\')
		ORDER BY username
		LIMIT $4
	`

	pattern := "%" + escapeLike(query) + "%"
	rows, err := r.db.Query(ctx, sql, pattern, excludeID, domain.DeletedUserID, limit)
	if err != nil {
		r.log.Error("Failed to search users", "error", err)
		return nil, storageError(err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user := &domain.User{}
		if err := rows.Scan(&user.ID, &user.Username, &user.DisplayName, &user.CreatedAt); err != nil {
			r.log.Error("Failed to scan user", "error", err)
			return nil, storageError(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err)
	}

	return users, nil
}

// Delete удаляет пользователя. Его диалоги переходят служебному пользователю
// (ON DELETE SET DEFAULT), посты удаляются каскадом
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if id == domain.DeletedUserID {
		return fmt.Errorf("sentinel user cannot be deleted: %w", apperrors.ErrBadRequest)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return storageError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Служебный пользователь занимает место автора среди участников,
	// чтобы у диалога оставался хотя бы один участник
	_, err = tx.Exec(ctx, `
		UPDATE dialogue_participants
		SET user_id = $2
		WHERE user_id = $1 AND dialogue_id IN (SELECT id FROM dialogues WHERE author_id = $1)
	`, id, domain.DeletedUserID)
	if err != nil {
		r.log.Error("Failed to hand over participation", "error", err, "user_id", id)
		return storageError(err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		r.log.Error("Failed to delete user", "error", err, "user_id", id)
		return storageError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}

	return storageError(tx.Commit(ctx))
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

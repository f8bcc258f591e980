package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dialogues/internal/domain"
	apperrors "dialogues/pkg/errors"
	"dialogues/pkg/logger"
)

const postColumns = `
	p.id, p.dialogue_id, p.body, p.created_on, p.modified_on,
	u.id, u.username, u.display_name, u.created_at`

type postRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewPostRepository(db *pgxpool.Pool, log logger.Logger) PostRepository {
	return &postRepository{db: db, log: log}
}

// Append добавляет пост. id выдает BIGSERIAL. Строка диалога блокируется на время
// транзакции, поэтому внутри одного диалога коммиты идут в порядке id и читатель
// с курсором не пропустит пост, закоммиченный позже поста с большим id
func (r *postRepository) Append(ctx context.Context, post *domain.Post) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return storageError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM dialogues WHERE id = $1 FOR UPDATE`, post.DialogueID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrDialogueNotFound
		}
		r.log.Error("Failed to lock dialogue", "error", err, "dialogue_id", post.DialogueID)
		return storageError(err)
	}

	query := `
		INSERT INTO posts (dialogue_id, author_id, body, created_on, modified_on)
		VALUES ($1, $2, $3, clock_timestamp(), clock_timestamp())
		RETURNING id, created_on, modified_on
	`
	err = tx.QueryRow(ctx, query, post.DialogueID, post.Author.ID, post.Body).
		Scan(&post.ID, &post.CreatedOn, &post.ModifiedOn)
	if err != nil {
		if isPgCode(err, pgForeignKeyViolation) {
			return apperrors.ErrUserNotFound
		}
		r.log.Error("Failed to create post", "error", err, "dialogue_id", post.DialogueID)
		return storageError(err)
	}

	_, err = tx.Exec(ctx, `UPDATE dialogues SET modified_on = $2 WHERE id = $1`, post.DialogueID, post.CreatedOn)
	if err != nil {
		r.log.Error("Failed to touch dialogue", "error", err, "dialogue_id", post.DialogueID)
		return storageError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit post", "error", err, "dialogue_id", post.DialogueID)
		return storageError(err)
	}
	return nil
}

func (r *postRepository) Since(ctx context.Context, dialogueID string, watermark int64, limit int) ([]*domain.Post, error) {
	query := `SELECT` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.dialogue_id = $1 AND p.id > $2
		ORDER BY p.id ASC
		LIMIT $3
	`

	// LIMIT NULL - без ограничения
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := r.db.Query(ctx, query, dialogueID, watermark, lim)
	if err != nil {
		r.log.Error("Failed to get posts", "error", err, "dialogue_id", dialogueID)
		return nil, storageError(err)
	}
	defer rows.Close()

	posts := []*domain.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			r.log.Error("Failed to scan post", "error", err)
			return nil, storageError(err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		r.log.Error("Failed to iterate posts", "error", err)
		return nil, storageError(err)
	}

	return posts, nil
}

func (r *postRepository) ListByDialogue(ctx context.Context, dialogueID string) ([]*domain.Post, error) {
	return r.Since(ctx, dialogueID, 0, 0)
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	query := `SELECT` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.id = $1
	`

	post, err := scanPost(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrPostNotFound
		}
		r.log.Error("Failed to get post", "error", err, "post_id", id)
		return nil, storageError(err)
	}
	return post, nil
}

func (r *postRepository) UpdateBody(ctx context.Context, post *domain.Post) error {
	query := `
		UPDATE posts
		SET body = $2, modified_on = clock_timestamp()
		WHERE id = $1
		RETURNING modified_on
	`

	err := r.db.QueryRow(ctx, query, post.ID, post.Body).Scan(&post.ModifiedOn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrPostNotFound
		}
		r.log.Error("Failed to update post", "error", err, "post_id", post.ID)
		return storageError(err)
	}
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		r.log.Error("Failed to delete post", "error", err, "post_id", id)
		return storageError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrPostNotFound
	}
	return nil
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	p := &domain.Post{}
	err := row.Scan(
		&p.ID, &p.DialogueID, &p.Body, &p.CreatedOn, &p.ModifiedOn,
		&p.Author.ID, &p.Author.Username, &p.Author.DisplayName, &p.Author.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

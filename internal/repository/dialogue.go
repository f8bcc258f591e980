package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dialogues/internal/domain"
	apperrors "dialogues/pkg/errors"
	"dialogues/pkg/logger"
)

const dialogueColumns = `
	d.id, d.title, d.summary, d.is_visible, d.is_open, d.views, d.created_on, d.modified_on,
	u.id, u.username, u.display_name, u.created_at`

type dialogueRepository struct {
	db    *pgxpool.Pool
	log   logger.Logger
	newID func() (string, error)
}

func NewDialogueRepository(db *pgxpool.Pool, log logger.Logger) DialogueRepository {
	return &dialogueRepository{db: db, log: log, newID: NewDialogueID}
}

// Create создает диалог, автора-участника и дополнительных участников одной транзакцией
func (r *dialogueRepository) Create(ctx context.Context, draft *domain.DialogueDraft) (*domain.Dialogue, error) {
	if err := domain.ValidateDraft(draft); err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return nil, storageError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	id, err := r.insertDialogue(ctx, tx, draft)
	if err != nil {
		return nil, err
	}

	// Автор всегда участник
	_, err = tx.Exec(ctx,
		`INSERT INTO dialogue_participants (dialogue_id, user_id) VALUES ($1, $2)`,
		id, draft.Author.ID,
	)
	if err != nil {
		r.log.Error("Failed to add author as participant", "error", err, "dialogue_id", id)
		return nil, storageError(err)
	}

	// Неизвестные id пользователей молча пропускаются
	if extras := draft.ExtraParticipants(); len(extras) > 0 {
		ids := make([]string, len(extras))
		for i, p := range extras {
			ids[i] = p.String()
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO dialogue_participants (dialogue_id, user_id)
			SELECT $1, u.id FROM users u
			WHERE u.id = ANY($2::uuid[]) AND u.id <> $3
			ON CONFLICT DO NOTHING
		`, id, ids, domain.DeletedUserID)
		if err != nil {
			r.log.Error("Failed to add participants", "error", err, "dialogue_id", id)
			return nil, storageError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit dialogue", "error", err, "dialogue_id", id)
		return nil, storageError(err)
	}

	return r.GetByID(ctx, id)
}

func (r *dialogueRepository) insertDialogue(ctx context.Context, tx pgx.Tx, draft *domain.DialogueDraft) (string, error) {
	query := `
		INSERT INTO dialogues (id, title, summary, is_visible, is_open, author_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		candidate, err := r.newID()
		if err != nil {
			return "", fmt.Errorf("generate dialogue id: %w", err)
		}

		var id string
		err = tx.QueryRow(ctx, query,
			candidate, draft.Title, draft.Summary, draft.IsVisible, draft.IsOpen, draft.Author.ID,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			r.log.Warn("Dialogue id collision, retrying", "id", candidate, "attempt", attempt)
			continue
		}
		if err != nil {
			if isPgCode(err, pgForeignKeyViolation) {
				return "", apperrors.ErrUserNotFound
			}
			r.log.Error("Failed to create dialogue", "error", err)
			return "", storageError(err)
		}
		return id, nil
	}

	return "", fmt.Errorf("no free dialogue id after %d attempts", maxIDAttempts)
}

func (r *dialogueRepository) GetByID(ctx context.Context, id string) (*domain.Dialogue, error) {
	query := `SELECT` + dialogueColumns + `
		FROM dialogues d
		JOIN users u ON u.id = d.author_id
		WHERE d.id = $1
	`

	d, err := scanDialogue(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrDialogueNotFound
		}
		r.log.Error("Failed to get dialogue", "error", err, "dialogue_id", id)
		return nil, storageError(err)
	}

	participants, err := r.loadParticipants(ctx, []string{d.ID})
	if err != nil {
		return nil, err
	}
	d.Participants = participants[d.ID]

	return d, nil
}

func (r *dialogueRepository) Delete(ctx context.Context, id string) error {
	// Посты и участники удаляются каскадом
	tag, err := r.db.Exec(ctx, `DELETE FROM dialogues WHERE id = $1`, id)
	if err != nil {
		r.log.Error("Failed to delete dialogue", "error", err, "dialogue_id", id)
		return storageError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrDialogueNotFound
	}
	return nil
}

func (r *dialogueRepository) ToggleVisibility(ctx context.Context, id string) (*domain.Dialogue, error) {
	query := `
		UPDATE dialogues
		SET is_visible = NOT is_visible, modified_on = NOW()
		WHERE id = $1
		RETURNING id
	`

	var updated string
	if err := r.db.QueryRow(ctx, query, id).Scan(&updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrDialogueNotFound
		}
		r.log.Error("Failed to toggle visibility", "error", err, "dialogue_id", id)
		return nil, storageError(err)
	}

	return r.GetByID(ctx, updated)
}

func (r *dialogueRepository) IncrementViews(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE dialogues SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		r.log.Error("Failed to increment views", "error", err, "dialogue_id", id)
		return storageError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrDialogueNotFound
	}
	return nil
}

// ListForUser возвращает диалоги пользователя, новые по активности первыми.
// Активность - время последнего поста, а без постов - время создания диалога
func (r *dialogueRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.DialogueActivity, error) {
	query := `SELECT` + dialogueColumns + `,
		       COALESCE(MAX(p.created_on), d.created_on) AS activity_on,
		       COUNT(p.id) AS post_count
		FROM dialogues d
		JOIN users u ON u.id = d.author_id
		JOIN dialogue_participants dp ON dp.dialogue_id = d.id AND dp.user_id = $1
		LEFT JOIN posts p ON p.dialogue_id = d.id
		GROUP BY d.id, u.id
		ORDER BY activity_on DESC, d.created_on DESC, d.id
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to list dialogues", "error", err, "user_id", userID)
		return nil, storageError(err)
	}
	defer rows.Close()

	var result []*domain.DialogueActivity
	var ids []string
	for rows.Next() {
		d := &domain.Dialogue{}
		a := &domain.DialogueActivity{Dialogue: d}
		err := rows.Scan(
			&d.ID, &d.Title, &d.Summary, &d.IsVisible, &d.IsOpen, &d.Views, &d.CreatedOn, &d.ModifiedOn,
			&d.Author.ID, &d.Author.Username, &d.Author.DisplayName, &d.Author.CreatedAt,
			&a.ActivityOn, &a.PostCount,
		)
		if err != nil {
			r.log.Error("Failed to scan dialogue", "error", err)
			return nil, storageError(err)
		}
		result = append(result, a)
		ids = append(ids, d.ID)
	}
	if err := rows.Err(); err != nil {
		r.log.Error("Failed to iterate dialogues", "error", err)
		return nil, storageError(err)
	}

	if len(ids) == 0 {
		return result, nil
	}
	participants, err := r.loadParticipants(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, a := range result {
		a.Dialogue.Participants = participants[a.Dialogue.ID]
	}

	return result, nil
}

func (r *dialogueRepository) loadParticipants(ctx context.Context, dialogueIDs []string) (map[string][]domain.User, error) {
	query := `
		SELECT dp.dialogue_id, u.id, u.username, u.display_name, u.created_at
		FROM dialogue_participants dp
		JOIN users u ON u.id = dp.user_id
		WHERE dp.dialogue_id = ANY($1)
		ORDER BY dp.joined_at, u.username
	`

	rows, err := r.db.Query(ctx, query, dialogueIDs)
	if err != nil {
		r.log.Error("Failed to load participants", "error", err)
		return nil, storageError(err)
	}
	defer rows.Close()

	result := make(map[string][]domain.User, len(dialogueIDs))
	for rows.Next() {
		var dialogueID string
		var u domain.User
		if err := rows.Scan(&dialogueID, &u.ID, &u.Username, &u.DisplayName, &u.CreatedAt); err != nil {
			r.log.Error("Failed to scan participant", "error", err)
			return nil, storageError(err)
		}
		result[dialogueID] = append(result[dialogueID], u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err)
	}

	return result, nil
}

func scanDialogue(row pgx.Row) (*domain.Dialogue, error) {
	d := &domain.Dialogue{}
	err := row.Scan(
		&d.ID, &d.Title, &d.Summary, &d.IsVisible, &d.IsOpen, &d.Views, &d.CreatedOn, &d.ModifiedOn,
		&d.Author.ID, &d.Author.Username, &d.Author.DisplayName, &d.Author.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

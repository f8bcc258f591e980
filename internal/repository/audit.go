package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"dialogues/internal/domain"
	"dialogues/pkg/logger"
)

type auditRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

func (r *auditRepository) CreateLog(ctx context.Context, auditLog *domain.AuditLog) error {
	query := `
		INSERT INTO audit_log (event_time, actor_user_id, dialogue_id, event_type, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	payload := auditLog.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}

	err := r.db.QueryRow(ctx, query,
		auditLog.EventTime, auditLog.ActorUserID, auditLog.DialogueID,
		auditLog.EventType, payload,
	).Scan(&auditLog.ID)

	if err != nil {
		r.log.Error("Failed to create audit log", "error", err, "event_type", auditLog.EventType)
		return storageError(err)
	}

	return nil
}

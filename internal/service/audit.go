package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dialogues/internal/domain"
	"dialogues/internal/repository"
	"dialogues/pkg/logger"
)

type AuditService interface {
	LogEvent(ctx context.Context, actorUserID *uuid.UUID, dialogueID string, eventType string, payload map[string]interface{}) error
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) LogEvent(ctx context.Context, actorUserID *uuid.UUID, dialogueID string, eventType string, payload map[string]interface{}) error {
	if payload == nil {
		payload = make(map[string]interface{})
	}

	auditLog := &domain.AuditLog{
		EventTime:   time.Now().UTC(),
		ActorUserID: actorUserID,
		EventType:   eventType,
		Payload:     payload,
	}
	if dialogueID != "" {
		auditLog.DialogueID = &dialogueID
	}

	return s.auditRepo.CreateLog(ctx, auditLog)
}

// logAudit пишет событие аудита. Ошибка аудита не ломает основную операцию
func logAudit(ctx context.Context, audit AuditService, log logger.Logger, actor *domain.User, dialogueID, eventType string, payload map[string]interface{}) {
	if audit == nil {
		return
	}
	var actorID *uuid.UUID
	if actor != nil {
		id := actor.ID
		actorID = &id
	}
	if err := audit.LogEvent(ctx, actorID, dialogueID, eventType, payload); err != nil {
		log.Warn("Failed to write audit event", "error", err, "event_type", eventType, "dialogue_id", dialogueID)
	}
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID          int64                  `json:"id"`
	EventTime   time.Time              `json:"event_time"`
	ActorUserID *uuid.UUID             `json:"actor_user_id,omitempty"`
	DialogueID  *string                `json:"dialogue_id,omitempty"`
	EventType   string                 `json:"event_type"`
	Payload     map[string]interface{} `json:"payload"`
}

const (
	EventTypeDialogueCreated           = "DIALOGUE_CREATED"
	EventTypeDialogueDeleted           = "DIALOGUE_DELETED"
	EventTypeDialogueVisibilityToggled = "DIALOGUE_VISIBILITY_TOGGLED"
	EventTypePostEdited                = "POST_EDITED"
	EventTypePostDeleted               = "POST_DELETED"
)

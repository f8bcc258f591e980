package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "dialogues/pkg/errors"
)

const (
	DialogueIDLength = 10
	TitleMaxLength   = 200
)

type Dialogue struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	IsVisible    bool      `json:"is_visible"`
	IsOpen       bool      `json:"is_open"`
	Author       User      `json:"author"`
	Participants []User    `json:"participants"`
	Views        int64     `json:"views"`
	CreatedOn    time.Time `json:"created_on"`
	ModifiedOn   time.Time `json:"modified_on"`
}

func (d *Dialogue) HasParticipant(userID uuid.UUID) bool {
	for _, p := range d.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// DialogueDraft - входные данные для создания диалога
type DialogueDraft struct {
	Title          string
	Summary        string
	IsVisible      bool
	IsOpen         bool
	Author         *User
	ParticipantIDs []uuid.UUID
}

// ValidateDraft обрезает пробелы в черновике и проверяет обязательные поля
func ValidateDraft(draft *DialogueDraft) error {
	verr := apperrors.NewValidationError()
	if draft == nil {
		verr.Add("dialogue", "is required")
		return verr
	}

	draft.Title = strings.TrimSpace(draft.Title)
	draft.Summary = strings.TrimSpace(draft.Summary)

	switch {
	case draft.Title == "":
		verr.Add("title", "is required")
	case utf8.RuneCountInString(draft.Title) > TitleMaxLength:
		verr.Add("title", "must be at most 200 characters")
	}
	if draft.Author == nil || draft.Author.ID == uuid.Nil {
		verr.Add("author", "is required")
	}
	return verr.OrNil()
}

// ExtraParticipants возвращает дополнительных участников без автора и без дублей,
// порядок запроса сохраняется
func (draft *DialogueDraft) ExtraParticipants() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(draft.ParticipantIDs)+1)
	if draft.Author != nil {
		seen[draft.Author.ID] = struct{}{}
	}
	out := make([]uuid.UUID, 0, len(draft.ParticipantIDs))
	for _, id := range draft.ParticipantIDs {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// DialogueActivity - диалог и время последней активности: время последнего поста,
// либо время создания диалога, если постов нет
type DialogueActivity struct {
	Dialogue   *Dialogue
	ActivityOn time.Time
	PostCount  int64
}

type DashboardEntry struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Summary          string    `json:"summary"`
	IsVisible        bool      `json:"is_visible"`
	IsOpen           bool      `json:"is_open"`
	Author           User      `json:"author"`
	ParticipantCount int       `json:"participant_count"`
	PostCount        int64     `json:"post_count"`
	Views            int64     `json:"views"`
	ActivityOn       time.Time `json:"activity_on"`
}

package domain

import (
	"strings"
	"time"
)

type Post struct {
	ID         int64     `json:"id"`
	DialogueID string    `json:"dialogue_id"`
	Author     User      `json:"author"`
	Body       string    `json:"body"`
	CreatedOn  time.Time `json:"created_on"`
	ModifiedOn time.Time `json:"modified_on"`
}

// NormalizeBody обрезает пробелы по краям. Пустой результат - публиковать нечего
func NormalizeBody(raw string) string {
	return strings.TrimSpace(raw)
}

type RejectReason string

const (
	RejectEmptyBody RejectReason = "EMPTY_BODY"
	RejectForbidden RejectReason = "FORBIDDEN"
)

// Submission - результат отправки поста: сохраненный пост или причина отказа.
// Batch - посты после курсора клиента вместе с новым, чтобы клиент не пропустил
// чужие посты, пришедшие между опросом и отправкой
type Submission struct {
	Post     *Post
	Batch    *FeedBatch
	Rejected RejectReason
}

func (s *Submission) Accepted() bool {
	return s.Post != nil && s.Rejected == ""
}

// FeedBatch - одна порция обновлений. LastID - новый курсор клиента:
// максимальный id в порции или прежний курсор, если порция пустая
type FeedBatch struct {
	Posts  []*Post `json:"posts"`
	LastID int64   `json:"last_id"`
}

func NewFeedBatch(posts []*Post, watermark int64) *FeedBatch {
	if posts == nil {
		posts = []*Post{}
	}
	last := watermark
	for _, p := range posts {
		if p.ID > last {
			last = p.ID
		}
	}
	return &FeedBatch{Posts: posts, LastID: last}
}

// DialogueView - диалог с постами при открытии
type DialogueView struct {
	Dialogue *Dialogue `json:"dialogue"`
	Posts    []*Post   `json:"posts"`
	LastID   int64     `json:"last_id"`
}

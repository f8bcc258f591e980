// Package access решает, что пользователь может делать с диалогом.
// Функции не хранят состояния и вызываются на каждый запрос.
package access

import (
	"fmt"

	"dialogues/internal/domain"
	apperrors "dialogues/pkg/errors"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionManage Action = "manage"
)

// CanRead: публичный диалог читают все, закрытый - только участники.
// user == nil означает анонимного пользователя.
func CanRead(d *domain.Dialogue, user *domain.User) bool {
	if d == nil {
		return false
	}
	return d.IsVisible || isParticipant(d, user)
}

// CanWrite: писать могут только участники, видимость здесь не важна.
func CanWrite(d *domain.Dialogue, user *domain.User) bool {
	return d != nil && isParticipant(d, user)
}

// CanManage: удалять диалог и менять видимость может только автор.
func CanManage(d *domain.Dialogue, user *domain.User) bool {
	if d == nil || user == nil {
		return false
	}
	return !d.Author.IsDeleted() && d.Author.ID == user.ID
}

func Authorize(action Action, d *domain.Dialogue, user *domain.User) error {
	var allowed bool
	switch action {
	case ActionRead:
		allowed = CanRead(d, user)
	case ActionWrite:
		allowed = CanWrite(d, user)
	case ActionManage:
		allowed = CanManage(d, user)
	default:
		return fmt.Errorf("unknown action %q: %w", action, apperrors.ErrForbidden)
	}
	if !allowed {
		return fmt.Errorf("%s dialogue: %w", action, apperrors.ErrForbidden)
	}
	return nil
}

func isParticipant(d *domain.Dialogue, user *domain.User) bool {
	return user != nil && d.HasParticipant(user.ID)
}

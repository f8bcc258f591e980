package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeletedUsername - имя служебного пользователя, к которому переходят
// диалоги удаленного автора
const DeletedUsername = "deleted"

// DeletedUserID фиксирован, схема БД использует его как DEFAULT
var DeletedUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// User - пользователь из внешнего сервиса аутентификации.
// Локально только зеркалируется
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

func (u User) IsDeleted() bool {
	return u.ID == DeletedUserID
}

func DeletedUser() User {
	return User{ID: DeletedUserID, Username: DeletedUsername}
}

const (
	UserSearchMinQuery = 2
	UserSearchLimit    = 10
)

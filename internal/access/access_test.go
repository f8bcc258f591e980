package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"dialogues/internal/domain"
	apperrors "dialogues/pkg/errors"
)

func fixture(visible bool) (*domain.Dialogue, *domain.User, *domain.User, *domain.User) {
	author := &domain.User{ID: uuid.New(), Username: "author"}
	member := &domain.User{ID: uuid.New(), Username: "member"}
	stranger := &domain.User{ID: uuid.New(), Username: "stranger"}
	d := &domain.Dialogue{
		ID:           "abcdefghij",
		IsVisible:    visible,
		Author:       *author,
		Participants: []domain.User{*author, *member},
	}
	return d, author, member, stranger
}

func TestCanRead(t *testing.T) {
	d, author, member, stranger := fixture(false)

	assert.True(t, CanRead(d, author))
	assert.True(t, CanRead(d, member))
	assert.False(t, CanRead(d, stranger))
	assert.False(t, CanRead(d, nil))

	d.IsVisible = true
	assert.True(t, CanRead(d, stranger))
	assert.True(t, CanRead(d, nil))
}

func TestCanWrite_RequiresParticipation(t *testing.T) {
	for _, visible := range []bool{true, false} {
		d, author, member, stranger := fixture(visible)

		assert.True(t, CanWrite(d, author))
		assert.True(t, CanWrite(d, member))
		assert.False(t, CanWrite(d, stranger), "visible=%v", visible)
		assert.False(t, CanWrite(d, nil))
	}
}

func TestCanManage_AuthorOnly(t *testing.T) {
	d, author, member, stranger := fixture(true)

	assert.True(t, CanManage(d, author))
	assert.False(t, CanManage(d, member))
	assert.False(t, CanManage(d, stranger))
	assert.False(t, CanManage(d, nil))
}

func TestCanManage_DeletedAuthor(t *testing.T) {
	d, _, _, _ := fixture(true)
	d.Author = domain.DeletedUser()
	deleted := domain.DeletedUser()

	assert.False(t, CanManage(d, &deleted))
}

func TestAuthorize(t *testing.T) {
	d, author, _, stranger := fixture(false)

	assert.NoError(t, Authorize(ActionManage, d, author))
	assert.ErrorIs(t, Authorize(ActionRead, d, stranger), apperrors.ErrForbidden)
	assert.ErrorIs(t, Authorize(ActionWrite, d, nil), apperrors.ErrForbidden)
	assert.ErrorIs(t, Authorize(Action("bogus"), d, author), apperrors.ErrForbidden)
	assert.ErrorIs(t, Authorize(ActionRead, nil, author), apperrors.ErrForbidden)
}

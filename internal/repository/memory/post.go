package memory

import (
	"context"
	"sort"

	"dialogues/internal/domain"
	apperrors "dialogues/pkg/errors"
)

type postRepository struct {
	s *Store
}

// Append выдает id и вставляет пост под одной блокировкой, поэтому id строго
// растут и читатель никогда не увидит пост раньше поста с меньшим id
func (r *postRepository) Append(ctx context.Context, post *domain.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.dialogues[post.DialogueID]
	if !ok {
		return apperrors.ErrDialogueNotFound
	}
	if _, ok := r.s.users[post.Author.ID]; !ok {
		return apperrors.ErrUserNotFound
	}

	now := r.s.now()
	r.s.lastPostID++
	row := &postRow{
		id:         r.s.lastPostID,
		dialogueID: post.DialogueID,
		authorID:   post.Author.ID,
		body:       post.Body,
		createdOn:  now,
		modifiedOn: now,
	}
	r.s.posts[row.id] = row
	r.s.postsByDialogue[row.dialogueID] = append(r.s.postsByDialogue[row.dialogueID], row.id)
	d.modifiedOn = now

	post.ID = row.id
	post.CreatedOn = now
	post.ModifiedOn = now
	post.Author = r.s.userOrDeleted(row.authorID)
	return nil
}

func (r *postRepository) Since(ctx context.Context, dialogueID string, watermark int64, limit int) ([]*domain.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := r.s.postsByDialogue[dialogueID]
	start := sort.Search(len(ids), func(i int) bool { return ids[i] > watermark })

	posts := []*domain.Post{}
	for _, id := range ids[start:] {
		if limit > 0 && len(posts) == limit {
			break
		}
		posts = append(posts, r.s.toPost(r.s.posts[id]))
	}
	return posts, nil
}

func (r *postRepository) ListByDialogue(ctx context.Context, dialogueID string) ([]*domain.Post, error) {
	return r.Since(ctx, dialogueID, 0, 0)
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.posts[id]
	if !ok {
		return nil, apperrors.ErrPostNotFound
	}
	return r.s.toPost(row), nil
}

func (r *postRepository) UpdateBody(ctx context.Context, post *domain.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.posts[post.ID]
	if !ok {
		return apperrors.ErrPostNotFound
	}
	row.body = post.Body
	row.modifiedOn = r.s.now()
	post.ModifiedOn = row.modifiedOn
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.posts[id]; !ok {
		return apperrors.ErrPostNotFound
	}
	r.s.removePost(id)
	return nil
}

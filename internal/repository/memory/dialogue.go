package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"dialogues/internal/domain"
	apperrors "dialogues/pkg/errors"
)

type dialogueRepository struct {
	s *Store
}

func (r *dialogueRepository) Create(ctx context.Context, draft *domain.DialogueDraft) (*domain.Dialogue, error) {
	if err := domain.ValidateDraft(draft); err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[draft.Author.ID]; !ok {
		return nil, apperrors.ErrUserNotFound
	}

	id, err := r.freeID()
	if err != nil {
		return nil, err
	}

	now := r.s.now()
	row := &dialogueRow{
		id:           id,
		title:        draft.Title,
		summary:      draft.Summary,
		isVisible:    draft.IsVisible,
		isOpen:       draft.IsOpen,
		authorID:     draft.Author.ID,
		participants: []uuid.UUID{draft.Author.ID},
		createdOn:    now,
		modifiedOn:   now,
	}
	for _, p := range draft.ExtraParticipants() {
		if _, ok := r.s.users[p]; !ok || p == domain.DeletedUserID {
			continue
		}
		row.participants = append(row.participants, p)
	}

	r.s.dialogues[id] = row
	return r.s.toDialogue(row), nil
}

func (r *dialogueRepository) freeID() (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := r.s.newID()
		if err != nil {
			return "", fmt.Errorf("generate dialogue id: %w", err)
		}
		if _, taken := r.s.dialogues[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("no free dialogue id after %d attempts", maxIDAttempts)
}

func (r *dialogueRepository) GetByID(ctx context.Context, id string) (*domain.Dialogue, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.dialogues[id]
	if !ok {
		return nil, apperrors.ErrDialogueNotFound
	}
	return r.s.toDialogue(row), nil
}

func (r *dialogueRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.dialogues[id]; !ok {
		return apperrors.ErrDialogueNotFound
	}

	for _, postID := range r.s.postsByDialogue[id] {
		delete(r.s.posts, postID)
	}
	delete(r.s.postsByDialogue, id)
	delete(r.s.dialogues, id)
	return nil
}

func (r *dialogueRepository) ToggleVisibility(ctx context.Context, id string) (*domain.Dialogue, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.dialogues[id]
	if !ok {
		return nil, apperrors.ErrDialogueNotFound
	}
	row.isVisible = !row.isVisible
	row.modifiedOn = r.s.now()
	return r.s.toDialogue(row), nil
}

func (r *dialogueRepository) IncrementViews(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.dialogues[id]
	if !ok {
		return apperrors.ErrDialogueNotFound
	}
	row.views++
	return nil
}

func (r *dialogueRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.DialogueActivity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.DialogueActivity
	for _, row := range r.s.dialogues {
		member := false
		for _, p := range row.participants {
			if p == userID {
				member = true
				break
			}
		}
		if !member {
			continue
		}

		a := &domain.DialogueActivity{Dialogue: r.s.toDialogue(row), ActivityOn: row.createdOn}
		for _, postID := range r.s.postsByDialogue[row.id] {
			post := r.s.posts[postID]
			if a.PostCount == 0 || post.createdOn.After(a.ActivityOn) {
				a.ActivityOn = post.createdOn
			}
			a.PostCount++
		}
		result = append(result, a)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.ActivityOn.Equal(b.ActivityOn) {
			return a.ActivityOn.After(b.ActivityOn)
		}
		if !a.Dialogue.CreatedOn.Equal(b.Dialogue.CreatedOn) {
			return a.Dialogue.CreatedOn.After(b.Dialogue.CreatedOn)
		}
		return a.Dialogue.ID < b.Dialogue.ID
	})
	return result, nil
}

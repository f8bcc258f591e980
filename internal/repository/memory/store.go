// Package memory - хранилище в памяти процесса с теми же интерфейсами, что и
// Postgres репозитории. Используется в тестах и при STORAGE=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dialogues/internal/domain"
	"dialogues/internal/repository"
	apperrors "dialogues/pkg/errors"
)

const maxIDAttempts = 5

type dialogueRow struct {
	id           string
	title        string
	summary      string
	isVisible    bool
	isOpen       bool
	authorID     uuid.UUID
	participants []uuid.UUID
	views        int64
	createdOn    time.Time
	modifiedOn   time.Time
}

type postRow struct {
	id         int64
	dialogueID string
	authorID   uuid.UUID
	body       string
	createdOn  time.Time
	modifiedOn time.Time
}

// Store хранит все данные под одним мьютексом
type Store struct {
	mu    sync.RWMutex
	now   func() time.Time
	newID func() (string, error)

	users     map[uuid.UUID]domain.User
	dialogues map[string]*dialogueRow
	posts     map[int64]*postRow
	// id постов диалога по возрастанию
	postsByDialogue map[string][]int64
	lastPostID      int64

	auditLogs   []*domain.AuditLog
	lastAuditID int64
}

type Option func(*Store)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator подменяет генератор id диалогов
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Store) { s.newID = gen }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:             func() time.Time { return time.Now().UTC() },
		newID:           repository.NewDialogueID,
		users:           make(map[uuid.UUID]domain.User),
		dialogues:       make(map[string]*dialogueRow),
		posts:           make(map[int64]*postRow),
		postsByDialogue: make(map[string][]int64),
	}
	for _, opt := range opts {
		opt(s)
	}

	deleted := domain.DeletedUser()
	deleted.CreatedAt = s.now()
	s.users[deleted.ID] = deleted
	return s
}

// Repositories собирает репозитории поверх хранилища. RateLimit не задан:
// сервис в этом случае ограничивает частоту в памяти
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		User:     &userRepository{s: s},
		Dialogue: &dialogueRepository{s: s},
		Post:     &postRepository{s: s},
		Audit:    &auditRepository{s: s},
	}
}

// AuditLogs возвращает копию журнала аудита
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, len(s.auditLogs))
	for i, l := range s.auditLogs {
		out[i] = *l
	}
	return out
}

// === helpers, вызываются под мьютексом ===

func (s *Store) userOrDeleted(id uuid.UUID) domain.User {
	if u, ok := s.users[id]; ok {
		return u
	}
	return s.users[domain.DeletedUserID]
}

func (s *Store) toDialogue(row *dialogueRow) *domain.Dialogue {
	d := &domain.Dialogue{
		ID:           row.id,
		Title:        row.title,
		Summary:      row.summary,
		IsVisible:    row.isVisible,
		IsOpen:       row.isOpen,
		Author:       s.userOrDeleted(row.authorID),
		Participants: make([]domain.User, 0, len(row.participants)),
		Views:        row.views,
		CreatedOn:    row.createdOn,
		ModifiedOn:   row.modifiedOn,
	}
	for _, id := range row.participants {
		d.Participants = append(d.Participants, s.userOrDeleted(id))
	}
	return d
}

func (s *Store) toPost(row *postRow) *domain.Post {
	return &domain.Post{
		ID:         row.id,
		DialogueID: row.dialogueID,
		Author:     s.userOrDeleted(row.authorID),
		Body:       row.body,
		CreatedOn:  row.createdOn,
		ModifiedOn: row.modifiedOn,
	}
}

func (s *Store) removePost(id int64) {
	row, ok := s.posts[id]
	if !ok {
		return
	}
	delete(s.posts, id)

	ids := s.postsByDialogue[row.dialogueID]
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		s.postsByDialogue[row.dialogueID] = append(ids[:i:i], ids[i+1:]...)
	}
}

// === users ===

type userRepository struct {
	s *Store
}

func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = r.s.now()
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return &u, nil
}

func (r *userRepository) Search(ctx context.Context, query string, excludeID uuid.UUID, limit int) ([]*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	q := strings.ToLower(query)
	users := []*domain.User{}
	for id, u := range r.s.users {
		if id == excludeID || id == domain.DeletedUserID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.DisplayName), q) {
			u := u
			users = append(users, &u)
		}
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if id == domain.DeletedUserID {
		return fmt.Errorf("sentinel user cannot be deleted: %w", apperrors.ErrBadRequest)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return apperrors.ErrUserNotFound
	}

	for _, d := range r.s.dialogues {
		authored := d.authorID == id
		if authored {
			d.authorID = domain.DeletedUserID
		}
		kept := d.participants[:0]
		for _, p := range d.participants {
			switch {
			case p != id:
				kept = append(kept, p)
			case authored:
				kept = append(kept, domain.DeletedUserID)
			}
		}
		d.participants = kept
	}

	for postID, p := range r.s.posts {
		if p.authorID == id {
			r.s.removePost(postID)
		}
	}

	delete(r.s.users, id)
	return nil
}

// === audit ===

type auditRepository struct {
	s *Store
}

func (r *auditRepository) CreateLog(ctx context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.lastAuditID++
	log.ID = r.s.lastAuditID
	if log.EventTime.IsZero() {
		log.EventTime = r.s.now()
	}
	entry := *log
	r.s.auditLogs = append(r.s.auditLogs, &entry)
	return nil
}

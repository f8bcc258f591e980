package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"dialogues/internal/config"
	"dialogues/internal/domain"
	"dialogues/internal/metrics"
	"dialogues/internal/notify"
	"dialogues/internal/repository"
	"dialogues/internal/repository/memory"
	"dialogues/pkg/logger"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	store    *memory.Store
	repos    *repository.Repositories
	services *Services
	notifier *notify.Notifier
	metrics  *metrics.Metrics
	clock    *fakeClock

	author   *domain.User
	member   *domain.User
	stranger *domain.User
}

func testConfig() *config.Config {
	return &config.Config{
		Stream: config.StreamConfig{
			PollInterval:      10 * time.Millisecond,
			KeepAliveInterval: time.Hour,
			MaxLifetime:       5 * time.Second,
			BatchLimit:        100,
		},
		RateLimit: config.RateLimitConfig{Enabled: true, Posts: 3, Window: time.Minute},
	}
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	clock := newFakeClock()
	store := memory.New(memory.WithClock(clock.Now))
	repos := store.Repositories()
	notifier := notify.New()
	m := metrics.Nop()

	env := &testEnv{
		store:    store,
		repos:    repos,
		services: NewServices(repos, cfg, notifier, m, logger.Nop()),
		notifier: notifier,
		metrics:  m,
		clock:    clock,
	}
	env.author = env.addUser(t, "author")
	env.member = env.addUser(t, "member")
	env.stranger = env.addUser(t, "stranger")
	return env
}

func (e *testEnv) addUser(t *testing.T, name string) *domain.User {
	t.Helper()
	u, err := e.services.User.Provision(context.Background(), &domain.User{ID: uuid.New(), Username: name})
	require.NoError(t, err)
	return u
}

// newDialogue создает диалог автора с участником member
func (e *testEnv) newDialogue(t *testing.T, visible bool) *domain.Dialogue {
	t.Helper()
	d, err := e.services.Dialogue.Create(context.Background(), e.author, &domain.DialogueDraft{
		Title:          "Theaetetus",
		IsVisible:      visible,
		ParticipantIDs: []uuid.UUID{e.member.ID},
	})
	require.NoError(t, err)
	return d
}

func (e *testEnv) submit(t *testing.T, d *domain.Dialogue, user *domain.User, body string) *domain.Post {
	t.Helper()
	sub, err := e.services.Post.Submit(context.Background(), d.ID, user, body, 0)
	require.NoError(t, err)
	require.True(t, sub.Accepted(), "submission rejected: %s", sub.Rejected)
	return sub.Post
}

func ids(posts []*domain.Post) []int64 {
	out := make([]int64, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialogues/internal/domain"
	apperrors "dialogues/pkg/errors"
)

func titles(entries []*domain.DashboardEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Title
	}
	return out
}

func TestDashboard_OrdersByActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dashboard := func() []*domain.DashboardEntry {
		t.Helper()
		entries, err := env.services.Dashboard.For(ctx, env.author)
		require.NoError(t, err)
		return entries
	}

	// T0: A без постов
	a, err := env.services.Dialogue.Create(ctx, env.author, &domain.DialogueDraft{Title: "A"})
	require.NoError(t, err)

	// T1: B без постов
	env.clock.Advance(time.Minute)
	b, err := env.services.Dialogue.Create(ctx, env.author, &domain.DialogueDraft{Title: "B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, titles(dashboard()))

	// T2: пост в A
	env.clock.Advance(time.Minute)
	env.submit(t, a, env.author, "a")
	assert.Equal(t, []string{"A", "B"}, titles(dashboard()))

	// T3: пост в B
	env.clock.Advance(time.Minute)
	env.submit(t, b, env.author, "b")
	entries := dashboard()
	assert.Equal(t, []string{"B", "A"}, titles(entries))

	assert.Equal(t, env.clock.Now(), entries[0].ActivityOn)
	assert.Equal(t, int64(1), entries[0].PostCount)
	assert.Equal(t, 1, entries[0].ParticipantCount)
}

func TestDashboard_ZeroPostDialogueAgainstOldPosts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	old, err := env.services.Dialogue.Create(ctx, env.author, &domain.DialogueDraft{Title: "old"})
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	env.submit(t, old, env.author, "long ago")

	env.clock.Advance(time.Hour)
	_, err = env.services.Dialogue.Create(ctx, env.author, &domain.DialogueDraft{Title: "fresh"})
	require.NoError(t, err)

	entries, err := env.services.Dashboard.For(ctx, env.author)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh", "old"}, titles(entries))
}

func TestDashboard_OnlyParticipantDialogues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.newDialogue(t, true)

	entries, err := env.services.Dashboard.For(ctx, env.member)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = env.services.Dashboard.For(ctx, env.stranger)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = env.services.Dashboard.For(ctx, nil)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialogues/internal/config"
	"dialogues/internal/domain"
	apperrors "dialogues/pkg/errors"
)

func TestCreateDialogue(t *testing.T) {
	env := newTestEnv(t)

	d := env.newDialogue(t, true)
	assert.Len(t, d.ID, domain.DialogueIDLength)
	assert.Equal(t, env.author.ID, d.Author.ID)
	assert.True(t, d.HasParticipant(env.member.ID))

	w := env.do(t, http.MethodPost, "/api/v1/dialogues", &env.author, CreateDialogueRequest{Title: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[apperrors.APIError](t, w)
	assert.Contains(t, body.Fields, "title")

	w = env.do(t, http.MethodPost, "/api/v1/dialogues", nil, CreateDialogueRequest{Title: "Meno"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestViewDialogue(t *testing.T) {
	env := newTestEnv(t)
	private := env.newDialogue(t, false)
	env.submit(t, private, &env.member, "Is virtue teachable?")
	last := env.submit(t, private, &env.author, "Let us inquire.")

	w := env.do(t, http.MethodGet, "/api/v1/dialogues/"+private.ID, &env.member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[domain.DialogueView](t, w)
	assert.Len(t, view.Posts, 2)
	assert.Equal(t, last.ID, view.LastID)

	w = env.do(t, http.MethodGet, "/api/v1/dialogues/"+private.ID, &env.stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/dialogues/"+private.ID, nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/dialogues/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestViewDialogue_AnonymousOnVisible(t *testing.T) {
	env := newTestEnv(t)
	d := env.newDialogue(t, true)

	w := env.do(t, http.MethodGet, "/api/v1/dialogues/"+d.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[domain.DialogueView](t, w)
	assert.Equal(t, int64(0), view.LastID)
	assert.Equal(t, int64(1), view.Dialogue.Views)
}

func TestToggleVisibility(t *testing.T) {
	env := newTestEnv(t)
	d := env.newDialogue(t, true)
	target := "/api/v1/dialogues/" + d.ID + "/visibility"

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, target, &env.member, nil).Code)

	w := env.do(t, http.MethodPost, target, &env.author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[map[string]interface{}](t, w)
	assert.Equal(t, false, got["is_visible"])

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/v1/dialogues/"+d.ID, &env.stranger, nil).Code)
}

func TestDeleteDialogue(t *testing.T) {
	env := newTestEnv(t)
	d := env.newDialogue(t, true)
	target := "/api/v1/dialogues/" + d.ID

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, target, &env.member, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, target, &env.author, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, target, &env.author, nil).Code)
}

func TestSubmitPost(t *testing.T) {
	env := newTestEnv(t)
	d := env.newDialogue(t, true)
	target := "/api/v1/dialogues/" + d.ID + "/posts"

	post := env.submit(t, d, &env.member, "  Knowledge is perception.  ")
	assert.Equal(t, "Knowledge is perception.", post.Body)

	w := env.do(t, http.MethodPost, target, &env.author, PostRequest{Body: " \n "})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(domain.RejectEmptyBody), decode[map[string]string](t, w)["reason"])

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, target, &env.stranger, PostRequest{Body: "hi"}).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, target, nil, PostRequest{Body: "hi"}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v1/dialogues/nope/posts", &env.author, PostRequest{Body: "hi"}).Code)

	posts, err := env.store.Repositories().Post.ListByDialogue(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestSubmitPost_RateLimited(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.RateLimit.Posts = 2 })
	d := env.newDialogue(t, true)
	target := "/api/v1/dialogues/" + d.ID + "/posts"

	env.submit(t, d, &env.member, "one")
	env.submit(t, d, &env.member, "two")
	assert.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodPost, target, &env.member, PostRequest{Body: "three"}).Code)

	// лимит у каждого пользователя свой
	env.submit(t, d, &env.author, "mine")
}

func TestSubmitPost_ReturnsPostsSinceWatermark(t *testing.T) {
	env := newTestEnv(t)
	d := env.newDialogue(t, true)
	target := "/api/v1/dialogues/" + d.ID + "/posts"

	first := env.submit(t, d, &env.member, "arrived between polls")

	zero := int64(0)
	w := env.do(t, http.MethodPost, target, &env.author, PostRequest{Body: "reply", LastID: &zero})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[SubmitResponse](t, w)

	got := make([]int64, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		got = append(got, p.ID)
	}
	if diff := cmp.Diff([]int64{first.ID, resp.Post.ID}, got); diff != "" {
		t.Fatalf("posts mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, resp.Post.ID, resp.LastID)

	// курсор из query, когда в теле его нет
	w = env.do(t, http.MethodPost, fmt.Sprintf("%s?last_id=%d", target, resp.LastID), &env.member, PostRequest{Body: "next"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp = decode[SubmitResponse](t, w)
	require.Len(t, resp.Posts, 1)
	assert.Equal(t, resp.Post.ID, resp.Posts[0].ID)
	assert.Equal(t, resp.Post.ID, resp.LastID)
}

func TestSubmitPost_NoBodyIsEmptyPost(t *testing.T) {
	env := newTestEnv(t)
	d := env.newDialogue(t, true)

	w := env.do(t, http.MethodPost, "/api/v1/dialogues/"+d.ID+"/posts", &env.author, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(domain.RejectEmptyBody), decode[map[string]string](t, w)["reason"])

	posts, err := env.store.Repositories().Post.ListByDialogue(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestEditAndDeletePost(t *testing.T) {
	env := newTestEnv(t)
	d := env.newDialogue(t, true)
	post := env.submit(t, d, &env.member, "draft")
	target := fmt.Sprintf("/api/v1/posts/%d", post.ID)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPatch, target, &env.author, PostRequest{Body: "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPatch, target, &env.member, PostRequest{Body: " "}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPatch, "/api/v1/posts/abc", &env.member, PostRequest{Body: "x"}).Code)

	w := env.do(t, http.MethodPatch, target, &env.member, PostRequest{Body: "final"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "final", decode[domain.Post](t, w).Body)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, target, &env.member, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, target, &env.member, nil).Code)
}

func TestPoll(t *testing.T) {
	env := newTestEnv(t)
	d := env.newDialogue(t, true)
	first := env.submit(t, d, &env.author, "a")
	second := env.submit(t, d, &env.member, "b")
	base := "/api/v1/dialogues/" + d.ID + "/posts"

	tests := []struct {
		name  string
		query string
		want  []int64
		last  int64
	}{
		{"from start", "", []int64{first.ID, second.ID}, second.ID},
		{"unparseable", "?last_id=abc", []int64{first.ID, second.ID}, second.ID},
		{"negative", "?last_id=-5", []int64{first.ID, second.ID}, second.ID},
		{"after first", fmt.Sprintf("?last_id=%d", first.ID), []int64{second.ID}, second.ID},
		{"caught up", fmt.Sprintf("?last_id=%d", second.ID), []int64{}, second.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, base+tt.query, nil, nil)
			require.Equal(t, http.StatusOK, w.Code)
			batch := decode[domain.FeedBatch](t, w)

			got := make([]int64, 0, len(batch.Posts))
			for _, p := range batch.Posts {
				got = append(got, p.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("posts mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.last, batch.LastID)
		})
	}
}

func TestPoll_RechecksAccess(t *testing.T) {
	env := newTestEnv(t)
	d := env.newDialogue(t, true)
	base := "/api/v1/dialogues/" + d.ID + "/posts"

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, base, &env.stranger, nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/dialogues/"+d.ID+"/visibility", &env.author, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, base, &env.stranger, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, base, &env.member, nil).Code)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	a := env.newDialogue(t, true)
	b := env.newDialogue(t, false)
	env.submit(t, a, &env.member, "bump")

	w := env.do(t, http.MethodGet, "/api/v1/dashboard", &env.member, nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[[]domain.DashboardEntry](t, w)
	require.Len(t, entries, 2)
	assert.Equal(t, a.ID, entries[0].ID)
	assert.Equal(t, b.ID, entries[1].ID)
	assert.Equal(t, 2, entries[0].ParticipantCount)

	w = env.do(t, http.MethodGet, "/api/v1/dashboard", &env.stranger, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]domain.DashboardEntry](t, w))

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/v1/dashboard", nil, nil).Code)
}

func TestUserSearch(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/users/search?query=THEAE", &env.author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := decode[[]domain.User](t, w)
	require.Len(t, users, 1)
	assert.Equal(t, env.member.ID, users[0].ID)

	w = env.do(t, http.MethodGet, "/api/v1/users/search?query=s", &env.author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]domain.User](t, w))

	// себя в результатах нет
	w = env.do(t, http.MethodGet, "/api/v1/users/search?query=socr", &env.author, nil)
	assert.Empty(t, decode[[]domain.User](t, w))

	w = env.do(t, http.MethodGet, "/api/v1/users/me", &env.author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, env.author.ID, decode[domain.User](t, w).ID)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil, nil).Code)

	h := NewHealthHandler(env.cfg, func(context.Context) error { return errors.New("down") })
	router := newBareRouter()
	router.GET("/health", h.Check)
	w := serve(router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

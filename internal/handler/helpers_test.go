package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"dialogues/internal/config"
	"dialogues/internal/domain"
	"dialogues/internal/metrics"
	"dialogues/internal/middleware"
	"dialogues/internal/notify"
	"dialogues/internal/repository/memory"
	"dialogues/internal/service"
	"dialogues/pkg/jwt"
	"dialogues/pkg/logger"
)

const testSecret = "handler-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testUser struct {
	*domain.User
	token string
}

type testEnv struct {
	cfg      *config.Config
	store    *memory.Store
	services *service.Services
	metrics  *metrics.Metrics
	router   *gin.Engine

	author   testUser
	member   testUser
	stranger testUser
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{AllowedOrigins: []string{"*"}},
		JWT:     config.JWTConfig{AccessSecret: testSecret, AccessTTL: time.Hour, Issuer: "test"},
		Storage: config.StorageConfig{Driver: config.StorageMemory},
		Stream: config.StreamConfig{
			PollInterval:      20 * time.Millisecond,
			KeepAliveInterval: time.Hour,
			MaxLifetime:       10 * time.Second,
			BatchLimit:        100,
		},
		RateLimit: config.RateLimitConfig{Enabled: true, Posts: 5, Window: time.Hour},
	}
}

func newTestEnv(t *testing.T, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, o := range opts {
		o(cfg)
	}

	store := memory.New()
	repos := store.Repositories()
	m := metrics.Nop()
	log := logger.Nop()
	services := service.NewServices(repos, cfg, notify.New(), m, log)

	handlers := NewHandlers(services, cfg, m, nil, log)
	router := NewRouter(
		handlers,
		middleware.NewAuthMiddleware(cfg.JWT.AccessSecret, services.User, log),
		middleware.NewRateLimitMiddleware(services.RateLimit, log),
		nil,
		cfg,
		log,
	)

	env := &testEnv{cfg: cfg, store: store, services: services, metrics: m, router: router}
	env.author = env.user(t, "socrates")
	env.member = env.user(t, "theaetetus")
	env.stranger = env.user(t, "meno")
	return env
}

// user выпускает токен; пользователь появится в хранилище при первом запросе,
// поэтому здесь он создается сразу
func (e *testEnv) user(t *testing.T, name string) testUser {
	t.Helper()
	u, err := e.services.User.Provision(context.Background(), &domain.User{ID: uuid.New(), Username: name})
	require.NoError(t, err)
	tok, err := jwt.GenerateAccessToken(u.ID, u.Username, "", testSecret, "test", time.Hour)
	require.NoError(t, err)
	return testUser{User: u, token: tok}
}

func (e *testEnv) do(t *testing.T, method, target string, as *testUser, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+as.token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

// newDialogue создает диалог автора с участником member через API
func (e *testEnv) newDialogue(t *testing.T, visible bool) *domain.Dialogue {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/dialogues", &e.author, CreateDialogueRequest{
		Title:          "Theaetetus",
		Summary:        "What is knowledge?",
		IsVisible:      visible,
		ParticipantIDs: []uuid.UUID{e.member.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[*domain.Dialogue](t, w)
}

func (e *testEnv) submit(t *testing.T, d *domain.Dialogue, as *testUser, body string) *domain.Post {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/dialogues/"+d.ID+"/posts", as, PostRequest{Body: body})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[SubmitResponse](t, w).Post
}

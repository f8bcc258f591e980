package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dialogues/internal/config"
	"dialogues/internal/middleware"
	"dialogues/pkg/logger"
)

const postsRateScope = "posts"

// NewRouter собирает маршруты API. metricsHandler может быть nil
func NewRouter(
	handlers *Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	metricsHandler http.Handler,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Check)
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	v1 := router.Group("/api/v1")
	{
		// Чтение доступно анонимно, права проверяет сервис
		public := v1.Group("")
		public.Use(authMiddleware.OptionalAuth())
		{
			public.GET("/dialogues/:id", handlers.Dialogue.View)
			public.GET("/dialogues/:id/posts", handlers.Feed.Poll)
			public.GET("/dialogues/:id/stream", handlers.Stream.Stream)
		}

		protected := v1.Group("")
		protected.Use(authMiddleware.RequireAuth())
		{
			protected.POST("/dialogues", handlers.Dialogue.Create)
			protected.POST("/dialogues/:id/posts", rateLimitMiddleware.Limit(postsRateScope), handlers.Post.Submit)
			protected.POST("/dialogues/:id/visibility", handlers.Dialogue.ToggleVisibility)
			protected.DELETE("/dialogues/:id", handlers.Dialogue.Delete)

			protected.PATCH("/posts/:postId", handlers.Post.Edit)
			protected.DELETE("/posts/:postId", handlers.Post.Delete)

			protected.GET("/dashboard", handlers.Dashboard.Get)

			protected.GET("/users/me", handlers.User.GetMe)
			protected.GET("/users/search", handlers.User.Search)
		}
	}

	// WebSocket: токен передается в query параметре access_token
	ws := router.Group("/ws")
	ws.Use(authMiddleware.OptionalAuth())
	{
		ws.GET("/dialogues/:id", handlers.WebSocket.HandleDialogue)
	}

	return router
}

package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dialogues/internal/domain"
	"dialogues/internal/service"
	apperrors "dialogues/pkg/errors"
	"dialogues/pkg/jwt"
	"dialogues/pkg/logger"
)

const (
	userContextKey   = "user"
	userIDContextKey = "user_id"

	// accessTokenQuery - для EventSource и WebSocket, где нельзя задать заголовок
	accessTokenQuery = "access_token"
)

var errNoToken = errors.New("no access token")

// AuthMiddleware валидирует JWT токены внешнего сервиса аутентификации
type AuthMiddleware struct {
	jwtSecret   string
	userService service.UserService
	log         logger.Logger
}

func NewAuthMiddleware(jwtSecret string, userService service.UserService, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret:   jwtSecret,
		userService: userService,
		log:         log,
	}
}

// RequireAuth требует валидный токен
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := m.authenticate(c)
		if err != nil {
			status := apperrors.HTTPStatusFromError(err)
			if status != http.StatusServiceUnavailable && status != http.StatusInternalServerError {
				status = http.StatusUnauthorized
			}
			if errors.Is(err, errNoToken) {
				c.JSON(status, gin.H{"error": "Authorization header required"})
			} else {
				m.log.Warn("Token validation failed", "error", err.Error())
				c.JSON(status, gin.H{"error": apperrors.FromError(err).Message})
			}
			c.Abort()
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// OptionalAuth проверяет токен если он есть, но не требует его.
// С невалидным токеном запрос продолжается анонимно
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := m.authenticate(c)
		if err != nil {
			if !errors.Is(err, errNoToken) {
				m.log.Debug("Ignoring invalid token on optional route", "error", err.Error())
			}
			c.Next()
			return
		}

		setUser(c, user)
		c.Next()
	}
}

func (m *AuthMiddleware) authenticate(c *gin.Context) (*domain.User, error) {
	tokenString, err := tokenFromRequest(c)
	if err != nil {
		return nil, err
	}

	claims, err := jwt.ValidateToken(tokenString, m.jwtSecret)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	// Auto-provisioning: пользователь из токена зеркалируется локально
	user, err := m.userService.Provision(c.Request.Context(), &domain.User{
		ID:          userID,
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrForbidden) && !errors.Is(err, apperrors.ErrInvalidToken) {
			m.log.Error("Failed to provision user", "user_id", userID.String(), "error", err)
			return nil, err
		}
		return nil, apperrors.ErrInvalidToken
	}
	return user, nil
}

func tokenFromRequest(c *gin.Context) (string, error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", apperrors.ErrInvalidToken
		}
		return parts[1], nil
	}
	if token := c.Query(accessTokenQuery); token != "" {
		return token, nil
	}
	return "", errNoToken
}

func setUser(c *gin.Context, user *domain.User) {
	c.Set(userContextKey, user)
	c.Set(userIDContextKey, user.ID)
}

// CurrentUser возвращает пользователя запроса или nil для анонимного
func CurrentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, _ := v.(*domain.User)
	return user
}

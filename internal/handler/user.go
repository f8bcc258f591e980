package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dialogues/internal/middleware"
	"dialogues/internal/service"
	apperrors "dialogues/pkg/errors"
	"dialogues/pkg/logger"
)

type UserHandler struct {
	userService service.UserService
	log         logger.Logger
}

func NewUserHandler(userService service.UserService, log logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		log:         log,
	}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	current := middleware.CurrentUser(c)
	if current == nil {
		_ = c.Error(apperrors.ErrUnauthorized)
		return
	}

	user, err := h.userService.GetMe(c.Request.Context(), current.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// Search - подбор участников для нового диалога
func (h *UserHandler) Search(c *gin.Context) {
	users, err := h.userService.Search(c.Request.Context(), c.Query("query"), middleware.CurrentUser(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, users)
}

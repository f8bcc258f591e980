package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dialogues/internal/domain"
	"dialogues/internal/middleware"
	"dialogues/internal/service"
	apperrors "dialogues/pkg/errors"
	"dialogues/pkg/logger"
)

type PostHandler struct {
	postService service.PostService
	log         logger.Logger
}

func NewPostHandler(postService service.PostService, log logger.Logger) *PostHandler {
	return &PostHandler{
		postService: postService,
		log:         log,
	}
}

// PostRequest: пустое тело допустимо и означает "ничего не делать".
// LastID - курсор клиента при отправке, без него берется ?last_id
type PostRequest struct {
	Body   string `json:"body"`
	LastID *int64 `json:"last_id,omitempty"`
}

// SubmitResponse - созданный пост и все посты после курсора клиента, включая его
type SubmitResponse struct {
	Post   *domain.Post   `json:"post"`
	Posts  []*domain.Post `json:"posts"`
	LastID int64          `json:"last_id"`
}

func (h *PostHandler) Submit(c *gin.Context) {
	var req PostRequest
	// Запрос без тела - то же, что пустой пост
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	watermark := parseWatermark(c.Query("last_id"))
	if req.LastID != nil {
		watermark = *req.LastID
	}

	sub, err := h.postService.Submit(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c), req.Body, watermark)
	if err != nil {
		_ = c.Error(err)
		return
	}

	switch sub.Rejected {
	case "":
		c.JSON(http.StatusCreated, SubmitResponse{
			Post:   sub.Post,
			Posts:  sub.Batch.Posts,
			LastID: sub.Batch.LastID,
		})
	case domain.RejectForbidden:
		_ = c.Error(apperrors.ErrForbidden)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": sub.Rejected})
	}
}

func (h *PostHandler) Edit(c *gin.Context) {
	postID, err := strconv.ParseInt(c.Param("postId"), 10, 64)
	if err != nil {
		badRequest(c, err)
		return
	}

	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	post, err := h.postService.Edit(c.Request.Context(), postID, middleware.CurrentUser(c), req.Body)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) Delete(c *gin.Context) {
	postID, err := strconv.ParseInt(c.Param("postId"), 10, 64)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.postService.Delete(c.Request.Context(), postID, middleware.CurrentUser(c)); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": postID, "deleted": true})
}

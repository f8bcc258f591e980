package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dialogues/internal/domain"
	"dialogues/internal/middleware"
	"dialogues/internal/service"
	"dialogues/pkg/logger"
)

type DialogueHandler struct {
	dialogueService service.DialogueService
	log             logger.Logger
}

func NewDialogueHandler(dialogueService service.DialogueService, log logger.Logger) *DialogueHandler {
	return &DialogueHandler{
		dialogueService: dialogueService,
		log:             log,
	}
}

type CreateDialogueRequest struct {
	Title          string      `json:"title"`
	Summary        string      `json:"summary"`
	IsVisible      bool        `json:"is_visible"`
	IsOpen         bool        `json:"is_open"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

func (h *DialogueHandler) Create(c *gin.Context) {
	var req CreateDialogueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	d, err := h.dialogueService.Create(c.Request.Context(), middleware.CurrentUser(c), &domain.DialogueDraft{
		Title:          req.Title,
		Summary:        req.Summary,
		IsVisible:      req.IsVisible,
		IsOpen:         req.IsOpen,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, d)
}

// View отдает диалог со всеми постами и last_id для дальнейшего опроса
func (h *DialogueHandler) View(c *gin.Context) {
	view, err := h.dialogueService.View(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *DialogueHandler) ToggleVisibility(c *gin.Context) {
	d, err := h.dialogueService.ToggleVisibility(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         d.ID,
		"is_visible": d.IsVisible,
	})
}

func (h *DialogueHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.dialogueService.Delete(c.Request.Context(), id, middleware.CurrentUser(c)); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}

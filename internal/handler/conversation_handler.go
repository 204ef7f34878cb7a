package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"alumnet-chat/internal/domain/conversation"
	"alumnet-chat/internal/services"
	"alumnet-chat/internal/transport/httpdto"
	chaterrors "alumnet-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	conversations *services.ConversationService
	messages      *services.MessageService
}

func NewConversationHandler(conversations *services.ConversationService, messages *services.MessageService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, messages: messages}
}

// Create handles POST /conversations for DIRECT and GROUP types.
func (h *ConversationHandler) Create(c *gin.Context) {
	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	others := make([]int64, 0, len(req.ParticipantIDs))
	for _, id := range req.ParticipantIDs {
		if id != userID {
			others = append(others, id)
		}
	}

	switch conversation.Type(req.Type) {
	case conversation.TypeDirect:
		if len(others) != 1 {
			_ = c.Error(fmt.Errorf("%w: direct conversation requires exactly one other participant", chaterrors.ErrInvalidInput))
			return
		}
		conv, err := h.conversations.CreateOrFindDirect(c.Request.Context(), userID, others[0])
		if err != nil {
			_ = c.Error(err)
			return
		}
		view := services.ConversationView{Conversation: conv}
		c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.ToConversationResponse(view)))
	case conversation.TypeGroup:
		conv, err := h.conversations.CreateGroup(c.Request.Context(), userID, req.Name, others)
		if err != nil {
			_ = c.Error(err)
			return
		}
		view := services.ConversationView{Conversation: conv}
		c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.ToConversationResponse(view)))
	default:
		_ = c.Error(fmt.Errorf("%w: unsupported conversation type %q", chaterrors.ErrInvalidInput, req.Type))
	}
}

// List handles GET /conversations.
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	page := parseIntDefault(c.Query("page"), 1)
	limit := parseIntDefault(c.Query("limit"), 20)

	views, total, err := h.conversations.ListForUser(c.Request.Context(), userID, page, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := httpdto.ConversationListResponse{
		Conversations: make([]httpdto.ConversationResponse, 0, len(views)),
		Total:         total,
		Page:          page,
		Limit:         limit,
	}
	for _, v := range views {
		resp.Conversations = append(resp.Conversations, httpdto.ToConversationResponse(v))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}

// GetByID handles GET /conversations/:id.
func (h *ConversationHandler) GetByID(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}
	view, err := h.conversations.GetByID(c.Request.Context(), userID, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ToConversationResponse(view)))
}

// GroupForPosting handles GET /conversations/group/:postingId and
// POST /conversations/group/:postingId (find-or-create + join).
func (h *ConversationHandler) GroupForPosting(c *gin.Context) {
	postingID, err := strconv.ParseInt(c.Param("postingId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid posting id", "INVALID_REQUEST"))
		return
	}

	if c.Request.Method == http.MethodGet {
		view, err := h.conversations.FindGroupForPosting(c.Request.Context(), postingID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ToConversationResponse(view)))
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	conv, err := h.conversations.CreateOrFindGroupForPosting(c.Request.Context(), postingID, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	view := services.ConversationView{Conversation: conv}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ToConversationResponse(view)))
}

// Archive handles DELETE /conversations/:id.
func (h *ConversationHandler) Archive(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}
	if err := h.conversations.Archive(c.Request.Context(), userID, id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

// Rename handles PATCH /conversations/:id.
func (h *ConversationHandler) Rename(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if err := h.conversations.Rename(c.Request.Context(), userID, id, req.Name); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

// AddParticipant handles POST /conversations/:id/participants.
func (h *ConversationHandler) AddParticipant(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if err := h.conversations.AddParticipant(c.Request.Context(), id, userID, req.UserID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

// UpdateParticipantRole handles PATCH /conversations/:id/participants/:userId.
func (h *ConversationHandler) UpdateParticipantRole(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}
	target, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.UpdateParticipantRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if err := h.conversations.SetParticipantRole(c.Request.Context(), id, userID, target, conversation.Role(req.Role)); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

// RemoveParticipant handles DELETE /conversations/:id/participants/:userId.
func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}
	target, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}
	if err := h.conversations.RemoveParticipant(c.Request.Context(), id, userID, target); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

// MarkRead handles POST /conversations/:id/read.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	var messageID *uuid.UUID
	if req.MessageID != nil {
		parsed, err := uuid.Parse(*req.MessageID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_REQUEST"))
			return
		}
		messageID = &parsed
	}
	if err := h.messages.MarkRead(c.Request.Context(), id, userID, messageID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func parseIntDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

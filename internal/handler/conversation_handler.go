package handler

import (
	"net/http"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/services"
	"chatcore/internal/session"
	"chatcore/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	service  *services.ConversationService
	delivery *services.DeliveryService
	sessions *session.Manager
}

func NewConversationHandler(service *services.ConversationService, delivery *services.DeliveryService, sessions *session.Manager) *ConversationHandler {
	return &ConversationHandler{service: service, delivery: delivery, sessions: sessions}
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	identity, ok := identityFrom(c)
	if !ok {
		return
	}

	memberIDs := make([]uuid.UUID, 0, len(req.Members))
	for _, idStr := range req.Members {
		id, err := uuid.Parse(idStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid member id", "INVALID_REQUEST"))
			return
		}
		memberIDs = append(memberIDs, id)
	}

	conv, members, err := h.service.Create(c.Request.Context(), services.CreateConversationInput{
		CreatorID:   identity.UserID,
		Type:        conversation.Type(req.Type),
		Name:        req.Name,
		Description: req.Description,
		MemberIDs:   memberIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.ConversationDetailResponse{
		Conversation: httpdto.FromConversation(conv),
		Members:      httpdto.FromMembershipSlice(members),
	}))
}

func (h *ConversationHandler) List(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	items, err := h.service.ListForUser(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListConversationsResponse{
		Conversations: httpdto.FromConversationSlice(items),
	}))
}

func (h *ConversationHandler) GetByID(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	conv, err := h.service.Get(c.Request.Context(), identity.UserID, conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	members, err := h.service.ActiveMembers(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ConversationDetailResponse{
		Conversation: httpdto.FromConversation(conv),
		Members:      httpdto.FromMembershipSlice(members),
	}))
}

func (h *ConversationHandler) AddMember(c *gin.Context) {
	var req httpdto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	m, err := h.service.Join(c.Request.Context(), conversationID, identity.UserID, userID, conversation.Role(req.Role))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMembership(m)))
}

func (h *ConversationHandler) Leave(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.Leave(c.Request.Context(), conversationID, identity.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *ConversationHandler) SetArchived(c *gin.Context) {
	var req httpdto.ArchiveConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	conv, err := h.service.SetArchived(c.Request.Context(), identity.UserID, conversationID, req.Archived)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

// MarkDelivered marks everything still sent to the caller in the
// conversation as delivered.
func (h *ConversationHandler) MarkDelivered(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if _, err := h.service.Get(c.Request.Context(), identity.UserID, conversationID); err != nil {
		respondError(c, err)
		return
	}
	n, err := h.delivery.MarkConversationDelivered(c.Request.Context(), identity.UserID, conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkDeliveredResponse{Updated: n}))
}

func (h *ConversationHandler) Unread(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	n, err := h.delivery.UnreadCount(c.Request.Context(), identity.UserID, conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UnreadCountResponse{
		ConversationID: conversationID,
		Unread:         n,
	}))
}

func (h *ConversationHandler) Typing(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if _, err := h.service.Get(c.Request.Context(), identity.UserID, conversationID); err != nil {
		respondError(c, err)
		return
	}
	items, err := h.sessions.ActiveTyping(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromTyping(items)))
}

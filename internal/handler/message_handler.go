package handler

import (
	"context"
	"net/http"

	"chatcore/internal/events"
	"chatcore/internal/services"
	"chatcore/internal/transport/httpdto"
	"chatcore/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher broadcasts into a conversation's live stream.
type Publisher interface {
	Publish(ctx context.Context, conversationID uuid.UUID, ev events.Event) error
}

type MessageHandler struct {
	service   *services.MessageService
	publisher Publisher
	log       *logger.Logger
}

func NewMessageHandler(service *services.MessageService, publisher Publisher, log *logger.Logger) *MessageHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &MessageHandler{service: service, publisher: publisher, log: log.Named("message_handler")}
}

func (h *MessageHandler) History(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	before, limit, ok := pageParams(c)
	if !ok {
		return
	}
	items, err := h.service.History(c.Request.Context(), identity.UserID, conversationID, before, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewHistoryResponse(items, limit)))
}

func (h *MessageHandler) ModerationHistory(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	before, limit, ok := pageParams(c)
	if !ok {
		return
	}
	items, err := h.service.ModerationHistory(c.Request.Context(), identity.UserID, conversationID, before, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewHistoryResponse(items, limit)))
}

func (h *MessageHandler) Statuses(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	messageID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	items, err := h.service.Statuses(c.Request.Context(), identity.UserID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromDeliveryStatuses(items)))
}

func (h *MessageHandler) Reactions(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	messageID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	items, err := h.service.Reactions(c.Request.Context(), identity.UserID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromReactions(items)))
}

func (h *MessageHandler) SetPinned(c *gin.Context) {
	var req httpdto.PinMessageRequest
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
	messageID, ok := uuidParam(c, "message_id")
	if !ok {
		return
	}
	msg, err := h.service.SetPinned(c.Request.Context(), conversationID, messageID, identity.UserID, req.Pinned)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMessage(msg)))
}

// Forward copies a message into another conversation and announces it there
// like any new chat message.
func (h *MessageHandler) Forward(c *gin.Context) {
	var req httpdto.ForwardMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	messageID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	target, err := uuid.Parse(req.ConversationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	msg, err := h.service.Forward(c.Request.Context(), messageID, target, identity.UserID, identity.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	ev := events.ChatMessage{Message: events.NewMessagePayload(msg)}
	if err := h.publisher.Publish(c.Request.Context(), target, ev); err != nil {
		h.log.WithContext(c.Request.Context()).Warn("forward broadcast failed", zap.Error(err))
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromMessage(msg)))
}

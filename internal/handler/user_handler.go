package handler

import (
	"net/http"

	"chatcore/internal/domain/presence"
	"chatcore/internal/services"
	"chatcore/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// UserHandler serves per-user presence.
type UserHandler struct {
	presence *services.PresenceService
}

func NewUserHandler(presence *services.PresenceService) *UserHandler {
	return &UserHandler{presence: presence}
}

func (h *UserHandler) Presence(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	subjectID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	view, err := h.presence.View(c.Request.Context(), identity.UserID, subjectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PresenceDTO(view)))
}

func (h *UserHandler) UpdatePrivacy(c *gin.Context) {
	var req httpdto.UpdatePrivacyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	identity, ok := identityFrom(c)
	if !ok {
		return
	}
	rec, err := h.presence.UpdatePrivacy(c.Request.Context(), identity.UserID,
		presence.Visibility(req.ShowOnlineStatus), presence.Visibility(req.ShowLastSeen))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(rec.ViewFor(true, true)))
}

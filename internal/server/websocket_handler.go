package server

import (
	"errors"
	"net/http"

	"chatcore/internal/auth"
	"chatcore/internal/session"
	"chatcore/internal/transport/httpdto"
	chat_errors "chatcore/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler admits a session first and upgrades only once admission
// succeeded, so refusals are plain HTTP responses.
type WebSocketHandler struct {
	hub      *Hub
	sessions *session.Manager
	logger   *WebSocketLogger
}

func NewWebSocketHandler(hub *Hub, sessions *session.Manager, logger *WebSocketLogger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		sessions: sessions,
		logger:   logger,
	}
}

// Conversation serves GET /ws/conversations/:id.
func (h *WebSocketHandler) Conversation(c *gin.Context) {
	identity, _ := auth.FromContext(c.Request.Context())
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	sess, err := h.sessions.Open(c.Request.Context(), identity, conversationID)
	if err != nil {
		h.refuse(c, identity, err)
		return
	}
	h.upgrade(c, sess)
}

// Notifications serves GET /ws/notifications.
func (h *WebSocketHandler) Notifications(c *gin.Context) {
	identity, _ := auth.FromContext(c.Request.Context())
	sess, err := h.sessions.OpenNotifications(c.Request.Context(), identity)
	if err != nil {
		h.refuse(c, identity, err)
		return
	}
	h.upgrade(c, sess)
}

func (h *WebSocketHandler) refuse(c *gin.Context, identity *auth.Identity, err error) {
	status, body := httpdto.NewDomainErrorResponse(err)
	if errors.Is(err, chat_errors.ErrForbidden) {
		body = httpdto.NewErrorResponse("not a member of this conversation", "FORBIDDEN")
	}
	if status >= http.StatusInternalServerError && identity != nil {
		h.logger.Error("session open failed", identity.UserID, "", err)
	}
	c.JSON(status, body)
}

func (h *WebSocketHandler) upgrade(c *gin.Context, sess *session.Session) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", sess.UserID(), sess.ID(), err)
		sess.Close()
		return
	}
	NewClient(h.hub, conn, sess, h.logger).Start()
}

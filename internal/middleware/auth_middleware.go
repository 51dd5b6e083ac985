package middleware

import (
	"context"
	"net/http"
	"strings"

	"chatcore/internal/auth"
	"chatcore/internal/transport/httpdto"
	"chatcore/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware accepts only an Authorization: Bearer token.
func AuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return authenticate(verifier, extractBearer)
}

// WebSocketAuthMiddleware also accepts ?token=, since browsers cannot set
// headers on an upgrade request.
func WebSocketAuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return authenticate(verifier, func(c *gin.Context) string {
		return auth.TokenFromRequest(c.Request)
	})
}

func authenticate(verifier *auth.Verifier, token func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := verifier.Verify(token(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := auth.WithIdentity(c.Request.Context(), identity)
		ctx = context.WithValue(ctx, logger.UserIdKey, identity.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

package handler

import (
	"net/http"
	"strconv"
	"time"

	"chatcore/internal/auth"
	"chatcore/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func identityFrom(c *gin.Context) (*auth.Identity, bool) {
	id, ok := auth.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return nil, false
	}
	return id, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid "+name, "INVALID_REQUEST"))
		return uuid.Nil, false
	}
	return id, true
}

// respondError renders err and attaches it for the error middleware to log.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := httpdto.NewDomainErrorResponse(err)
	c.JSON(status, body)
}

// pageParams reads ?before= (RFC3339) and ?limit=.
func pageParams(c *gin.Context) (*time.Time, int, bool) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	raw := c.Query("before")
	if raw == "" {
		return nil, limit, true
	}
	before, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid before cursor", "INVALID_REQUEST"))
		return nil, 0, false
	}
	return &before, limit, true
}

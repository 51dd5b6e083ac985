package middleware

import (
	"net/http"

	"chatcore/internal/transport/httpdto"
	"chatcore/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler logs server-side failures attached with c.Error and renders
// the last one when the handler wrote nothing.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, body := httpdto.NewDomainErrorResponse(err)
		if status >= http.StatusInternalServerError && l != nil {
			l.WithContext(c.Request.Context()).Sugar().Errorf("request error: %s", err.Error())
		}
		if !c.Writer.Written() {
			c.JSON(status, body)
		}
	}
}

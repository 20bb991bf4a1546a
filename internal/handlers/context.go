package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
)

// requestContext returns the inbound request context. Handlers built directly
// in tests may carry no request, so fall back to background.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

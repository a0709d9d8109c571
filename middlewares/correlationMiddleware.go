package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/matcon/erp_backend/appctx"
)

const (
	HeaderCorrelationId = "X-Correlation-ID"
	HeaderActor         = "X-Actor"
)

// CorrelationMiddleware tags the request context with a correlation id (taken
// from the request header or generated) and the optional actor name.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderCorrelationId))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		ctx := appctx.SetCorrelationId(c.Request.Context(), id)
		if actor := strings.TrimSpace(c.GetHeader(HeaderActor)); actor != "" {
			ctx = appctx.SetActor(ctx, actor)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderCorrelationId, id)
		c.Next()
	}
}

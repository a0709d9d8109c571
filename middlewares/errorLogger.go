package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/matcon/erp_backend/appctx"
	"github.com/sirupsen/logrus"
)

// CustomErrorLogger is a custom Gin middleware that logs only errors
func CustomErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			fields := logrus.Fields{
				"method": c.Request.Method,
				"path":   c.FullPath(),
				"status": c.Writer.Status(),
			}
			if id, ok := appctx.GetCorrelationId(c.Request.Context()); ok {
				fields["correlation_id"] = id
			}
			logger.WithFields(fields).Error(c.Errors.String())
		}
	}
}

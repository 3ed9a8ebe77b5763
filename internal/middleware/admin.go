package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BarkinBalci/story-analytics-service/internal/dto"
)

const AdminKeyHeader = "X-Admin-Key"

// AdminAuth requires a known X-Admin-Key. With no keys configured every request passes.
func AdminAuth(keys []string, log *zap.Logger) gin.HandlerFunc {
	allowed := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			allowed = append(allowed, []byte(k))
		}
	}

	return func(c *gin.Context) {
		if len(allowed) == 0 {
			c.Next()
			return
		}

		presented := []byte(c.GetHeader(AdminKeyHeader))
		for _, key := range allowed {
			if subtle.ConstantTimeCompare(presented, key) == 1 {
				c.Next()
				return
			}
		}

		log.Warn("Rejected admin request",
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", ClientIP(c.Request)))
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "unauthorized",
			Message: "a valid " + AdminKeyHeader + " header is required",
		})
	}
}

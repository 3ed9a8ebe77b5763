package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// StoreTimeout bounds the request context so that a slow store cannot hold a request open
func StoreTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

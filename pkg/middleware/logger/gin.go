package logger

import (
	"time"

	"github.com/gin-gonic/gin"
)

// LogWithWriter is the gin access log middleware.
func LogWithWriter() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		path := ctx.Request.URL.Path
		query := ctx.Request.URL.RawQuery

		ctx.Next()

		Infof(ctx.Request.Context(),
			"access method: %s, path: %s, query: %s, status: %d, cost: %s, client: %s",
			ctx.Request.Method,
			path,
			query,
			ctx.Writer.Status(),
			time.Since(start),
			ctx.ClientIP())
	}
}

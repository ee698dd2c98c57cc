package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger はHTTPリクエストをログに出力する。skipPaths のパスは出力しない
func Logger(logger *log.Logger, skipPaths ...string) gin.HandlerFunc {
	if logger == nil {
		logger = log.Default()
	}
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if _, ok := skip[path]; ok {
			return
		}
		if raw != "" {
			path = path + "?" + raw
		}

		status := c.Writer.Status()
		mark := "🌐"
		if status >= 500 {
			mark = "❌"
		} else if status >= 400 {
			mark = "⚠️"
		}

		logger.Printf("%s [%s] %s %s %d %v %s",
			mark,
			c.Request.Method,
			path,
			c.ClientIP(),
			status,
			time.Since(start),
			c.Errors.String(),
		)
	}
}

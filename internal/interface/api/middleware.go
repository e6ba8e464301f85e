package api

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// LogFunc receives formatted log lines from the HTTP layer.
type LogFunc func(format string, args ...interface{})

// Recovery converts panics in handlers into 500 responses.
func Recovery(logf LogFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logf("panic recovered: %v\n%s", err, debug.Stack())
				c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// RequestLog writes one line per completed request.
func RequestLog(logf LogFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logf("%s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}

// CORS allows browser clients on other origins to reach the API.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

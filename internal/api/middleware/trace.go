package middleware

import (
	"Tracklight/internal/pkg/logger"
	"regexp"

	"github.com/gin-gonic/gin"
)

const TraceHeader = "X-Trace-ID"

// 上游传入的 trace id 会原样写进日志，只接受常见字符
var traceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)

func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceHeader)
		if !traceIDPattern.MatchString(traceID) {
			traceID = ""
		}

		ctx := logger.WithTraceID(c.Request.Context(), traceID)
		traceID = logger.TraceID(ctx)

		c.Set(logger.TraceIDKey, traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceHeader, traceID)
		c.Next()
	}
}

package middleware

import (
	"bytes"
	"io"
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// 审计日志中请求体和响应体的最大保留字节数
const auditBodyLimit = 4096

type cappedBodyWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *cappedBodyWriter) Write(b []byte) (int, error) {
	if room := auditBodyLimit - w.body.Len(); room > 0 {
		w.body.Write(b[:min(room, len(b))])
	}
	return w.ResponseWriter.Write(b)
}

func (w *cappedBodyWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// AuditMiddleware 请求结束后输出一条审计记录。请求头不入日志，鉴权 Token 和定时任务密钥都在头里
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		var reqBody []byte
		if c.Request.Body != nil && c.Request.Method != http.MethodGet {
			raw, _ := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			reqBody = raw[:min(len(raw), auditBodyLimit)]
		}

		w := &cappedBodyWriter{ResponseWriter: c.Writer}
		c.Writer = w
		start := time.Now()

		c.Next()

		// 鉴权在本中间件之后执行，这里才能拿到租户
		attrs := []any{
			log.String("method", c.Request.Method),
			log.String("route", c.FullPath()),
			log.String("query", c.Request.URL.RawQuery),
			log.Uint64("tenant_id", c.GetUint64(CtxTenantID)),
			log.Uint64("user_id", c.GetUint64(CtxUserID)),
			log.Int("status", w.Status()),
			log.Duration("latency", time.Since(start)),
			log.String("res_body", w.body.String()),
		}
		if len(reqBody) > 0 {
			attrs = append(attrs, log.String("req_body", string(reqBody)))
		}
		log.InfoContext(c.Request.Context(), "Audit", attrs...)
	}
}

package logger

import (
	"Tracklight/internal/api/config"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

type accessRecord struct {
	Time        string `json:"time"`
	Level       string `json:"level"`
	Msg         string `json:"msg"`
	TraceID     string `json:"trace_id,omitempty"`
	LogToken    string `json:"log_token,omitempty"`
	TargetIndex string `json:"target_index,omitempty"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	Status      int    `json:"status"`
	LatencyMs   int64  `json:"latency_ms"`
	ClientIP    string `json:"client_ip"`
}

// SetupGin 访问日志与 slog 的 JSON 格式对齐，方便 logstash 按同一索引收集
func SetupGin(r *gin.Engine, cfg config.LogstashConfig) {
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    LogWriter,
		SkipPaths: []string{"/metrics", "/api/ping"},
		Formatter: func(p gin.LogFormatterParams) string {
			return formatAccess(p, cfg)
		},
	}))

	r.Use(gin.Recovery())
}

func formatAccess(p gin.LogFormatterParams, cfg config.LogstashConfig) string {
	rec := accessRecord{
		Time:        p.TimeStamp.UTC().Format(time.RFC3339),
		Level:       "INFO",
		Msg:         "GIN_ACCESS",
		LogToken:    cfg.Token,
		TargetIndex: cfg.Index,
		Method:      p.Method,
		Path:        p.Path,
		Status:      p.StatusCode,
		LatencyMs:   p.Latency.Milliseconds(),
		ClientIP:    p.ClientIP,
	}
	if id, ok := p.Keys[TraceIDKey].(string); ok {
		rec.TraceID = id
	}
	if rec.TraceID == "" && p.Request != nil {
		rec.TraceID = TraceID(p.Request.Context())
	}
	if p.StatusCode >= 500 {
		rec.Level = "ERROR"
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return ""
	}
	return string(b) + "\n"
}

package logger

import (
	"Tracklight/internal/api/config"
	"bytes"
	"context"
	"errors"
	log "log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestContextHandlerAddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&ContextHandler{log.NewJSONHandler(&buf, nil)})

	ctx := WithTraceID(context.Background(), "trace-1")
	l.InfoContext(ctx, "refresh done")
	l.With("entity_id", 7).InfoContext(ctx, "with attrs")
	l.Info("no trace")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	require.Equal(t, "trace-1", lines[0][TraceIDKey])
	require.Equal(t, "trace-1", lines[1][TraceIDKey])
	require.NotContains(t, lines[2], TraceIDKey)
}

func TestWithTraceIDGeneratesWhenEmpty(t *testing.T) {
	ctx := WithTraceID(context.Background(), "")
	require.Len(t, TraceID(ctx), 36)
}

func TestRemoteOnlyReceivesTracedRecords(t *testing.T) {
	var local, remote bytes.Buffer
	tee := NewTeeHandler(
		log.NewJSONHandler(&local, nil),
		&RemoteFilterHandler{next: log.NewJSONHandler(&remote, nil)},
	)
	l := log.New(&ContextHandler{tee})

	l.InfoContext(WithTraceID(context.Background(), "t-9"), "shipped")
	l.Info("local only")

	require.Len(t, decodeLines(t, &local), 2)
	shipped := decodeLines(t, &remote)
	require.Len(t, shipped, 1)
	require.Equal(t, "shipped", shipped[0]["msg"])
}

func TestRemoteFilterHonoursBoundTraceID(t *testing.T) {
	var remote bytes.Buffer
	l := log.New(&RemoteFilterHandler{next: log.NewJSONHandler(&remote, nil)})

	l.With(TraceIDKey, "job-1").Info("bound")
	l.With("entity_id", 3).Info("untraced")

	shipped := decodeLines(t, &remote)
	require.Len(t, shipped, 1)
	require.Equal(t, "bound", shipped[0]["msg"])
}

type failingHandler struct{}

func (failingHandler) Enabled(context.Context, log.Level) bool { return true }
func (failingHandler) Handle(context.Context, log.Record) error { return errors.New("conn closed") }
func (failingHandler) WithAttrs([]log.Attr) log.Handler { return failingHandler{} }
func (failingHandler) WithGroup(string) log.Handler { return failingHandler{} }

func TestTeeHandlerKeepsLocalOutputOnRemoteError(t *testing.T) {
	var local bytes.Buffer
	tee := NewTeeHandler(failingHandler{}, log.NewJSONHandler(&local, &log.HandlerOptions{Level: log.LevelWarn}))

	require.True(t, tee.Enabled(context.Background(), log.LevelInfo))
	err := log.New(tee).Handler().Handle(context.Background(), log.NewRecord(time.Now(), log.LevelWarn, "warn", 0))
	require.Error(t, err)
	require.Len(t, decodeLines(t, &local), 1)

	require.NoError(t, NewTeeHandler(log.NewJSONHandler(&local, &log.HandlerOptions{Level: log.LevelWarn})).
		Handle(context.Background(), log.NewRecord(time.Now(), log.LevelInfo, "dropped", 0)))
	require.Len(t, decodeLines(t, &local), 1)
}

func TestFormatAccess(t *testing.T) {
	line := formatAccess(gin.LogFormatterParams{
		TimeStamp:  time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		StatusCode: 502,
		Latency:    1500 * time.Millisecond,
		Method:     "POST",
		Path:       `/api/metrics/entities/5/refresh?q="x"`,
		Request:    httptest.NewRequest("POST", "/", nil).WithContext(WithTraceID(context.Background(), "t-1")),
	}, config.LogstashConfig{Index: "logstash-tracklight"})

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &got))
	require.Equal(t, "t-1", got[TraceIDKey])
	require.Equal(t, "ERROR", got["level"])
	require.EqualValues(t, 1500, got["latency_ms"])
	require.Equal(t, "logstash-tracklight", got["target_index"])
	require.NotContains(t, got, "log_token")
}

func TestCommandKeyHidesCredentials(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, "metrics:analytics:5:7d", commandKey(redis.NewStringCmd(ctx, "get", "metrics:analytics:5:7d")))
	require.Equal(t, "[PROTECTED]", commandKey(redis.NewStatusCmd(ctx, "auth", "user", "pass")))
	require.Empty(t, commandKey(redis.NewStatusCmd(ctx, "ping")))
	require.True(t, ignorableRedisError("get", redis.Nil))
	require.False(t, ignorableRedisError("get", errors.New("READONLY")))
}

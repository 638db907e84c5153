// Package provider 第三方互动数据源客户端及其优先级链
package provider

import (
	"Tracklight/internal/model"
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// Name 数据源名称，同时作为凭据表中的 provider 字段
type Name string

const (
	NamePrimary     Name = "primary"
	NameScraper     Name = "scraper"
	NameSyndication Name = "syndication"
)

var (
	ErrNotFound              = errors.New("provider: entity not found or permanently unavailable")
	ErrTransient             = errors.New("provider: transient failure")
	ErrMalformedResponse     = errors.New("provider: malformed response")
	ErrJobTimeout            = errors.New("provider: scraping job did not finish in time")
	ErrAllProvidersExhausted = errors.New("provider: all providers exhausted")
)

// Credential 解密后的单个数据源凭据，只在请求内存中存在
type Credential struct {
	Provider Name
	APIKey   string
	ActorID  string
}

// LogValue 凭据永远不以明文进入日志
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", string(c.Provider)),
		slog.Bool("has_key", c.APIKey != ""),
	)
}

// RawResult 数据源返回并已映射为规范字段的结果
type RawResult struct {
	Provider  Name
	Counters  model.Counters
	FetchedAt time.Time
}

// Client 单个数据源的能力接口
type Client interface {
	Name() Name
	RequiresCredential() bool
	Supports(kind model.EntityKind) bool
	// FetchEntityMetrics 返回结果或 ErrNotFound / ErrTransient / ErrMalformedResponse / ErrJobTimeout
	FetchEntityMetrics(ctx context.Context, ref Reference, cred *Credential) (*RawResult, error)
}

// Recorder 记录每次数据源调用的结果
type Recorder interface {
	ObserveProviderCall(provider, kind, outcome string, elapsed time.Duration)
}

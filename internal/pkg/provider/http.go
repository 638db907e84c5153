package provider

import (
	"Tracklight/internal/api/config"
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const defaultTimeout = 15 * time.Second

// newRestyClient 每个数据源独立的 HTTP 客户端，超时必须显式设置
func newRestyClient(baseURL string, timeout time.Duration, userAgent string) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept-Language", "en-US,en;q=0.9")
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal
	return client
}

// newLimiter rps <= 0 表示不限速
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func endpointLimiter(ep config.ProviderEndpoint) *rate.Limiter {
	return newLimiter(ep.RPS)
}

func waitTurn(ctx context.Context, limiter *rate.Limiter, name Name) error {
	if err := limiter.Wait(ctx); err != nil {
		return errors.Wrapf(ErrTransient, "%s: rate limiter: %v", name, err)
	}
	return nil
}

// classifyStatus 404/410 视为确定不存在，其余非 2xx 都是暂时失败
func classifyStatus(name Name, resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return errors.Wrapf(ErrNotFound, "%s: status %d", name, code)
	default:
		return errors.Wrapf(ErrTransient, "%s: status %d", name, code)
	}
}

// transportError 只保留底层原因；url.Error 的文本带完整 URL，不能进日志
func transportError(name Name, err error) error {
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		return errors.Wrapf(ErrTransient, "%s: %s request: %v", name, strings.ToLower(urlErr.Op), urlErr.Err)
	}
	return errors.Wrapf(ErrTransient, "%s: %v", name, err)
}

func decodeBody(name Name, body []byte, v any) error {
	if len(body) == 0 {
		return errors.Wrapf(ErrMalformedResponse, "%s: empty body", name)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrapf(ErrMalformedResponse, "%s: %v", name, err)
	}
	return nil
}

func unsupportedKind(name Name, ref Reference) error {
	return errors.Wrap(ErrTransient, fmt.Sprintf("%s: kind %s not supported", name, ref.Kind))
}

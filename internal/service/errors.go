package service

import (
	"errors"
	"fmt"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	TooManyRequests     = 429
	InternalServerError = 500
	ServiceUnavailable  = 503
)

var (
	ErrParamInvalid        = errors.New("参数错误")
	ErrEntityNotFound      = errors.New("追踪对象不存在")
	ErrInvalidReference    = errors.New("追踪对象的链接或 ID 无法识别")
	ErrUpstreamNotFound    = errors.New("外部内容不存在或已被删除")
	ErrUpstreamUnavailable = errors.New("数据源暂时不可用，请稍后重试")
	ErrRateLimited         = errors.New("刷新过于频繁，请稍后再试")
	ErrCronSecretInvalid   = errors.New("定时任务密钥错误")
	ErrRefreshInProgress   = errors.New("批量刷新正在进行中，请稍后再试")
	UnauthorizedError      = errors.New("权限不足")
	UnExpectedError        = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:        BadRequest,
	ErrEntityNotFound:      NotFound,
	ErrInvalidReference:    BadRequest,
	ErrUpstreamNotFound:    NotFound,
	ErrUpstreamUnavailable: ServiceUnavailable,
	ErrRateLimited:         TooManyRequests,
	ErrCronSecretInvalid:   Unauthorized,
	ErrRefreshInProgress:   TooManyRequests,
	UnauthorizedError:      Forbidden,
	UnExpectedError:        InternalServerError,
}

// RateLimitedError 冷却期内的拒绝，携带向上取整后的剩余分钟数
type RateLimitedError struct {
	RetryAfterMinutes int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s（%d 分钟后可重试）", ErrRateLimited.Error(), e.RetryAfterMinutes)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// CodeOf 返回错误对应的业务码，未登记的错误视为 500
func CodeOf(err error) (int, bool) {
	if code, ok := ErrorMap[err]; ok {
		return code, true
	}
	for sentinel, code := range ErrorMap {
		if errors.Is(err, sentinel) {
			return code, true
		}
	}
	return InternalServerError, false
}

// Package metric 规范化计数的校验与派生指标计算
package metric

import (
	"Tracklight/internal/model"
	"errors"
)

// ErrEmptyCounters 全部计数为零或负数，视为没有数据而不是零互动
var ErrEmptyCounters = errors.New("metric: every counter is zero or negative")

// Normalize 负数截断为零，全部为零时返回 ErrEmptyCounters
func Normalize(c model.Counters) (model.Counters, error) {
	out := model.Counters{
		Impressions: clamp(c.Impressions),
		Likes:       clamp(c.Likes),
		Reshares:    clamp(c.Reshares),
		Replies:     clamp(c.Replies),
		Quotes:      clamp(c.Quotes),
		Bookmarks:   clamp(c.Bookmarks),
		Followers:   clamp(c.Followers),
		Following:   clamp(c.Following),
	}
	if !IsUsable(out) {
		return model.Counters{}, ErrEmptyCounters
	}
	return out, nil
}

// IsUsable 至少有一个计数大于零
func IsUsable(c model.Counters) bool {
	for _, v := range c.Fields() {
		if v > 0 {
			return true
		}
	}
	return false
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

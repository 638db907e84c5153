package metric

import (
	"Tracklight/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// EngagementRate (点赞+转发+回复+引用) / 曝光 × 100，保留两位小数；曝光为 0 时返回 0
func EngagementRate(c model.Counters) float64 {
	if c.Impressions <= 0 {
		return 0
	}
	interactions := c.Interactions()
	if interactions <= 0 {
		return 0
	}
	rate := decimal.NewFromInt(interactions).
		Div(decimal.NewFromInt(c.Impressions)).
		Mul(hundred).
		Round(2)
	f, _ := rate.Float64()
	return f
}

// PeriodDelta 当前周期相对上一周期的百分比变化，保留两位小数。
// 上一周期无数据（或为 0）时：当前值为正返回 100，否则返回 0。
func PeriodDelta(current, previous int64, hasPrevious bool) float64 {
	if !hasPrevious || previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	delta := decimal.NewFromInt(current - previous).
		Div(decimal.NewFromInt(previous)).
		Mul(hundred).
		Round(2)
	f, _ := delta.Float64()
	return f
}

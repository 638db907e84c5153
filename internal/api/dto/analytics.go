package dto

import "time"

// AnalyticsQueryDTO period 为空时按实体类型取默认值
type AnalyticsQueryDTO struct {
	Period string `form:"period" validate:"omitempty,oneof=7d 14d 30d 90d 365d"`
}

// AnalyticsDTO 实体在某个统计周期内的分析数据
type AnalyticsDTO struct {
	Entity *EntityMetricsDTO `json:"entity"`
	Period string            `json:"period"`
	From   time.Time         `json:"from"`
	To     time.Time         `json:"to"`
	Deltas *DeltaDTO         `json:"deltas"`
	Series []*DailyPointDTO  `json:"series"`
}

// DeltaDTO 当前周期最新值相对上一等长周期最新值的百分比变化
type DeltaDTO struct {
	Impressions float64 `json:"impressions"`
	Likes       float64 `json:"likes"`
	Reshares    float64 `json:"reshares"`
	Replies     float64 `json:"replies"`
	Quotes      float64 `json:"quotes"`
	Bookmarks   float64 `json:"bookmarks"`
	Followers   float64 `json:"followers"`
	Following   float64 `json:"following"`
}

// DailyPointDTO 按天分桶后每天最后一条快照
type DailyPointDTO struct {
	Date           string    `json:"date"`
	CapturedAt     time.Time `json:"captured_at"`
	Impressions    int64     `json:"impressions"`
	Likes          int64     `json:"likes"`
	Reshares       int64     `json:"reshares"`
	Replies        int64     `json:"replies"`
	Quotes         int64     `json:"quotes"`
	Bookmarks      int64     `json:"bookmarks"`
	Followers      int64     `json:"followers"`
	Following      int64     `json:"following"`
	EngagementRate float64   `json:"engagement_rate"`
}

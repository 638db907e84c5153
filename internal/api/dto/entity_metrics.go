package dto

import "time"

// EntityMetricsDTO 实体当前缓存的指标
type EntityMetricsDTO struct {
	ID                uint64     `json:"entity_id"`
	CampaignID        uint64     `json:"campaign_id"`
	Kind              string     `json:"kind"`
	ExternalURL       string     `json:"external_url"`
	Impressions       int64      `json:"impressions"`
	Likes             int64      `json:"likes"`
	Reshares          int64      `json:"reshares"`
	Replies           int64      `json:"replies"`
	Quotes            int64      `json:"quotes"`
	Bookmarks         int64      `json:"bookmarks"`
	Followers         int64      `json:"followers"`
	Following         int64      `json:"following"`
	EngagementRate    float64    `json:"engagement_rate"`
	LastMetricsUpdate *time.Time `json:"last_metrics_update"`
}

// RefreshResultDTO 单实体刷新结果
type RefreshResultDTO struct {
	Provider   string        `json:"provider"`
	SnapshotID uint64        `json:"snapshot_id"`
	Analytics  *AnalyticsDTO `json:"analytics"`
}

// BatchSummaryDTO 批量刷新汇总，Errors 只保留有限条样本
type BatchSummaryDTO struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

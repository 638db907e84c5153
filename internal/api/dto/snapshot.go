package dto

import "time"

// SnapshotQueryDTO 导出原始快照的日期范围，格式 2006-01-02，均为 UTC
type SnapshotQueryDTO struct {
	From string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" validate:"omitempty,datetime=2006-01-02"`
}

type SnapshotDTO struct {
	ID             uint64    `json:"id"`
	EntityID       uint64    `json:"entity_id"`
	CapturedAt     time.Time `json:"captured_at"`
	Provider       string    `json:"provider"`
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

// SnapshotEvent 快照写入成功后发往 Kafka 的领域事件
type SnapshotEvent struct {
	EventID        string    `json:"event_id"`
	EntityID       uint64    `json:"entity_id"`
	TenantID       uint64    `json:"tenant_id"`
	CampaignID     uint64    `json:"campaign_id"`
	Kind           string    `json:"kind"`
	Provider       string    `json:"provider"`
	Trigger        string    `json:"trigger"`
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

package model

import (
	"time"
)

// EntityKind 被追踪实体类型
type EntityKind string

const (
	EntityKindPost    EntityKind = "POST"
	EntityKindProfile EntityKind = "PROFILE"
)

const (
	EntityStatusActive   int8 = 1
	EntityStatusArchived int8 = 2
)

type TrackedEntity struct {
	ID          uint64     `gorm:"primaryKey"`
	TenantID    uint64     `gorm:"not null;index:idx_tenant_campaign" json:"tenant_id"`
	CampaignID  uint64     `gorm:"not null;default:0;index:idx_tenant_campaign" json:"campaign_id"`
	Kind        EntityKind `gorm:"type:varchar(16);not null" json:"kind"`
	ExternalURL string     `gorm:"type:varchar(512)" json:"external_url"`
	ExternalID  string     `gorm:"type:varchar(128)" json:"external_id"`
	Status      int8       `gorm:"not null;default:1" json:"status"` // 1:追踪中, 2:已归档

	// 缓存指标，供快速读取
	Impressions    int64   `gorm:"not null;default:0" json:"impressions"`
	Likes          int64   `gorm:"not null;default:0" json:"likes"`
	Reshares       int64   `gorm:"not null;default:0" json:"reshares"`
	Replies        int64   `gorm:"not null;default:0" json:"replies"`
	Quotes         int64   `gorm:"not null;default:0" json:"quotes"`
	Bookmarks      int64   `gorm:"not null;default:0" json:"bookmarks"`
	Followers      int64   `gorm:"not null;default:0" json:"followers"`
	Following      int64   `gorm:"not null;default:0" json:"following"`
	EngagementRate float64 `gorm:"not null;default:0" json:"engagement_rate"`

	LastMetricsUpdate *time.Time `json:"last_metrics_update"`
	MetricsVersion    int64      `gorm:"not null;default:0" json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (TrackedEntity) TableName() string {
	return "tracked_entities"
}

// CachedCounters 返回实体上缓存的计数
func (e *TrackedEntity) CachedCounters() Counters {
	return Counters{
		Impressions: e.Impressions,
		Likes:       e.Likes,
		Reshares:    e.Reshares,
		Replies:     e.Replies,
		Quotes:      e.Quotes,
		Bookmarks:   e.Bookmarks,
		Followers:   e.Followers,
		Following:   e.Following,
	}
}

package model

import (
	"time"
)

// MetricSnapshot 只追加的时间序列快照，不更新不删除
type MetricSnapshot struct {
	ID             uint64    `gorm:"primaryKey"`
	EntityID       uint64    `gorm:"not null;index:idx_entity_captured" json:"entity_id"`
	CapturedAt     time.Time `gorm:"not null;index:idx_entity_captured" json:"captured_at"`
	Provider       string    `gorm:"type:varchar(32);not null" json:"provider"`
	Impressions    int64     `gorm:"not null;default:0" json:"impressions"`
	Likes          int64     `gorm:"not null;default:0" json:"likes"`
	Reshares       int64     `gorm:"not null;default:0" json:"reshares"`
	Replies        int64     `gorm:"not null;default:0" json:"replies"`
	Quotes         int64     `gorm:"not null;default:0" json:"quotes"`
	Bookmarks      int64     `gorm:"not null;default:0" json:"bookmarks"`
	Followers      int64     `gorm:"not null;default:0" json:"followers"`
	Following      int64     `gorm:"not null;default:0" json:"following"`
	EngagementRate float64   `gorm:"not null;default:0" json:"engagement_rate"`
}

func (MetricSnapshot) TableName() string {
	return "metric_snapshots"
}

func (s *MetricSnapshot) Counters() Counters {
	return Counters{
		Impressions: s.Impressions,
		Likes:       s.Likes,
		Reshares:    s.Reshares,
		Replies:     s.Replies,
		Quotes:      s.Quotes,
		Bookmarks:   s.Bookmarks,
		Followers:   s.Followers,
		Following:   s.Following,
	}
}

// NewMetricSnapshot 由规范化计数构造快照
func NewMetricSnapshot(entityID uint64, capturedAt time.Time, provider string, c Counters, rate float64) *MetricSnapshot {
	return &MetricSnapshot{
		EntityID:       entityID,
		CapturedAt:     capturedAt,
		Provider:       provider,
		Impressions:    c.Impressions,
		Likes:          c.Likes,
		Reshares:       c.Reshares,
		Replies:        c.Replies,
		Quotes:         c.Quotes,
		Bookmarks:      c.Bookmarks,
		Followers:      c.Followers,
		Following:      c.Following,
		EngagementRate: rate,
	}
}

package repository

import (
	"Tracklight/internal/model"
	"Tracklight/internal/pkg/util"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrVersionConflict 读取实体之后已有其他刷新提交，本次写入整体回滚
var ErrVersionConflict = errors.New("tracked entity metrics version changed")

type MetricSnapshotRepo interface {
	// Append 同一事务内插入快照并更新实体缓存字段，
	// 缓存更新以 expectedVersion 为条件，不满足时返回 ErrVersionConflict 且两者都不落库
	Append(ctx context.Context, snapshot *model.MetricSnapshot, expectedVersion int64) error
	// LatestInPeriod [from, to] 内最新的一条，没有时返回 nil, nil
	LatestInPeriod(ctx context.Context, entityID uint64, from, to time.Time) (*model.MetricSnapshot, error)
	// DailyBucketed 按 UTC 日期分桶，每天只保留最后一条，按日期升序
	DailyBucketed(ctx context.Context, entityID uint64, from, to time.Time) ([]*model.MetricSnapshot, error)
	ListRange(ctx context.Context, entityID uint64, from, to time.Time) ([]*model.MetricSnapshot, error)
	CountByEntity(ctx context.Context, entityID uint64) (int64, error)
}

type metricSnapshotRepoImpl struct {
	db *gorm.DB
}

func NewMetricSnapshotRepo(db *gorm.DB) MetricSnapshotRepo {
	return &metricSnapshotRepoImpl{db: db}
}

func (r *metricSnapshotRepoImpl) Append(ctx context.Context, snapshot *model.MetricSnapshot, expectedVersion int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(snapshot).Error; err != nil {
			return err
		}

		result := tx.Model(&model.TrackedEntity{}).
			Where("id = ? AND metrics_version = ?", snapshot.EntityID, expectedVersion).
			Updates(map[string]interface{}{
				"impressions":         snapshot.Impressions,
				"likes":               snapshot.Likes,
				"reshares":            snapshot.Reshares,
				"replies":             snapshot.Replies,
				"quotes":              snapshot.Quotes,
				"bookmarks":           snapshot.Bookmarks,
				"followers":           snapshot.Followers,
				"following":           snapshot.Following,
				"engagement_rate":     snapshot.EngagementRate,
				"last_metrics_update": snapshot.CapturedAt,
				"metrics_version":     gorm.Expr("metrics_version + 1"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}
		return nil
	})
}

func (r *metricSnapshotRepoImpl) LatestInPeriod(ctx context.Context, entityID uint64, from, to time.Time) (*model.MetricSnapshot, error) {
	snapshot := &model.MetricSnapshot{}
	err := r.db.WithContext(ctx).
		Where("entity_id = ? AND captured_at >= ? AND captured_at <= ?", entityID, from.UTC(), to.UTC()).
		Order("captured_at DESC, id DESC").
		First(snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return snapshot, nil
}

func (r *metricSnapshotRepoImpl) DailyBucketed(ctx context.Context, entityID uint64, from, to time.Time) ([]*model.MetricSnapshot, error) {
	rows, err := r.ListRange(ctx, entityID, from, to)
	if err != nil {
		return nil, err
	}

	buckets := make([]*model.MetricSnapshot, 0)
	lastKey := ""
	for _, s := range rows {
		key := util.DayKey(s.CapturedAt)
		// rows 升序，同一天后来的覆盖前面的
		if key == lastKey {
			buckets[len(buckets)-1] = s
			continue
		}
		buckets = append(buckets, s)
		lastKey = key
	}
	return buckets, nil
}

func (r *metricSnapshotRepoImpl) ListRange(ctx context.Context, entityID uint64, from, to time.Time) ([]*model.MetricSnapshot, error) {
	snapshots := make([]*model.MetricSnapshot, 0)
	err := r.db.WithContext(ctx).
		Where("entity_id = ? AND captured_at >= ? AND captured_at <= ?", entityID, from.UTC(), to.UTC()).
		Order("captured_at ASC, id ASC").
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *metricSnapshotRepoImpl) CountByEntity(ctx context.Context, entityID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.MetricSnapshot{}).
		Where("entity_id = ?", entityID).
		Count(&count).Error
	return count, err
}

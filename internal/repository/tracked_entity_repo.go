package repository

import (
	"Tracklight/internal/model"
	"context"
	"errors"

	"gorm.io/gorm"
)

type TrackedEntityRepo interface {
	CreateEntity(ctx context.Context, entity *model.TrackedEntity) error
	// GetEntity 按租户隔离，不存在时返回 nil, nil
	GetEntity(ctx context.Context, tenantID, entityID uint64) (*model.TrackedEntity, error)
	ListActiveByCampaign(ctx context.Context, tenantID, campaignID uint64) ([]*model.TrackedEntity, error)
	ListActive(ctx context.Context) ([]*model.TrackedEntity, error)
}

type trackedEntityRepoImpl struct {
	db *gorm.DB
}

func NewTrackedEntityRepo(db *gorm.DB) TrackedEntityRepo {
	return &trackedEntityRepoImpl{db: db}
}

func (r *trackedEntityRepoImpl) CreateEntity(ctx context.Context, entity *model.TrackedEntity) error {
	return r.db.WithContext(ctx).Create(entity).Error
}

func (r *trackedEntityRepoImpl) GetEntity(ctx context.Context, tenantID, entityID uint64) (*model.TrackedEntity, error) {
	entity := &model.TrackedEntity{}
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", entityID, tenantID).
		First(entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return entity, nil
}

func (r *trackedEntityRepoImpl) ListActiveByCampaign(ctx context.Context, tenantID, campaignID uint64) ([]*model.TrackedEntity, error) {
	entities := make([]*model.TrackedEntity, 0)
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND campaign_id = ? AND status = ?", tenantID, campaignID, model.EntityStatusActive).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// ListActive 全系统追踪中的实体，定时批量刷新使用
func (r *trackedEntityRepoImpl) ListActive(ctx context.Context) ([]*model.TrackedEntity, error) {
	entities := make([]*model.TrackedEntity, 0)
	err := r.db.WithContext(ctx).
		Where("status = ?", model.EntityStatusActive).
		Order("tenant_id ASC, id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return entities, nil
}

package repository

import (
	"Tracklight/internal/model"
	"context"

	"gorm.io/gorm"
)

type ProviderCredentialRepo interface {
	SaveCredential(ctx context.Context, cred *model.ProviderCredential) error
	// ListEnabled 按租户配置的优先级升序
	ListEnabled(ctx context.Context, tenantID uint64) ([]*model.ProviderCredential, error)
}

type providerCredentialRepoImpl struct {
	db *gorm.DB
}

func NewProviderCredentialRepo(db *gorm.DB) ProviderCredentialRepo {
	return &providerCredentialRepoImpl{db: db}
}

func (r *providerCredentialRepoImpl) SaveCredential(ctx context.Context, cred *model.ProviderCredential) error {
	return r.db.WithContext(ctx).Save(cred).Error
}

func (r *providerCredentialRepoImpl) ListEnabled(ctx context.Context, tenantID uint64) ([]*model.ProviderCredential, error) {
	creds := make([]*model.ProviderCredential, 0)
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, model.CredentialStatusEnabled).
		Order("priority ASC, id ASC").
		Find(&creds).Error
	if err != nil {
		return nil, err
	}
	return creds, nil
}

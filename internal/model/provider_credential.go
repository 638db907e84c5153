package model

import "time"

const (
	CredentialStatusEnabled  int8 = 1
	CredentialStatusDisabled int8 = 2
)

// ProviderCredential 租户的数据源凭据，本服务只读
type ProviderCredential struct {
	ID        uint64    `gorm:"primaryKey"`
	TenantID  uint64    `gorm:"not null;uniqueIndex:idx_tenant_provider"`
	Provider  string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_tenant_provider"`
	APIKey    string    `gorm:"type:text;not null"` // enc:v1: 前缀为密文，否则为历史明文
	ActorID   string    `gorm:"type:varchar(128)"`
	Priority  int       `gorm:"not null;default:100"` // 越小越优先
	Status    int8      `gorm:"not null;default:1"`   // 1:启用, 2:停用
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProviderCredential) TableName() string {
	return "provider_credentials"
}

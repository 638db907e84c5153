package service

import (
	"Tracklight/internal/pkg/provider"
	"Tracklight/internal/pkg/security"
	"Tracklight/internal/repository"
	"context"
	log "log/slog"
)

type CredentialResolver interface {
	// Resolve 返回按优先级排列的已解密凭据，缺失或读取失败时返回空集合而不是错误
	Resolve(ctx context.Context, tenantID uint64) []provider.Credential
}

type credentialResolverImpl struct {
	credRepo repository.ProviderCredentialRepo
	cipher   *security.SecretCipher
}

// NewCredentialResolver cipher 可以为 nil，此时只能读取明文凭据
func NewCredentialResolver(credRepo repository.ProviderCredentialRepo, cipher *security.SecretCipher) CredentialResolver {
	return &credentialResolverImpl{credRepo: credRepo, cipher: cipher}
}

func (s *credentialResolverImpl) Resolve(ctx context.Context, tenantID uint64) []provider.Credential {
	rows, err := s.credRepo.ListEnabled(ctx, tenantID)
	if err != nil {
		log.ErrorContext(ctx, "load provider credentials failed", "tenant_id", tenantID, "err", err)
		return nil
	}

	creds := make([]provider.Credential, 0, len(rows))
	for _, row := range rows {
		key, err := s.cipher.Decrypt(row.APIKey)
		if err != nil {
			// 只记录是哪一行，密文和明文都不能进日志
			log.WarnContext(ctx, "skip undecryptable provider credential",
				"tenant_id", tenantID, "provider", row.Provider, "credential_id", row.ID, "err", err)
			continue
		}
		if key == "" {
			continue
		}
		creds = append(creds, provider.Credential{
			Provider: provider.Name(row.Provider),
			APIKey:   key,
			ActorID:  row.ActorID,
		})
	}
	return creds
}

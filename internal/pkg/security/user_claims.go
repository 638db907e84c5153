package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	JWTExpirationTime   = time.Hour * 24
	RoleAdmin           = "ADMIN"
	RoleCampaignManager = "CAMPAIGN_MANAGER"
)

// UserClaims Token 中携带的身份信息，租户与角色由外部认证服务签发
type UserClaims struct {
	UserID   uint64   `json:"user_id"`
	TenantID uint64   `json:"tenant_id"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole 判断是否拥有指定角色
func (c *UserClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

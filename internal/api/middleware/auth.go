package middleware

import (
	"Tracklight/internal/pkg/response"
	"Tracklight/internal/pkg/security"
	"strings"

	"github.com/gin-gonic/gin"
)

// 鉴权后写入 gin.Context 的键
const (
	CtxUserID     = "user_id"
	CtxTenantID   = "tenant_id"
	CtxRoles      = "roles"
	CtxPrivileged = "privileged"
)

// AuthMiddleware 负责验证 JWT 并将用户身份信息注入 Context；Token 由外部认证服务签发
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			response.Fail(c, response.Unauthorized, "Token 缺失或格式错误")
			c.Abort()
			return
		}

		claims, err := security.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			response.Fail(c, response.Unauthorized, "Token 无效或已过期")
			c.Abort()
			return
		}
		if claims.TenantID == 0 {
			response.Fail(c, response.Forbidden, "Token 未绑定租户")
			c.Abort()
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxTenantID, claims.TenantID)
		c.Set(CtxRoles, claims.Roles)
		c.Set(CtxPrivileged, claims.HasRole(security.RoleAdmin))

		c.Next()
	}
}

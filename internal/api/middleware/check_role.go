package middleware

import (
	"Tracklight/internal/pkg/response"
	log "log/slog"
	"slices"

	"github.com/gin-gonic/gin"
)

// CheckRoles 拥有任一角色即可通过，需放在 AuthMiddleware 之后
func CheckRoles(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles := c.GetStringSlice(CtxRoles)
		if slices.ContainsFunc(roles, func(r string) bool { return slices.Contains(requiredRoles, r) }) {
			c.Next()
			return
		}

		log.InfoContext(c.Request.Context(), "role check rejected",
			"user_id", c.GetUint64(CtxUserID),
			"tenant_id", c.GetUint64(CtxTenantID),
			"path", c.FullPath(),
		)
		response.Fail(c, response.Forbidden, "权限不足：无权访问该资源")
		c.Abort()
	}
}

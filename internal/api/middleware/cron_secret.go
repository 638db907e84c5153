package middleware

import (
	"Tracklight/internal/pkg/consts"
	"Tracklight/internal/pkg/response"
	"crypto/subtle"
	log "log/slog"

	"github.com/gin-gonic/gin"
)

// CronSecretMiddleware 定时触发器不走用户会话，只校验共享密钥；未配置密钥时接口整体关闭
func CronSecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(consts.HeaderCronSecret)
		if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			log.WarnContext(c.Request.Context(), "cron trigger rejected", "client_ip", c.ClientIP())
			response.Fail(c, response.Unauthorized, "定时任务密钥错误")
			c.Abort()
			return
		}
		c.Next()
	}
}

package api

import (
	"Tracklight/internal/api/config"
	"Tracklight/internal/api/middleware"
	"Tracklight/internal/pkg/logger"
	"Tracklight/internal/pkg/monitor"
	"Tracklight/internal/pkg/security"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup, collector *monitor.Collector, cfg *config.Config) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS & Metrics
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.Server.CORSOrigins))
	r.Use(collector.GinMiddleware())
	logger.SetupGin(r, cfg.Logstash)

	r.GET("/metrics", gin.WrapH(collector.Handler()))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"Code":    200,
				"Message": "pong",
				"Data":    nil,
			})
		})

		metricsGroup := apiGroup.Group("/metrics")
		metricsGroup.Use(middleware.AuthMiddleware())
		{
			metricsGroup.GET("/entities/:entity_id", group.MetricsHandler.GetAnalytics)
			metricsGroup.GET("/entities/:entity_id/snapshots", group.MetricsHandler.ListSnapshots)
			metricsGroup.POST("/entities/:entity_id/refresh", group.MetricsHandler.RefreshEntity)

			// 需要登录 & 拥有活动管理权限
			campaignGroup := metricsGroup.Group("/campaigns")
			campaignGroup.Use(middleware.CheckRoles(security.RoleAdmin, security.RoleCampaignManager))
			{
				campaignGroup.POST("/:campaign_id/refresh", group.MetricsHandler.RefreshCampaign)
			}
		}

		cronGroup := apiGroup.Group("/cron")
		cronGroup.Use(middleware.CronSecretMiddleware(cfg.Server.CronSecret))
		{
			cronGroup.POST("/refresh-metrics", group.CronHandler.RefreshMetrics)
		}
	}

	return r
}

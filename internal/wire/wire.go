package wire

import (
	"Tracklight/internal/api"
	"Tracklight/internal/api/config"
	"Tracklight/internal/api/handler"
	"Tracklight/internal/job"
	"Tracklight/internal/pkg/cron"
	"Tracklight/internal/pkg/kafka"
	"Tracklight/internal/pkg/monitor"
	"Tracklight/internal/pkg/provider"
	"Tracklight/internal/pkg/security"
	"Tracklight/internal/repository"
	"Tracklight/internal/service"
	"io"
	log "log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router    *gin.Engine
	DB        *gorm.DB
	CronMgr   *cron.Manager
	Publisher io.Closer
}

func BuildApplication(db *gorm.DB, cfg *config.Config) (*ApplicationContainer, error) {
	collector, err := monitor.NewCollector()
	if err != nil {
		return nil, err
	}

	// 凭据解密密钥可为空，此时凭据按明文读取
	var cipher *security.SecretCipher
	if cfg.Security.CredentialKey != "" {
		cipher, err = security.NewSecretCipherFromBase64(cfg.Security.CredentialKey)
		if err != nil {
			return nil, err
		}
	}

	entityRepo := repository.NewTrackedEntityRepo(db)
	snapshotRepo := repository.NewMetricSnapshotRepo(db)
	credentialRepo := repository.NewProviderCredentialRepo(db)

	chain := provider.NewChain(collector,
		provider.NewPrimaryClient(cfg.Providers.Primary, cfg.Providers.UserAgent),
		provider.NewScraperClient(cfg.Providers.Scraper, cfg.Providers.UserAgent),
		provider.NewSyndicationClient(cfg.Providers.Syndication, cfg.Providers.UserAgent),
	)

	var publisher service.SnapshotPublisher
	var closer io.Closer
	if cfg.Kafka.Enable {
		producer, err := kafka.NewSnapshotProducer(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		publisher, closer = producer, producer
	} else {
		log.Warn("kafka disabled, snapshot events will not be published")
	}

	analyticsService := service.NewAnalyticsService(entityRepo, snapshotRepo, cfg.Analytics.CacheTTL)
	credentialResolver := service.NewCredentialResolver(credentialRepo, cipher)
	refreshService := service.NewRefreshService(
		entityRepo,
		snapshotRepo,
		credentialResolver,
		chain,
		analyticsService,
		publisher,
		collector,
		cfg.Refresh,
	)

	refreshJob := job.NewScheduledRefreshJob(refreshService, cfg.Refresh.LockTTL)

	handlers := &api.HandlersGroup{
		MetricsHandler: handler.NewMetricsHandler(refreshService, analyticsService),
		CronHandler:    handler.NewCronHandler(refreshJob),
	}

	router := api.SetupRouter(handlers, collector, cfg)

	cronMgr := cron.NewCronManager(refreshJob, cfg.Refresh.Schedule)

	return &ApplicationContainer{
		Router:    router,
		DB:        db,
		CronMgr:   cronMgr,
		Publisher: closer,
	}, nil
}

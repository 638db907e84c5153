package job

import (
	"Tracklight/internal/api/dto"
	"Tracklight/internal/pkg/consts"
	"Tracklight/internal/pkg/logger"
	"Tracklight/internal/pkg/redis"
	"Tracklight/internal/service"
	"context"
	log "log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ScheduledRefreshJob 定时全量刷新所有追踪中的实体，多实例部署时靠 Redis 锁保证同一时刻只有一个在跑
type ScheduledRefreshJob struct {
	refreshSvc service.RefreshService
	lockTTL    time.Duration
}

func NewScheduledRefreshJob(refreshSvc service.RefreshService, lockTTL time.Duration) *ScheduledRefreshJob {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &ScheduledRefreshJob{
		refreshSvc: refreshSvc,
		lockTTL:    lockTTL,
	}
}

func (s *ScheduledRefreshJob) Run() {
	ctx := logger.WithTraceID(context.Background(), "job-refresh-"+uuid.NewString())
	if _, err := s.RunOnce(ctx, consts.TriggerScheduled); err != nil {
		if errors.Is(err, service.ErrRefreshInProgress) {
			log.InfoContext(ctx, "scheduled refresh already running, skip")
			return
		}
		log.ErrorContext(ctx, "scheduled refresh error", "err", err)
	}
}

// RunOnce 定时任务和 cron 接口共用的入口：拿不到锁返回 ErrRefreshInProgress，
// 批量刷新与调用方的生命周期解绑，只受锁有效期约束
func (s *ScheduledRefreshJob) RunOnce(ctx context.Context, trigger string) (*dto.BatchSummaryDTO, error) {
	owner := uuid.NewString()
	ok, err := redis.TryLock(ctx, consts.ScheduledRefreshLock, owner, s.lockTTL, 1)
	if err != nil {
		log.ErrorContext(ctx, "acquire scheduled refresh lock error", "err", err)
		return nil, err
	}
	if !ok {
		return nil, service.ErrRefreshInProgress
	}
	defer func() {
		if err := redis.UnLock(context.Background(), consts.ScheduledRefreshLock, owner); err != nil {
			log.ErrorContext(ctx, "release scheduled refresh lock error", "err", err)
		}
	}()

	// 运行时间不超过锁的有效期
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.lockTTL)
	defer cancel()

	start := time.Now()
	summary, err := s.refreshSvc.RefreshAllActive(runCtx, trigger)
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "batch refresh finished",
		"trigger", trigger,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"cost", time.Since(start),
	)
	return summary, nil
}

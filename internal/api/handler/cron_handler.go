package handler

import (
	"Tracklight/internal/api/dto"
	"Tracklight/internal/pkg/consts"
	"Tracklight/internal/pkg/response"
	"context"

	"github.com/gin-gonic/gin"
)

// BatchRunner 持锁执行一次全量刷新，由 job.ScheduledRefreshJob 实现
type BatchRunner interface {
	RunOnce(ctx context.Context, trigger string) (*dto.BatchSummaryDTO, error)
}

type CronHandler struct {
	runner BatchRunner
}

func NewCronHandler(runner BatchRunner) *CronHandler {
	return &CronHandler{
		runner: runner,
	}
}

// RefreshMetrics 外部调度器触发的全量刷新，与定时任务共用同一把锁
func (h *CronHandler) RefreshMetrics(c *gin.Context) {
	summary, err := h.runner.RunOnce(c.Request.Context(), consts.TriggerCron)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, summary)
}

package job

import (
	"Tracklight/internal/api/dto"
	"Tracklight/internal/pkg/consts"
	"Tracklight/internal/pkg/redis"
	"Tracklight/internal/service"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingRefresh struct {
	calls       int
	gotTrigger  string
	hadLock     bool
	ctxErr      error
	hasDeadline bool
	mr          *miniredis.Miniredis
}

func (c *countingRefresh) RefreshEntity(context.Context, uint64, uint64, bool, string) (*dto.RefreshResultDTO, error) {
	return nil, nil
}

func (c *countingRefresh) RefreshCampaign(context.Context, uint64, uint64, bool) (*dto.BatchSummaryDTO, error) {
	return nil, nil
}

func (c *countingRefresh) RefreshAllActive(ctx context.Context, trigger string) (*dto.BatchSummaryDTO, error) {
	c.calls++
	c.ctxErr = ctx.Err()
	_, c.hasDeadline = ctx.Deadline()
	c.gotTrigger = trigger
	c.hadLock = c.mr.Exists(consts.ScheduledRefreshLock)
	return &dto.BatchSummaryDTO{Total: 2, Succeeded: 2}, nil
}

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	redis.Rdb = goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redis.Rdb.Close() })
	return mr
}

func TestScheduledRefreshJob_RunsUnderLock(t *testing.T) {
	mr := setupRedis(t)
	svc := &countingRefresh{mr: mr}

	NewScheduledRefreshJob(svc, time.Minute).Run()

	require.Equal(t, 1, svc.calls)
	require.Equal(t, consts.TriggerScheduled, svc.gotTrigger)
	require.True(t, svc.hadLock)
	require.False(t, mr.Exists(consts.ScheduledRefreshLock))
}

func TestScheduledRefreshJob_SkipsWhenLocked(t *testing.T) {
	mr := setupRedis(t)
	require.NoError(t, mr.Set(consts.ScheduledRefreshLock, "other-instance"))
	svc := &countingRefresh{mr: mr}

	NewScheduledRefreshJob(svc, time.Minute).Run()

	require.Zero(t, svc.calls)
	got, err := mr.Get(consts.ScheduledRefreshLock)
	require.NoError(t, err)
	require.Equal(t, "other-instance", got)
}

func TestScheduledRefreshJob_RunOnceRefusesWhileLocked(t *testing.T) {
	mr := setupRedis(t)
	require.NoError(t, mr.Set(consts.ScheduledRefreshLock, "scheduled-run"))
	svc := &countingRefresh{mr: mr}

	summary, err := NewScheduledRefreshJob(svc, time.Minute).RunOnce(context.Background(), consts.TriggerCron)
	require.ErrorIs(t, err, service.ErrRefreshInProgress)
	require.Nil(t, summary)
	require.Zero(t, svc.calls)

	code, ok := service.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, service.TooManyRequests, code)
}

func TestScheduledRefreshJob_RunOnceOutlivesCallerCancel(t *testing.T) {
	mr := setupRedis(t)
	svc := &countingRefresh{mr: mr}

	ctx, cancel := context.WithCancel(context.Background())
	j := NewScheduledRefreshJob(&cancelingRefresh{countingRefresh: svc, cancel: cancel}, time.Minute)
	summary, err := j.RunOnce(ctx, consts.TriggerCron)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Total)

	require.Equal(t, consts.TriggerCron, svc.gotTrigger)
	require.True(t, svc.hadLock)
	require.NoError(t, svc.ctxErr)
	require.True(t, svc.hasDeadline)
	require.False(t, mr.Exists(consts.ScheduledRefreshLock))
}

// cancelingRefresh 模拟刷新开始后调用方断开
type cancelingRefresh struct {
	*countingRefresh
	cancel context.CancelFunc
}

func (c *cancelingRefresh) RefreshAllActive(ctx context.Context, trigger string) (*dto.BatchSummaryDTO, error) {
	c.cancel()
	return c.countingRefresh.RefreshAllActive(ctx, trigger)
}

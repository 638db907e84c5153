package service

import (
	"Tracklight/internal/api/config"
	"Tracklight/internal/api/dto"
	"Tracklight/internal/model"
	"Tracklight/internal/pkg/consts"
	"Tracklight/internal/pkg/metric"
	"Tracklight/internal/pkg/provider"
	"Tracklight/internal/pkg/util"
	"Tracklight/internal/repository"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/sourcegraph/conc/pool"
)

const (
	defaultBatchGroupSize    = 10
	defaultBatchErrorSamples = 10
)

// MetricsFetcher 按优先级依次尝试数据源，*provider.Chain 即为实现
type MetricsFetcher interface {
	Execute(ctx context.Context, ref provider.Reference, creds []provider.Credential) (*provider.RawResult, []provider.Attempt, error)
}

// SnapshotPublisher 快照提交后的领域事件出口
type SnapshotPublisher interface {
	Publish(ctx context.Context, event *dto.SnapshotEvent) error
}

type RefreshRecorder interface {
	ObserveRefresh(trigger, outcome string)
	SnapshotAppended(kind, provider string)
}

type RefreshService interface {
	// RefreshEntity 交互式刷新单个实体，返回刷新后的分析数据
	RefreshEntity(ctx context.Context, tenantID, entityID uint64, privileged bool, period string) (*dto.RefreshResultDTO, error)
	// RefreshCampaign 刷新活动下所有追踪中的实体，单个失败不影响整体
	RefreshCampaign(ctx context.Context, tenantID, campaignID uint64, privileged bool) (*dto.BatchSummaryDTO, error)
	// RefreshAllActive 全系统批量刷新，定时任务和 cron 接口使用
	RefreshAllActive(ctx context.Context, trigger string) (*dto.BatchSummaryDTO, error)
}

type refreshServiceImpl struct {
	entityRepo   repository.TrackedEntityRepo
	snapshotRepo repository.MetricSnapshotRepo
	credentials  CredentialResolver
	fetcher      MetricsFetcher
	analytics    AnalyticsService
	publisher    SnapshotPublisher
	recorder     RefreshRecorder
	cfg          config.RefreshConfig
	now          func() time.Time
}

func NewRefreshService(
	entityRepo repository.TrackedEntityRepo,
	snapshotRepo repository.MetricSnapshotRepo,
	credentials CredentialResolver,
	fetcher MetricsFetcher,
	analytics AnalyticsService,
	publisher SnapshotPublisher,
	recorder RefreshRecorder,
	cfg config.RefreshConfig,
) RefreshService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &refreshServiceImpl{
		entityRepo:   entityRepo,
		snapshotRepo: snapshotRepo,
		credentials:  credentials,
		fetcher:      fetcher,
		analytics:    analytics,
		publisher:    publisher,
		recorder:     recorder,
		cfg:          cfg,
		now:          time.Now,
	}
}

// refreshRequest 每个调用入口自带冷却窗口和特权标记
type refreshRequest struct {
	trigger    string
	privileged bool
	cooldown   func(kind model.EntityKind) time.Duration
}

func (s *refreshServiceImpl) interactiveCooldown(kind model.EntityKind) time.Duration {
	if kind == model.EntityKindProfile {
		return s.cfg.ProfileCooldown
	}
	return s.cfg.InteractiveCooldown
}

func (s *refreshServiceImpl) batchCooldown(model.EntityKind) time.Duration {
	return s.cfg.BatchCooldown
}

func (s *refreshServiceImpl) RefreshEntity(ctx context.Context, tenantID, entityID uint64, privileged bool, period string) (*dto.RefreshResultDTO, error) {
	entity, err := s.entityRepo.GetEntity(ctx, tenantID, entityID)
	if err != nil {
		log.ErrorContext(ctx, "load tracked entity failed", "entity_id", entityID, "err", err)
		return nil, UnExpectedError
	}
	if entity == nil {
		return nil, ErrEntityNotFound
	}
	if _, _, err = ResolvePeriod(entity.Kind, period); err != nil {
		return nil, err
	}

	req := refreshRequest{
		trigger:    consts.TriggerInteractive,
		privileged: privileged,
		cooldown:   s.interactiveCooldown,
	}
	snapshot, err := s.refreshOne(ctx, entity, req)
	s.recorder.ObserveRefresh(req.trigger, refreshOutcome(err))
	if err != nil {
		return nil, err
	}

	// 快照已写入，分析计算失败只降级为不带环比和序列的结果
	analytics, err := s.analytics.EntityAnalytics(ctx, entity, period)
	if err != nil {
		log.WarnContext(ctx, "compute analytics after refresh failed", "entity_id", entity.ID, "err", err)
		resolved, _, _ := ResolvePeriod(entity.Kind, period)
		analytics = &dto.AnalyticsDTO{
			Entity: toEntityMetricsDTO(entity),
			Period: resolved,
			Deltas: &dto.DeltaDTO{},
			Series: []*dto.DailyPointDTO{},
		}
	}
	return &dto.RefreshResultDTO{
		Provider:   snapshot.Provider,
		SnapshotID: snapshot.ID,
		Analytics:  analytics,
	}, nil
}

func (s *refreshServiceImpl) RefreshCampaign(ctx context.Context, tenantID, campaignID uint64, privileged bool) (*dto.BatchSummaryDTO, error) {
	entities, err := s.entityRepo.ListActiveByCampaign(ctx, tenantID, campaignID)
	if err != nil {
		log.ErrorContext(ctx, "list campaign entities failed", "campaign_id", campaignID, "err", err)
		return nil, UnExpectedError
	}
	return s.runBatch(ctx, entities, refreshRequest{
		trigger:    consts.TriggerCampaign,
		privileged: privileged,
		cooldown:   s.batchCooldown,
	}), nil
}

func (s *refreshServiceImpl) RefreshAllActive(ctx context.Context, trigger string) (*dto.BatchSummaryDTO, error) {
	entities, err := s.entityRepo.ListActive(ctx)
	if err != nil {
		log.ErrorContext(ctx, "list active entities failed", "err", err)
		return nil, UnExpectedError
	}
	return s.runBatch(ctx, entities, refreshRequest{
		trigger:    trigger,
		privileged: true,
		cooldown:   s.batchCooldown,
	}), nil
}

// runBatch 固定大小的并发分组，组间停顿，逐个统计结果
func (s *refreshServiceImpl) runBatch(ctx context.Context, entities []*model.TrackedEntity, req refreshRequest) *dto.BatchSummaryDTO {
	groupSize := s.cfg.BatchGroupSize
	if groupSize <= 0 {
		groupSize = defaultBatchGroupSize
	}
	maxSamples := s.cfg.BatchErrorSamples
	if maxSamples <= 0 {
		maxSamples = defaultBatchErrorSamples
	}

	summary := &dto.BatchSummaryDTO{Total: len(entities), Errors: make([]string, 0)}
	var mu sync.Mutex
	record := func(entityID uint64, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil:
			summary.Succeeded++
		case errors.Is(err, ErrRateLimited):
			summary.Skipped++
		default:
			summary.Failed++
			if len(summary.Errors) < maxSamples {
				summary.Errors = append(summary.Errors, fmt.Sprintf("%d: %s", entityID, err.Error()))
			}
		}
	}

	start := time.Now()
	for i := 0; i < len(entities); i += groupSize {
		if i > 0 && !s.pause(ctx) {
			for _, e := range entities[i:] {
				record(e.ID, ctx.Err())
			}
			break
		}

		group := entities[i:min(i+groupSize, len(entities))]
		p := pool.New().WithMaxGoroutines(len(group))
		for _, entity := range group {
			p.Go(func() {
				_, err := s.refreshOne(ctx, entity, req)
				s.recorder.ObserveRefresh(req.trigger, refreshOutcome(err))
				record(entity.ID, err)
			})
		}
		p.Wait()
	}

	log.InfoContext(ctx, "batch refresh finished",
		"trigger", req.trigger,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"latency", time.Since(start))
	return summary
}

func (s *refreshServiceImpl) pause(ctx context.Context) bool {
	if s.cfg.BatchGroupPause <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.cfg.BatchGroupPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// refreshOne 冷却检查 -> 凭据 -> 数据源链 -> 事务写入 -> 失效缓存 -> 发布事件
func (s *refreshServiceImpl) refreshOne(ctx context.Context, entity *model.TrackedEntity, req refreshRequest) (*model.MetricSnapshot, error) {
	now := s.now().UTC()
	window := req.cooldown(entity.Kind)
	if d := CheckCooldown(entity.LastMetricsUpdate, window, req.privileged, now); !d.Allowed {
		return nil, &RateLimitedError{RetryAfterMinutes: d.RetryAfterMinutes}
	}

	ref, err := provider.ParseReference(entity.Kind, entity.ExternalURL, entity.ExternalID)
	if err != nil {
		log.WarnContext(ctx, "tracked entity has no usable reference", "entity_id", entity.ID, "err", err)
		return nil, ErrInvalidReference
	}

	creds := s.credentials.Resolve(ctx, entity.TenantID)
	raw, attempts, err := s.fetcher.Execute(ctx, ref, creds)
	if err != nil {
		log.WarnContext(ctx, "refresh got no usable metrics",
			"entity_id", entity.ID, "kind", entity.Kind, "attempts", len(attempts), "err", err)
		if errors.Is(err, provider.ErrNotFound) {
			return nil, ErrUpstreamNotFound
		}
		return nil, ErrUpstreamUnavailable
	}

	counters, err := metric.Normalize(raw.Counters)
	if err != nil {
		return nil, ErrUpstreamUnavailable
	}
	snapshot := model.NewMetricSnapshot(entity.ID, now, string(raw.Provider), counters, metric.EngagementRate(counters))

	if err = s.snapshotRepo.Append(ctx, snapshot, entity.MetricsVersion); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, s.conflictError(ctx, entity, window, now)
		}
		log.ErrorContext(ctx, "append metric snapshot failed", "entity_id", entity.ID, "err", err)
		return nil, UnExpectedError
	}
	staleVersion := entity.MetricsVersion
	applySnapshot(entity, snapshot)

	s.analytics.Invalidate(ctx, entity.ID, staleVersion)
	s.recorder.SnapshotAppended(string(entity.Kind), snapshot.Provider)
	s.publish(ctx, entity, snapshot, req.trigger)

	log.InfoContext(ctx, "metric snapshot appended",
		"entity_id", entity.ID, "kind", entity.Kind, "provider", snapshot.Provider,
		"engagement_rate", snapshot.EngagementRate)
	return snapshot, nil
}

// conflictError 并发刷新已经提交，本次按对方的提交时间计算剩余冷却
func (s *refreshServiceImpl) conflictError(ctx context.Context, entity *model.TrackedEntity, window time.Duration, now time.Time) error {
	minutes := 1
	fresh, err := s.entityRepo.GetEntity(ctx, entity.TenantID, entity.ID)
	if err == nil && fresh != nil && fresh.LastMetricsUpdate != nil {
		minutes = max(minutes, util.CeilMinutes(window-now.Sub(*fresh.LastMetricsUpdate)))
	}
	log.InfoContext(ctx, "concurrent refresh detected, snapshot discarded", "entity_id", entity.ID)
	return &RateLimitedError{RetryAfterMinutes: minutes}
}

func (s *refreshServiceImpl) publish(ctx context.Context, entity *model.TrackedEntity, snapshot *model.MetricSnapshot, trigger string) {
	event := &dto.SnapshotEvent{}
	_ = copier.Copy(event, snapshot)
	event.EventID = uuid.NewString()
	event.TenantID = entity.TenantID
	event.CampaignID = entity.CampaignID
	event.Kind = string(entity.Kind)
	event.Trigger = trigger

	if err := s.publisher.Publish(ctx, event); err != nil {
		log.WarnContext(ctx, "publish snapshot event failed", "entity_id", entity.ID, "err", err)
	}
}

func applySnapshot(entity *model.TrackedEntity, snapshot *model.MetricSnapshot) {
	entity.Impressions = snapshot.Impressions
	entity.Likes = snapshot.Likes
	entity.Reshares = snapshot.Reshares
	entity.Replies = snapshot.Replies
	entity.Quotes = snapshot.Quotes
	entity.Bookmarks = snapshot.Bookmarks
	entity.Followers = snapshot.Followers
	entity.Following = snapshot.Following
	entity.EngagementRate = snapshot.EngagementRate
	capturedAt := snapshot.CapturedAt
	entity.LastMetricsUpdate = &capturedAt
	entity.MetricsVersion++
}

func refreshOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUpstreamNotFound):
		return "not_found"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "exhausted"
	case errors.Is(err, ErrInvalidReference):
		return "invalid_reference"
	default:
		return "error"
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, *dto.SnapshotEvent) error { return nil }

type noopRecorder struct{}

func (noopRecorder) ObserveRefresh(string, string) {}

func (noopRecorder) SnapshotAppended(string, string) {}

package service

import (
	"Tracklight/internal/api/dto"
	"Tracklight/internal/model"
	"Tracklight/internal/pkg/consts"
	"Tracklight/internal/pkg/metric"
	"Tracklight/internal/pkg/redis"
	"Tracklight/internal/pkg/util"
	"Tracklight/internal/repository"
	"context"
	log "log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/jinzhu/copier"
)

const maxExportDays = 366

var periodDays = map[string]int{
	consts.Period7d:   7,
	consts.Period14d:  14,
	consts.Period30d:  30,
	consts.Period90d:  90,
	consts.Period365d: 365,
}

// ResolvePeriod 空值按实体类型取默认：帖子 7 天，主页 30 天
func ResolvePeriod(kind model.EntityKind, raw string) (string, int, error) {
	if raw == "" {
		if kind == model.EntityKindProfile {
			raw = consts.Period30d
		} else {
			raw = consts.Period7d
		}
	}
	days, ok := periodDays[raw]
	if !ok {
		return "", 0, ErrParamInvalid
	}
	return raw, days, nil
}

type AnalyticsService interface {
	// GetEntityAnalytics 获取实体在指定周期的指标、环比与每日序列
	GetEntityAnalytics(ctx context.Context, tenantID, entityID uint64, period string) (*dto.AnalyticsDTO, error)
	// EntityAnalytics 已加载实体时直接计算，供刷新流程复用
	EntityAnalytics(ctx context.Context, entity *model.TrackedEntity, period string) (*dto.AnalyticsDTO, error)
	// ListSnapshots 导出原始快照，按时间升序
	ListSnapshots(ctx context.Context, tenantID, entityID uint64, query *dto.SnapshotQueryDTO) ([]*dto.SnapshotDTO, error)
	// Invalidate 刷新成功后清除该实体在旧版本下的各周期缓存
	Invalidate(ctx context.Context, entityID uint64, version int64)
}

type analyticsServiceImpl struct {
	entityRepo   repository.TrackedEntityRepo
	snapshotRepo repository.MetricSnapshotRepo
	cacheTTL     time.Duration
	now          func() time.Time
}

func NewAnalyticsService(entityRepo repository.TrackedEntityRepo, snapshotRepo repository.MetricSnapshotRepo, cacheTTL time.Duration) AnalyticsService {
	return &analyticsServiceImpl{
		entityRepo:   entityRepo,
		snapshotRepo: snapshotRepo,
		cacheTTL:     cacheTTL,
		now:          time.Now,
	}
}

func (s *analyticsServiceImpl) GetEntityAnalytics(ctx context.Context, tenantID, entityID uint64, period string) (*dto.AnalyticsDTO, error) {
	entity, err := s.loadEntity(ctx, tenantID, entityID)
	if err != nil {
		return nil, err
	}
	return s.EntityAnalytics(ctx, entity, period)
}

func (s *analyticsServiceImpl) EntityAnalytics(ctx context.Context, entity *model.TrackedEntity, period string) (*dto.AnalyticsDTO, error) {
	period, days, err := ResolvePeriod(entity.Kind, period)
	if err != nil {
		return nil, err
	}

	// 缓存键带 metrics_version，刷新前算出的结果即使晚写入也不会再被读到
	key := analyticsKey(entity.ID, entity.MetricsVersion, period)
	if val, err := redis.GetValue(ctx, key); err == nil && val != "" {
		var cached dto.AnalyticsDTO
		if json.Unmarshal([]byte(val), &cached) == nil {
			return &cached, nil
		}
	}

	res, err := s.compute(ctx, entity, period, days)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(res); err == nil {
		if err = redis.SetWithExpiration(ctx, key, data, s.cacheTTL); err != nil {
			log.WarnContext(ctx, "cache analytics failed", "entity_id", entity.ID, "err", err)
		}
	}
	return res, nil
}

// compute 当前周期 [now-P, now] 与上一周期 [now-2P, now-P) 各取最新一条比较
func (s *analyticsServiceImpl) compute(ctx context.Context, entity *model.TrackedEntity, period string, days int) (*dto.AnalyticsDTO, error) {
	to := s.now().UTC()
	from := to.AddDate(0, 0, -days)
	prevFrom := from.AddDate(0, 0, -days)

	current, err := s.snapshotRepo.LatestInPeriod(ctx, entity.ID, from, to)
	if err != nil {
		log.ErrorContext(ctx, "query current period snapshot failed", "entity_id", entity.ID, "err", err)
		return nil, UnExpectedError
	}
	previous, err := s.snapshotRepo.LatestInPeriod(ctx, entity.ID, prevFrom, from.Add(-time.Nanosecond))
	if err != nil {
		log.ErrorContext(ctx, "query previous period snapshot failed", "entity_id", entity.ID, "err", err)
		return nil, UnExpectedError
	}
	buckets, err := s.snapshotRepo.DailyBucketed(ctx, entity.ID, from, to)
	if err != nil {
		log.ErrorContext(ctx, "query daily buckets failed", "entity_id", entity.ID, "err", err)
		return nil, UnExpectedError
	}

	res := &dto.AnalyticsDTO{
		Entity: toEntityMetricsDTO(entity),
		Period: period,
		From:   from,
		To:     to,
		Deltas: &dto.DeltaDTO{},
		Series: make([]*dto.DailyPointDTO, 0, len(buckets)),
	}
	if current != nil {
		res.Deltas = computeDeltas(current.Counters(), previous)
	}
	for _, b := range buckets {
		point := &dto.DailyPointDTO{}
		_ = copier.Copy(point, b)
		point.Date = util.DayKey(b.CapturedAt)
		res.Series = append(res.Series, point)
	}
	return res, nil
}

func computeDeltas(current model.Counters, previous *model.MetricSnapshot) *dto.DeltaDTO {
	var prev model.Counters
	hasPrev := previous != nil
	if hasPrev {
		prev = previous.Counters()
	}
	return &dto.DeltaDTO{
		Impressions: metric.PeriodDelta(current.Impressions, prev.Impressions, hasPrev),
		Likes:       metric.PeriodDelta(current.Likes, prev.Likes, hasPrev),
		Reshares:    metric.PeriodDelta(current.Reshares, prev.Reshares, hasPrev),
		Replies:     metric.PeriodDelta(current.Replies, prev.Replies, hasPrev),
		Quotes:      metric.PeriodDelta(current.Quotes, prev.Quotes, hasPrev),
		Bookmarks:   metric.PeriodDelta(current.Bookmarks, prev.Bookmarks, hasPrev),
		Followers:   metric.PeriodDelta(current.Followers, prev.Followers, hasPrev),
		Following:   metric.PeriodDelta(current.Following, prev.Following, hasPrev),
	}
}

func (s *analyticsServiceImpl) ListSnapshots(ctx context.Context, tenantID, entityID uint64, query *dto.SnapshotQueryDTO) ([]*dto.SnapshotDTO, error) {
	entity, err := s.loadEntity(ctx, tenantID, entityID)
	if err != nil {
		return nil, err
	}
	from, to, err := s.exportRange(query)
	if err != nil {
		return nil, err
	}

	rows, err := s.snapshotRepo.ListRange(ctx, entity.ID, from, to)
	if err != nil {
		log.ErrorContext(ctx, "list snapshots failed", "entity_id", entity.ID, "err", err)
		return nil, UnExpectedError
	}
	res := make([]*dto.SnapshotDTO, 0, len(rows))
	if err = copier.Copy(&res, &rows); err != nil {
		return nil, UnExpectedError
	}
	return res, nil
}

// exportRange to 当天包含在内，缺省导出最近 30 天
func (s *analyticsServiceImpl) exportRange(query *dto.SnapshotQueryDTO) (time.Time, time.Time, error) {
	today := util.GetMidnight(s.now())
	toDay := today
	fromDay := today.AddDate(0, 0, -30)

	if query != nil && query.To != "" {
		t, err := time.ParseInLocation(time.DateOnly, query.To, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, ErrParamInvalid
		}
		toDay = t
		fromDay = t.AddDate(0, 0, -30)
	}
	if query != nil && query.From != "" {
		t, err := time.ParseInLocation(time.DateOnly, query.From, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, ErrParamInvalid
		}
		fromDay = t
	}
	if fromDay.After(toDay) || toDay.Sub(fromDay) > maxExportDays*24*time.Hour {
		return time.Time{}, time.Time{}, ErrParamInvalid
	}
	return fromDay, toDay.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func (s *analyticsServiceImpl) Invalidate(ctx context.Context, entityID uint64, version int64) {
	keys := make([]string, 0, len(consts.AnalyticsPeriods))
	for _, p := range consts.AnalyticsPeriods {
		keys = append(keys, analyticsKey(entityID, version, p))
	}
	if err := redis.DeleteKeys(ctx, keys...); err != nil {
		log.WarnContext(ctx, "invalidate analytics cache failed", "entity_id", entityID, "err", err)
	}
}

func (s *analyticsServiceImpl) loadEntity(ctx context.Context, tenantID, entityID uint64) (*model.TrackedEntity, error) {
	entity, err := s.entityRepo.GetEntity(ctx, tenantID, entityID)
	if err != nil {
		log.ErrorContext(ctx, "load tracked entity failed", "entity_id", entityID, "err", err)
		return nil, UnExpectedError
	}
	if entity == nil {
		return nil, ErrEntityNotFound
	}
	return entity, nil
}

func analyticsKey(entityID uint64, version int64, period string) string {
	return consts.EntityAnalyticsKey + strconv.FormatUint(entityID, 10) + ":v" + strconv.FormatInt(version, 10) + ":" + period
}

func toEntityMetricsDTO(entity *model.TrackedEntity) *dto.EntityMetricsDTO {
	res := &dto.EntityMetricsDTO{}
	_ = copier.Copy(res, entity)
	return res
}

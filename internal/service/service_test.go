package service

import (
	"Tracklight/internal/api/config"
	"Tracklight/internal/api/dto"
	"Tracklight/internal/model"
	"Tracklight/internal/pkg/database"
	"Tracklight/internal/pkg/provider"
	"Tracklight/internal/pkg/redis"
	"Tracklight/internal/repository"
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubClient 按实体 id 注入失败，其余返回固定计数
type stubClient struct {
	name     provider.Name
	needsKey bool
	counters model.Counters
	fail     map[string]error
	calls    atomic.Int32
}

func (c *stubClient) Name() provider.Name { return c.name }

func (c *stubClient) RequiresCredential() bool { return c.needsKey }

func (c *stubClient) Supports(model.EntityKind) bool { return true }

func (c *stubClient) FetchEntityMetrics(_ context.Context, ref provider.Reference, _ *provider.Credential) (*provider.RawResult, error) {
	c.calls.Add(1)
	if err, ok := c.fail[ref.ID()]; ok {
		return nil, err
	}
	if err, ok := c.fail["*"]; ok {
		return nil, err
	}
	return &provider.RawResult{Provider: c.name, Counters: c.counters, FetchedAt: time.Now()}, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []*dto.SnapshotEvent
}

func (p *capturePublisher) Publish(_ context.Context, event *dto.SnapshotEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type testEnv struct {
	entities  repository.TrackedEntityRepo
	snapshots repository.MetricSnapshotRepo
	creds     repository.ProviderCredentialRepo
	analytics *analyticsServiceImpl
	refresh   *refreshServiceImpl
	publisher *capturePublisher
	now       time.Time
}

var postCounters = model.Counters{Impressions: 1000, Likes: 40, Reshares: 10, Replies: 5, Quotes: 5}

func newTestEnv(t *testing.T, clients ...provider.Client) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	redis.Rdb = goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redis.Rdb.Close() })

	env := &testEnv{
		entities:  repository.NewTrackedEntityRepo(db),
		snapshots: repository.NewMetricSnapshotRepo(db),
		creds:     repository.NewProviderCredentialRepo(db),
		publisher: &capturePublisher{},
		now:       time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }

	env.analytics = NewAnalyticsService(env.entities, env.snapshots, 30*time.Minute).(*analyticsServiceImpl)
	env.analytics.now = clock

	env.refresh = NewRefreshService(
		env.entities,
		env.snapshots,
		NewCredentialResolver(env.creds, nil),
		provider.NewChain(nil, clients...),
		env.analytics,
		env.publisher,
		nil,
		config.RefreshConfig{
			InteractiveCooldown: 5 * time.Minute,
			ProfileCooldown:     15 * time.Minute,
			BatchGroupSize:      10,
			BatchErrorSamples:   10,
		},
	).(*refreshServiceImpl)
	env.refresh.now = clock
	return env
}

func (e *testEnv) addPost(t *testing.T, tenantID, campaignID uint64, postID string) *model.TrackedEntity {
	t.Helper()
	entity := &model.TrackedEntity{
		TenantID:    tenantID,
		CampaignID:  campaignID,
		Kind:        model.EntityKindPost,
		ExternalURL: "https://x.com/creator/status/" + postID,
		Status:      model.EntityStatusActive,
	}
	require.NoError(t, e.entities.CreateEntity(context.Background(), entity))
	return entity
}

func (e *testEnv) addKey(t *testing.T, tenantID uint64, name provider.Name) {
	t.Helper()
	require.NoError(t, e.creds.SaveCredential(context.Background(),
		&model.ProviderCredential{TenantID: tenantID, Provider: string(name), APIKey: "key-" + string(name)}))
}

func (e *testEnv) snapshotCount(t *testing.T, entityID uint64) int64 {
	t.Helper()
	n, err := e.snapshots.CountByEntity(context.Background(), entityID)
	require.NoError(t, err)
	return n
}

func primaryAndSyndication() (*stubClient, *stubClient) {
	return &stubClient{name: provider.NamePrimary, needsKey: true, counters: postCounters},
		&stubClient{name: provider.NameSyndication, counters: model.Counters{Likes: 3}}
}

func TestRefreshEntityAppendsSnapshot(t *testing.T) {
	primary, synd := primaryAndSyndication()
	env := newTestEnv(t, primary, synd)
	env.addKey(t, 1, provider.NamePrimary)
	entity := env.addPost(t, 1, 0, "1790000000000000001")

	res, err := env.refresh.RefreshEntity(context.Background(), 1, entity.ID, false, "")
	require.NoError(t, err)
	require.Equal(t, "primary", res.Provider)
	require.NotZero(t, res.SnapshotID)
	require.Equal(t, "7d", res.Analytics.Period)
	require.Equal(t, 6.0, res.Analytics.Entity.EngagementRate)
	require.EqualValues(t, 40, res.Analytics.Entity.Likes)
	require.Len(t, res.Analytics.Series, 1)
	require.Equal(t, 100.0, res.Analytics.Deltas.Likes)

	require.EqualValues(t, 1, env.snapshotCount(t, entity.ID))
	require.Equal(t, int32(0), synd.calls.Load())

	require.Len(t, env.publisher.events, 1)
	event := env.publisher.events[0]
	require.Equal(t, entity.ID, event.EntityID)
	require.EqualValues(t, 1, event.TenantID)
	require.Equal(t, "interactive", event.Trigger)
	require.Equal(t, 6.0, event.EngagementRate)
	require.NotEmpty(t, event.EventID)

	stored, err := env.entities.GetEntity(context.Background(), 1, entity.ID)
	require.NoError(t, err)
	require.True(t, stored.LastMetricsUpdate.Equal(env.now))
}

// brokenAnalytics 快照写入后分析计算失败
type brokenAnalytics struct {
	*analyticsServiceImpl
}

func (brokenAnalytics) EntityAnalytics(context.Context, *model.TrackedEntity, string) (*dto.AnalyticsDTO, error) {
	return nil, UnExpectedError
}

func TestRefreshSucceedsWhenAnalyticsFails(t *testing.T) {
	primary, synd := primaryAndSyndication()
	env := newTestEnv(t, primary, synd)
	env.addKey(t, 1, provider.NamePrimary)
	entity := env.addPost(t, 1, 0, "1790000000000000001")
	env.refresh.analytics = brokenAnalytics{env.analytics}

	res, err := env.refresh.RefreshEntity(context.Background(), 1, entity.ID, false, "")
	require.NoError(t, err)
	require.Equal(t, "primary", res.Provider)
	require.NotZero(t, res.SnapshotID)
	require.Equal(t, "7d", res.Analytics.Period)
	require.EqualValues(t, 40, res.Analytics.Entity.Likes)
	require.Equal(t, &dto.DeltaDTO{}, res.Analytics.Deltas)
	require.Empty(t, res.Analytics.Series)

	require.EqualValues(t, 1, env.snapshotCount(t, entity.ID))
	require.Len(t, env.publisher.events, 1)

	// 冷却期照常生效
	_, err = env.refresh.RefreshEntity(context.Background(), 1, entity.ID, false, "")
	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
}

func TestRefreshWithinCooldownIsRateLimited(t *testing.T) {
	primary, synd := primaryAndSyndication()
	env := newTestEnv(t, primary, synd)
	env.addKey(t, 1, provider.NamePrimary)
	entity := env.addPost(t, 1, 0, "42")
	ctx := context.Background()

	_, err := env.refresh.RefreshEntity(ctx, 1, entity.ID, false, "")
	require.NoError(t, err)

	env.now = env.now.Add(2 * time.Minute)
	_, err = env.refresh.RefreshEntity(ctx, 1, entity.ID, false, "")
	require.ErrorIs(t, err, ErrRateLimited)
	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
	require.Equal(t, 3, limited.RetryAfterMinutes)

	require.EqualValues(t, 1, env.snapshotCount(t, entity.ID))
	require.Equal(t, int32(1), primary.calls.Load())
}

func TestPrivilegedRefreshBypassesCooldown(t *testing.T) {
	primary, synd := primaryAndSyndication()
	env := newTestEnv(t, primary, synd)
	env.addKey(t, 1, provider.NamePrimary)
	entity := env.addPost(t, 1, 0, "42")
	ctx := context.Background()

	_, err := env.refresh.RefreshEntity(ctx, 1, entity.ID, false, "")
	require.NoError(t, err)
	env.now = env.now.Add(time.Minute)
	_, err = env.refresh.RefreshEntity(ctx, 1, entity.ID, true, "")
	require.NoError(t, err)
	require.EqualValues(t, 2, env.snapshotCount(t, entity.ID))
}

func TestProfileUsesItsOwnCooldown(t *testing.T) {
	primary, synd := primaryAndSyndication()
	env := newTestEnv(t, primary, synd)
	env.addKey(t, 1, provider.NamePrimary)
	profile := &model.TrackedEntity{TenantID: 1, Kind: model.EntityKindProfile, ExternalURL: "https://x.com/creator_one", Status: model.EntityStatusActive}
	require.NoError(t, env.entities.CreateEntity(context.Background(), profile))
	ctx := context.Background()

	res, err := env.refresh.RefreshEntity(ctx, 1, profile.ID, false, "")
	require.NoError(t, err)
	require.Equal(t, "30d", res.Analytics.Period)

	env.now = env.now.Add(10 * time.Minute)
	_, err = env.refresh.RefreshEntity(ctx, 1, profile.ID, false, "")
	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
	require.Equal(t, 5, limited.RetryAfterMinutes)
}

func TestExhaustedChainAppendsNothing(t *testing.T) {
	primary, synd := primaryAndSyndication()
	primary.fail = map[string]error{"*": provider.ErrTransient}
	synd.counters = model.Counters{}
	env := newTestEnv(t, primary, synd)
	env.addKey(t, 1, provider.NamePrimary)
	entity := env.addPost(t, 1, 0, "42")

	_, err := env.refresh.RefreshEntity(context.Background(), 1, entity.ID, false, "")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	require.Zero(t, env.snapshotCount(t, entity.ID))
	require.Empty(t, env.publisher.events)

	stored, err := env.entities.GetEntity(context.Background(), 1, entity.ID)
	require.NoError(t, err)
	require.Nil(t, stored.LastMetricsUpdate)
}

func TestUpstreamNotFoundIsDistinct(t *testing.T) {
	primary, synd := primaryAndSyndication()
	primary.fail = map[string]error{"42": provider.ErrNotFound}
	env := newTestEnv(t, primary, synd)
	env.addKey(t, 1, provider.NamePrimary)
	entity := env.addPost(t, 1, 0, "42")

	_, err := env.refresh.RefreshEntity(context.Background(), 1, entity.ID, false, "")
	require.ErrorIs(t, err, ErrUpstreamNotFound)
	require.Equal(t, int32(0), synd.calls.Load())
}

func TestRefreshScopedToTenant(t *testing.T) {
	primary, synd := primaryAndSyndication()
	env := newTestEnv(t, primary, synd)
	entity := env.addPost(t, 1, 0, "42")

	_, err := env.refresh.RefreshEntity(context.Background(), 2, entity.ID, true, "")
	require.ErrorIs(t, err, ErrEntityNotFound)
}

func TestInvalidPeriodRejectedBeforeProviderCall(t *testing.T) {
	primary, synd := primaryAndSyndication()
	env := newTestEnv(t, primary, synd)
	env.addKey(t, 1, provider.NamePrimary)
	entity := env.addPost(t, 1, 0, "42")

	_, err := env.refresh.RefreshEntity(context.Background(), 1, entity.ID, false, "8d")
	require.ErrorIs(t, err, ErrParamInvalid)
	require.Equal(t, int32(0), primary.calls.Load())
}

func TestInvalidReferenceNeverCallsProviders(t *testing.T) {
	primary, synd := primaryAndSyndication()
	env := newTestEnv(t, primary, synd)
	entity := &model.TrackedEntity{TenantID: 1, Kind: model.EntityKindPost, ExternalURL: "https://example.com/nope", Status: model.EntityStatusActive}
	require.NoError(t, env.entities.CreateEntity(context.Background(), entity))

	_, err := env.refresh.RefreshEntity(context.Background(), 1, entity.ID, false, "")
	require.ErrorIs(t, err, ErrInvalidReference)
	require.Equal(t, int32(0), synd.calls.Load())
}

func TestNoCredentialsFallsBackToSyndication(t *testing.T) {
	primary, synd := primaryAndSyndication()
	env := newTestEnv(t, primary, synd)
	entity := env.addPost(t, 1, 0, "42")

	res, err := env.refresh.RefreshEntity(context.Background(), 1, entity.ID, false, "")
	require.NoError(t, err)
	require.Equal(t, "syndication", res.Provider)
	require.Equal(t, int32(0), primary.calls.Load())
	require.Equal(t, 0.0, res.Analytics.Entity.EngagementRate)
}

func TestStaleConcurrentRefreshIsDiscarded(t *testing.T) {
	primary, synd := primaryAndSyndication()
	env := newTestEnv(t, primary, synd)
	env.addKey(t, 1, provider.NamePrimary)
	entity := env.addPost(t, 1, 0, "42")
	ctx := context.Background()

	// 两个请求读到同一版本的实体，先提交的生效
	stale, err := env.entities.GetEntity(ctx, 1, entity.ID)
	require.NoError(t, err)
	_, err = env.refresh.RefreshEntity(ctx, 1, entity.ID, false, "")
	require.NoError(t, err)

	_, err = env.refresh.refreshOne(ctx, stale, refreshRequest{
		trigger:  "interactive",
		cooldown: env.refresh.interactiveCooldown,
	})
	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
	require.Equal(t, 5, limited.RetryAfterMinutes)
	require.EqualValues(t, 1, env.snapshotCount(t, entity.ID))
	require.Len(t, env.publisher.events, 1)
}

func TestCampaignBatchIsolatesFailures(t *testing.T) {
	primary, synd := primaryAndSyndication()
	env := newTestEnv(t, primary, synd)
	env.addKey(t, 1, provider.NamePrimary)

	var failing []uint64
	for i := 1; i <= 12; i++ {
		id := strconv.Itoa(i)
		e := env.addPost(t, 1, 7, id)
		if i == 5 || i == 9 {
			primary.fail = mergeFail(primary.fail, id)
			synd.fail = mergeFail(synd.fail, id)
			failing = append(failing, e.ID)
		}
	}
	env.addPost(t, 1, 8, "99")

	summary, err := env.refresh.RefreshCampaign(context.Background(), 1, 7, false)
	require.NoError(t, err)
	require.Equal(t, 12, summary.Total)
	require.Equal(t, 10, summary.Succeeded)
	require.Equal(t, 2, summary.Failed)
	require.Zero(t, summary.Skipped)
	require.ElementsMatch(t, []string{
		formatSample(failing[0], ErrUpstreamUnavailable),
		formatSample(failing[1], ErrUpstreamUnavailable),
	}, summary.Errors)
}

func TestCampaignBatchSkipsEntitiesInCooldown(t *testing.T) {
	primary, synd := primaryAndSyndication()
	env := newTestEnv(t, primary, synd)
	env.refresh.cfg.BatchCooldown = 10 * time.Minute
	env.addKey(t, 1, provider.NamePrimary)
	recent := env.addPost(t, 1, 7, "1")
	env.addPost(t, 1, 7, "2")
	ctx := context.Background()

	_, err := env.refresh.RefreshEntity(ctx, 1, recent.ID, false, "")
	require.NoError(t, err)
	env.now = env.now.Add(time.Minute)

	summary, err := env.refresh.RefreshCampaign(ctx, 1, 7, false)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 1, summary.Skipped)
	require.Empty(t, summary.Errors)

	// 定时任务是特权调用，不受冷却限制
	all, err := env.refresh.RefreshAllActive(ctx, "cron")
	require.NoError(t, err)
	require.Equal(t, 2, all.Succeeded)
}

func TestBatchErrorSamplesAreBounded(t *testing.T) {
	primary, synd := primaryAndSyndication()
	primary.fail = map[string]error{"*": provider.ErrTransient}
	synd.fail = map[string]error{"*": provider.ErrTransient}
	env := newTestEnv(t, primary, synd)
	env.refresh.cfg.BatchErrorSamples = 3
	env.refresh.cfg.BatchGroupSize = 4
	env.refresh.cfg.BatchGroupPause = time.Millisecond
	for i := 0; i < 9; i++ {
		env.addPost(t, 1, 7, strconv.Itoa(i+1))
	}

	summary, err := env.refresh.RefreshAllActive(context.Background(), "scheduled")
	require.NoError(t, err)
	require.Equal(t, 9, summary.Failed)
	require.Len(t, summary.Errors, 3)
}

func mergeFail(m map[string]error, id string) map[string]error {
	if m == nil {
		m = map[string]error{}
	}
	m[id] = provider.ErrTransient
	return m
}

func formatSample(entityID uint64, err error) string {
	return strconv.FormatUint(entityID, 10) + ": " + err.Error()
}

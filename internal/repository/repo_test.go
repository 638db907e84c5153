package repository

import (
	"Tracklight/internal/model"
	"Tracklight/internal/pkg/database"
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 单连接，保证所有语句看到同一个内存库
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func seedEntity(t *testing.T, repo TrackedEntityRepo, e *model.TrackedEntity) *model.TrackedEntity {
	t.Helper()
	if e.Status == 0 {
		e.Status = model.EntityStatusActive
	}
	require.NoError(t, repo.CreateEntity(context.Background(), e))
	return e
}

func at(day, hour int) time.Time {
	return time.Date(2026, time.March, day, hour, 0, 0, 0, time.UTC)
}

func snap(entityID uint64, ts time.Time, likes int64) *model.MetricSnapshot {
	return model.NewMetricSnapshot(entityID, ts, "primary", model.Counters{Impressions: 1000, Likes: likes}, 0)
}

func TestTrackedEntityTenantScoping(t *testing.T) {
	db := newTestDB(t)
	repo := NewTrackedEntityRepo(db)
	ctx := context.Background()

	e := seedEntity(t, repo, &model.TrackedEntity{TenantID: 1, CampaignID: 10, Kind: model.EntityKindPost, ExternalID: "1"})
	seedEntity(t, repo, &model.TrackedEntity{TenantID: 1, CampaignID: 10, Kind: model.EntityKindPost, ExternalID: "2", Status: model.EntityStatusArchived})
	seedEntity(t, repo, &model.TrackedEntity{TenantID: 2, CampaignID: 10, Kind: model.EntityKindProfile, ExternalID: "someone"})

	got, err := repo.GetEntity(ctx, 1, e.ID)
	require.NoError(t, err)
	require.Equal(t, "1", got.ExternalID)

	got, err = repo.GetEntity(ctx, 2, e.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	byCampaign, err := repo.ListActiveByCampaign(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, byCampaign, 1)

	all, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestAppendUpdatesCacheAtomically(t *testing.T) {
	db := newTestDB(t)
	entities := NewTrackedEntityRepo(db)
	snapshots := NewMetricSnapshotRepo(db)
	ctx := context.Background()
	e := seedEntity(t, entities, &model.TrackedEntity{TenantID: 1, Kind: model.EntityKindPost, ExternalID: "1"})

	s := model.NewMetricSnapshot(e.ID, at(1, 10), "primary",
		model.Counters{Impressions: 1000, Likes: 40, Reshares: 10, Replies: 5, Quotes: 5}, 6)
	require.NoError(t, snapshots.Append(ctx, s, 0))
	require.NotZero(t, s.ID)

	got, err := entities.GetEntity(ctx, 1, e.ID)
	require.NoError(t, err)
	require.EqualValues(t, 40, got.Likes)
	require.EqualValues(t, 6, got.EngagementRate)
	require.EqualValues(t, 1, got.MetricsVersion)
	require.True(t, got.LastMetricsUpdate.Equal(at(1, 10)))
}

func TestAppendWithStaleVersionRollsBack(t *testing.T) {
	db := newTestDB(t)
	entities := NewTrackedEntityRepo(db)
	snapshots := NewMetricSnapshotRepo(db)
	ctx := context.Background()
	e := seedEntity(t, entities, &model.TrackedEntity{TenantID: 1, Kind: model.EntityKindPost, ExternalID: "1"})

	require.NoError(t, snapshots.Append(ctx, snap(e.ID, at(1, 10), 1), 0))
	err := snapshots.Append(ctx, snap(e.ID, at(1, 11), 2), 0)
	require.ErrorIs(t, err, ErrVersionConflict)

	count, err := snapshots.CountByEntity(ctx, e.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	got, err := entities.GetEntity(ctx, 1, e.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.Likes)
}

func TestLatestInPeriodRoundTrip(t *testing.T) {
	db := newTestDB(t)
	entities := NewTrackedEntityRepo(db)
	snapshots := NewMetricSnapshotRepo(db)
	ctx := context.Background()
	e := seedEntity(t, entities, &model.TrackedEntity{TenantID: 1, Kind: model.EntityKindPost, ExternalID: "1"})

	s := model.NewMetricSnapshot(e.ID, at(5, 9), "scraper",
		model.Counters{Impressions: 2000, Likes: 80, Reshares: 20, Replies: 4, Quotes: 1, Bookmarks: 3}, 5.25)
	require.NoError(t, snapshots.Append(ctx, s, 0))

	got, err := snapshots.LatestInPeriod(ctx, e.ID, at(5, 0), at(6, 0))
	require.NoError(t, err)
	require.Equal(t, s.Counters(), got.Counters())
	require.Equal(t, 5.25, got.EngagementRate)
	require.Equal(t, "scraper", got.Provider)

	none, err := snapshots.LatestInPeriod(ctx, e.ID, at(6, 0), at(7, 0))
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestDailyBucketedKeepsLatestPerDay(t *testing.T) {
	db := newTestDB(t)
	entities := NewTrackedEntityRepo(db)
	snapshots := NewMetricSnapshotRepo(db)
	ctx := context.Background()
	e := seedEntity(t, entities, &model.TrackedEntity{TenantID: 1, Kind: model.EntityKindPost, ExternalID: "1"})

	for i, s := range []*model.MetricSnapshot{
		snap(e.ID, at(3, 8), 10),
		snap(e.ID, at(3, 20), 30),
		snap(e.ID, at(3, 12), 20),
		snap(e.ID, at(4, 9), 40),
	} {
		require.NoError(t, snapshots.Append(ctx, s, int64(i)))
	}

	buckets, err := snapshots.DailyBucketed(ctx, e.ID, at(1, 0), at(10, 0))
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	require.EqualValues(t, 30, buckets[0].Likes)
	require.True(t, buckets[0].CapturedAt.Equal(at(3, 20)))
	require.EqualValues(t, 40, buckets[1].Likes)
}

func TestListEnabledCredentialsByPriority(t *testing.T) {
	db := newTestDB(t)
	repo := NewProviderCredentialRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.SaveCredential(ctx, &model.ProviderCredential{TenantID: 1, Provider: "scraper", APIKey: "s", Priority: 20}))
	require.NoError(t, repo.SaveCredential(ctx, &model.ProviderCredential{TenantID: 1, Provider: "primary", APIKey: "p", Priority: 10}))
	require.NoError(t, repo.SaveCredential(ctx, &model.ProviderCredential{TenantID: 1, Provider: "other", APIKey: "o", Status: model.CredentialStatusDisabled}))
	require.NoError(t, repo.SaveCredential(ctx, &model.ProviderCredential{TenantID: 2, Provider: "primary", APIKey: "x"}))

	creds, err := repo.ListEnabled(ctx, 1)
	require.NoError(t, err)
	require.Len(t, creds, 2)
	require.Equal(t, "primary", creds[0].Provider)
	require.Equal(t, "scraper", creds[1].Provider)
}

package repositories

import (
	"context"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agroguard/internal/database"
	"agroguard/internal/models"
)

var testDB database.Service

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:latest")
	if err != nil {
		log.Fatal().Err(err).Msg("Could not start mongodb container")
	}
	uri, err := container.ConnectionString(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not read mongodb connection string")
	}
	testDB, err = database.New(ctx, uri, "agroguard_repo_test")
	if err != nil {
		log.Fatal().Err(err).Msg("Could not connect to mongodb container")
	}
	if err := testDB.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("Could not create indexes")
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	if err := container.Terminate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Could not teardown mongodb container")
	}
	os.Exit(code)
}

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}
}

func TestUserRepository(t *testing.T) {
	skipShort(t)
	ctx := context.Background()
	repo := NewUserRepository(testDB)

	user := &models.User{Name: "Asha", Email: "asha@example.com", Password: "hash", Role: models.RoleUser}
	created, err := repo.Create(ctx, user)
	require.NoError(t, err)

	found, err := repo.FindByEmail(ctx, "asha@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.Create(ctx, &models.User{Name: "Other", Email: "asha@example.com", Password: "x", Role: models.RoleUser})
	assert.ErrorIs(t, err, ErrDuplicate)

	missing, err := repo.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	promoted, err := repo.SetRole(ctx, "asha@example.com", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)
}

func TestOTPRepositoryReplaceKeepsOne(t *testing.T) {
	skipShort(t)
	ctx := context.Background()
	repo := NewOTPRepository(testDB)
	email := "otp@example.com"

	_, err := repo.Replace(ctx, &models.OTP{Email: email, Code: "111111", ExpiresAt: time.Now().Add(5 * time.Minute)})
	require.NoError(t, err)
	second, err := repo.Replace(ctx, &models.OTP{Email: email, Code: "222222", ExpiresAt: time.Now().Add(5 * time.Minute)})
	require.NoError(t, err)

	n, err := repo.CountByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stale, err := repo.FindValid(ctx, email, "111111", time.Now())
	require.NoError(t, err)
	assert.Nil(t, stale)

	valid, err := repo.FindValid(ctx, email, "222222", time.Now())
	require.NoError(t, err)
	require.NotNil(t, valid)
	assert.Equal(t, second.ID, valid.ID)

	expired, err := repo.FindValid(ctx, email, "222222", time.Now().Add(6*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, expired)

	require.NoError(t, repo.Delete(ctx, valid.ID))
	n, err = repo.CountByEmail(ctx, email)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOTPRepositoryKeepsCallerTimestamp(t *testing.T) {
	skipShort(t)
	ctx := context.Background()
	repo := NewOTPRepository(testDB)
	issued := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)

	stored, err := repo.Replace(ctx, &models.OTP{Email: "clock@example.com", Code: "333333", CreatedAt: issued, ExpiresAt: issued.Add(5 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, issued, stored.CreatedAt)

	found, err := repo.FindValid(ctx, "clock@example.com", "333333", issued.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, issued.Equal(found.CreatedAt))

	unset, err := repo.Replace(ctx, &models.OTP{Email: "clock@example.com", Code: "444444", ExpiresAt: time.Now().Add(5 * time.Minute)})
	require.NoError(t, err)
	assert.False(t, unset.CreatedAt.IsZero())
}

func TestCatalogRepositoriesReferences(t *testing.T) {
	skipShort(t)
	ctx := context.Background()
	crops := NewCropRepository(testDB)
	pests := NewPestRepository(testDB)

	a, err := pests.Create(ctx, &models.Pest{Name: "Aphid"})
	require.NoError(t, err)
	b, err := pests.Create(ctx, &models.Pest{Name: "Bollworm"})
	require.NoError(t, err)

	ordered, err := pests.FindByIDs(ctx, []primitive.ObjectID{b.ID, primitive.NewObjectID(), a.ID})
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, "Bollworm", ordered[0].Name)
	assert.Equal(t, "Aphid", ordered[1].Name)

	crop, err := crops.Create(ctx, &models.Crop{Name: "Cotton", Category: "Fiber", CommonPests: []primitive.ObjectID{b.ID, a.ID}})
	require.NoError(t, err)
	require.NoError(t, pests.AddCrop(ctx, crop.CommonPests, crop.ID))
	require.NoError(t, pests.AddCrop(ctx, crop.CommonPests, crop.ID))

	got, err := pests.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{crop.ID}, got.AffectedCrops)

	require.NoError(t, pests.RemoveCrop(ctx, nil, crop.ID))
	got, err = pests.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, got.AffectedCrops)

	updated, err := crops.Update(ctx, crop.ID, bson.M{"category": "Cash"})
	require.NoError(t, err)
	assert.Equal(t, "Cash", updated.Category)
	assert.Equal(t, []primitive.ObjectID{b.ID, a.ID}, updated.CommonPests)

	byCategory, err := crops.FindByCategory(ctx, "Cash")
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)

	deleted, err := crops.Delete(ctx, crop.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	again, err := crops.Delete(ctx, crop.ID)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestFeedbackRepositoryListAndStats(t *testing.T) {
	skipShort(t)
	ctx := context.Background()
	repo := NewFeedbackRepository(testDB)

	seed := []models.Feedback{
		{Name: "a", Email: "a@x.io", Subject: "s", Message: "m", Rating: 5, Category: models.CategoryBugReport, Status: models.StatusPending},
		{Name: "b", Email: "b@x.io", Subject: "s", Message: "m", Rating: 3, Category: models.CategoryBugReport, Status: models.StatusPending},
		{Name: "c", Email: "c@x.io", Subject: "s", Message: "m", Rating: 4, Category: models.CategoryBugReport, Status: models.StatusResolved},
		{Name: "d", Email: "d@x.io", Subject: "s", Message: "m", Rating: 1, Category: models.CategoryGeneral, Status: models.StatusPending},
	}
	for i := range seed {
		_, err := repo.Create(ctx, &seed[i])
		require.NoError(t, err)
	}

	filter := models.FeedbackFilter{Status: models.StatusPending, Category: models.CategoryBugReport, Page: 1, Limit: 1, SortBy: "rating", SortOrder: "asc"}
	items, total, err := repo.List(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Rating)

	stats, err := repo.Statistics(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalFeedback)
	assert.InDelta(t, 4.0, stats.AverageRating, 0.001)
	assert.Equal(t, int64(2), stats.StatusCounts["pending"])
	assert.Equal(t, int64(1), stats.RatingCounts["5"])

	before := items[0].UpdatedAt
	time.Sleep(5 * time.Millisecond)
	updated, err := repo.Update(ctx, items[0].ID, bson.M{"status": models.StatusReviewed})
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewed, updated.Status)
	assert.True(t, updated.UpdatedAt.After(before))

	summary, err := repo.Summary(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, summary.Total, int64(4))
	assert.LessOrEqual(t, len(summary.RecentFeedback), 5)

	ok, err := repo.Delete(ctx, items[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

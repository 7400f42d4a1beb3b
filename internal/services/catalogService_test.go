package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agroguard/internal/models"
	"agroguard/internal/utils"
)

func newTestCatalog() (CatalogService, *fakeCropRepo, *fakePestRepo) {
	crops := &fakeCropRepo{}
	pests := &fakePestRepo{}
	return NewCatalogService(crops, pests), crops, pests
}

func pestNames(pests []models.Pest) []string {
	out := make([]string, 0, len(pests))
	for _, p := range pests {
		out = append(out, p.Name)
	}
	return out
}

func TestCreateCropPopulatesInStoredOrder(t *testing.T) {
	svc, _, pestRepo := newTestCatalog()
	ctx := context.Background()

	whitefly, err := svc.CreatePest(ctx, models.PestInput{Name: "Whitefly"})
	require.NoError(t, err)
	aphid, err := svc.CreatePest(ctx, models.PestInput{Name: "Aphid"})
	require.NoError(t, err)

	crop, err := svc.CreateCrop(ctx, models.CropInput{
		Name:        "Tomato",
		Category:    "Vegetables",
		CommonPests: []string{aphid.ID.Hex(), whitefly.ID.Hex()},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Aphid", "Whitefly"}, pestNames(crop.CommonPests))

	for _, p := range pestRepo.pests {
		assert.Contains(t, p.AffectedCrops, crop.ID, p.Name)
	}

	all, err := svc.ListCrops(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []string{"Aphid", "Whitefly"}, pestNames(all[0].CommonPests))
}

func TestCreateCropRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestCatalog()

	_, err := svc.CreateCrop(context.Background(), models.CropInput{Category: "Vegetables"})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.HasTag("name", "required"))

	_, err = svc.CreateCrop(context.Background(), models.CropInput{Name: "Tomato", Category: "Vegetables", CommonPests: []string{"not-an-id"}})
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.HasTag("commonPests", "mongodb"))
}

func TestUpdateCropSyncsPestLinks(t *testing.T) {
	svc, _, pestRepo := newTestCatalog()
	ctx := context.Background()

	a, _ := svc.CreatePest(ctx, models.PestInput{Name: "Aphid"})
	b, _ := svc.CreatePest(ctx, models.PestInput{Name: "Borer"})
	crop, err := svc.CreateCrop(ctx, models.CropInput{Name: "Maize", Category: "Cereals", CommonPests: []string{a.ID.Hex()}})
	require.NoError(t, err)

	next := []string{b.ID.Hex()}
	updated, err := svc.UpdateCrop(ctx, crop.ID, models.CropUpdate{CommonPests: &next})
	require.NoError(t, err)
	assert.Equal(t, []string{"Borer"}, pestNames(updated.CommonPests))
	assert.Equal(t, "Maize", updated.Name)

	aStored := pestRepo.find(a.ID)
	bStored := pestRepo.find(b.ID)
	assert.NotContains(t, aStored.AffectedCrops, crop.ID)
	assert.Contains(t, bStored.AffectedCrops, crop.ID)
}

func TestUpdateCropWithoutPestsLeavesLinks(t *testing.T) {
	svc, _, pestRepo := newTestCatalog()
	ctx := context.Background()

	a, _ := svc.CreatePest(ctx, models.PestInput{Name: "Aphid"})
	crop, err := svc.CreateCrop(ctx, models.CropInput{Name: "Maize", Category: "Cereals", CommonPests: []string{a.ID.Hex()}})
	require.NoError(t, err)

	name := "Sweet Corn"
	updated, err := svc.UpdateCrop(ctx, crop.ID, models.CropUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Sweet Corn", updated.Name)
	assert.Equal(t, []string{"Aphid"}, pestNames(updated.CommonPests))
	assert.Contains(t, pestRepo.find(a.ID).AffectedCrops, crop.ID)
}

func TestDeleteCropUnlinksPests(t *testing.T) {
	svc, _, pestRepo := newTestCatalog()
	ctx := context.Background()

	a, _ := svc.CreatePest(ctx, models.PestInput{Name: "Aphid"})
	crop, err := svc.CreateCrop(ctx, models.CropInput{Name: "Maize", Category: "Cereals", CommonPests: []string{a.ID.Hex()}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCrop(ctx, crop.ID))
	assert.Empty(t, pestRepo.find(a.ID).AffectedCrops)

	_, err = svc.GetCrop(ctx, crop.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteCrop(ctx, crop.ID), ErrNotFound)
}

func TestPestLifecycle(t *testing.T) {
	svc, cropRepo, _ := newTestCatalog()
	ctx := context.Background()

	crop, err := svc.CreateCrop(ctx, models.CropInput{Name: "Potato", Category: "Vegetables"})
	require.NoError(t, err)

	pest, err := svc.CreatePest(ctx, models.PestInput{
		Name:           "Colorado Potato Beetle",
		ScientificName: "Leptinotarsa decemlineata",
		AffectedCrops:  []string{crop.ID.Hex()},
	})
	require.NoError(t, err)
	require.Len(t, pest.AffectedCrops, 1)
	assert.Equal(t, "Potato", pest.AffectedCrops[0].Name)
	assert.Equal(t, []string{}, pest.Symptoms)
	assert.Contains(t, cropRepo.find(crop.ID).CommonPests, pest.ID)

	got, err := svc.GetPest(ctx, pest.ID)
	require.NoError(t, err)
	assert.Equal(t, "Leptinotarsa decemlineata", got.ScientificName)

	require.NoError(t, svc.DeletePest(ctx, pest.ID))
	assert.Empty(t, cropRepo.find(crop.ID).CommonPests)

	_, err = svc.GetPest(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCropsByCategory(t *testing.T) {
	svc, _, _ := newTestCatalog()
	ctx := context.Background()

	for _, in := range []models.CropInput{
		{Name: "Wheat", Category: "Cereals"},
		{Name: "Tomato", Category: "Vegetables"},
		{Name: "Rice", Category: "Cereals"},
	} {
		_, err := svc.CreateCrop(ctx, in)
		require.NoError(t, err)
	}

	cereals, err := svc.ListCropsByCategory(ctx, "Cereals")
	require.NoError(t, err)
	require.Len(t, cereals, 2)
	assert.Equal(t, "Wheat", cereals[0].Name)
	assert.Equal(t, "Rice", cereals[1].Name)

	none, err := svc.ListCropsByCategory(ctx, "Fruits")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDiffIDs(t *testing.T) {
	a, b, c := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	added, removed := diffIDs([]primitive.ObjectID{a, b}, []primitive.ObjectID{b, c})
	assert.Equal(t, []primitive.ObjectID{c}, added)
	assert.Equal(t, []primitive.ObjectID{a}, removed)

	added, removed = diffIDs(nil, nil)
	assert.NotNil(t, added)
	assert.NotNil(t, removed)
}

package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agroguard/internal/database"
	"agroguard/internal/models"
	"agroguard/internal/utils"
)

type CropRepository interface {
	Create(ctx context.Context, crop *models.Crop) (*models.Crop, error)
	FindAll(ctx context.Context) ([]models.Crop, error)
	FindByCategory(ctx context.Context, category string) ([]models.Crop, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Crop, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Crop, error)
	Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Crop, error)
	Delete(ctx context.Context, id primitive.ObjectID) (*models.Crop, error)
	AddPest(ctx context.Context, cropIDs []primitive.ObjectID, pestID primitive.ObjectID) error
	RemovePest(ctx context.Context, cropIDs []primitive.ObjectID, pestID primitive.ObjectID) error
	DeleteAll(ctx context.Context) error
}

type cropRepository struct {
	collection *mongo.Collection
}

func NewCropRepository(db database.Service) CropRepository {
	return &cropRepository{collection: db.Collection(database.CropsCollection)}
}

func (r *cropRepository) Create(ctx context.Context, crop *models.Crop) (_ *models.Crop, err error) {
	done := utils.TrackQuery("create", "crop")
	defer func() { done(err) }()

	crop.ID = primitive.NewObjectID()
	crop.CreatedAt = time.Now()
	if crop.CommonPests == nil {
		crop.CommonPests = []primitive.ObjectID{}
	}
	if _, err = r.collection.InsertOne(ctx, crop); err != nil {
		log.Error().Err(err).Str("name", crop.Name).Msg("Failed to insert crop")
		return nil, fmt.Errorf("failed to create crop: %w", err)
	}
	return crop, nil
}

func (r *cropRepository) FindAll(ctx context.Context) (crops []models.Crop, err error) {
	done := utils.TrackQuery("findAll", "crop")
	defer func() { done(err) }()

	return findMany[models.Crop](ctx, r.collection, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (r *cropRepository) FindByCategory(ctx context.Context, category string) (crops []models.Crop, err error) {
	done := utils.TrackQuery("findByCategory", "crop")
	defer func() { done(err) }()

	return findMany[models.Crop](ctx, r.collection, bson.M{"category": category}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (r *cropRepository) FindByID(ctx context.Context, id primitive.ObjectID) (crop *models.Crop, err error) {
	done := utils.TrackQuery("findById", "crop")
	defer func() { done(err) }()

	return findOne[models.Crop](ctx, r.collection, bson.M{"_id": id})
}

// FindByIDs returns the crops in the order of ids. Unknown ids are skipped.
func (r *cropRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (crops []models.Crop, err error) {
	done := utils.TrackQuery("findByIds", "crop")
	defer func() { done(err) }()

	if len(ids) == 0 {
		return []models.Crop{}, nil
	}
	found, err := findMany[models.Crop](ctx, r.collection, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return orderByIDs(ids, found, func(c models.Crop) primitive.ObjectID { return c.ID }), nil
}

func (r *cropRepository) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (crop *models.Crop, err error) {
	done := utils.TrackQuery("update", "crop")
	defer func() { done(err) }()

	if len(fields) == 0 {
		return findOne[models.Crop](ctx, r.collection, bson.M{"_id": id})
	}
	crop, err = findOneAndUpdate[models.Crop](ctx, r.collection, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		log.Error().Err(err).Str("crop_id", id.Hex()).Msg("Error updating crop")
		return nil, fmt.Errorf("failed to update crop: %w", err)
	}
	return crop, nil
}

func (r *cropRepository) Delete(ctx context.Context, id primitive.ObjectID) (crop *models.Crop, err error) {
	done := utils.TrackQuery("delete", "crop")
	defer func() { done(err) }()

	return findOneAndDelete[models.Crop](ctx, r.collection, bson.M{"_id": id})
}

func (r *cropRepository) AddPest(ctx context.Context, cropIDs []primitive.ObjectID, pestID primitive.ObjectID) (err error) {
	done := utils.TrackQuery("addPest", "crop")
	defer func() { done(err) }()

	if len(cropIDs) == 0 {
		return nil
	}
	_, err = r.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": cropIDs}},
		bson.M{"$addToSet": bson.M{"common_pests": pestID}})
	return err
}

// RemovePest pulls pestID from the given crops, or from every crop when
// cropIDs is nil.
func (r *cropRepository) RemovePest(ctx context.Context, cropIDs []primitive.ObjectID, pestID primitive.ObjectID) (err error) {
	done := utils.TrackQuery("removePest", "crop")
	defer func() { done(err) }()

	filter := bson.M{"common_pests": pestID}
	if cropIDs != nil {
		if len(cropIDs) == 0 {
			return nil
		}
		filter["_id"] = bson.M{"$in": cropIDs}
	}
	_, err = r.collection.UpdateMany(ctx, filter, bson.M{"$pull": bson.M{"common_pests": pestID}})
	return err
}

func (r *cropRepository) DeleteAll(ctx context.Context) (err error) {
	done := utils.TrackQuery("deleteAll", "crop")
	defer func() { done(err) }()

	_, err = r.collection.DeleteMany(ctx, bson.M{})
	return err
}

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

type PestRepository interface {
	Create(ctx context.Context, pest *models.Pest) (*models.Pest, error)
	FindAll(ctx context.Context) ([]models.Pest, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Pest, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Pest, error)
	Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Pest, error)
	Delete(ctx context.Context, id primitive.ObjectID) (*models.Pest, error)
	AddCrop(ctx context.Context, pestIDs []primitive.ObjectID, cropID primitive.ObjectID) error
	RemoveCrop(ctx context.Context, pestIDs []primitive.ObjectID, cropID primitive.ObjectID) error
	DeleteAll(ctx context.Context) error
}

type pestRepository struct {
	collection *mongo.Collection
}

func NewPestRepository(db database.Service) PestRepository {
	return &pestRepository{collection: db.Collection(database.PestsCollection)}
}

func (r *pestRepository) Create(ctx context.Context, pest *models.Pest) (_ *models.Pest, err error) {
	done := utils.TrackQuery("create", "pest")
	defer func() { done(err) }()

	pest.ID = primitive.NewObjectID()
	pest.CreatedAt = time.Now()
	if pest.AffectedCrops == nil {
		pest.AffectedCrops = []primitive.ObjectID{}
	}
	if _, err = r.collection.InsertOne(ctx, pest); err != nil {
		log.Error().Err(err).Str("name", pest.Name).Msg("Failed to insert pest")
		return nil, fmt.Errorf("failed to create pest: %w", err)
	}
	return pest, nil
}

func (r *pestRepository) FindAll(ctx context.Context) (pests []models.Pest, err error) {
	done := utils.TrackQuery("findAll", "pest")
	defer func() { done(err) }()

	return findMany[models.Pest](ctx, r.collection, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
}

func (r *pestRepository) FindByID(ctx context.Context, id primitive.ObjectID) (pest *models.Pest, err error) {
	done := utils.TrackQuery("findById", "pest")
	defer func() { done(err) }()

	return findOne[models.Pest](ctx, r.collection, bson.M{"_id": id})
}

// FindByIDs returns the pests in the order of ids. Unknown ids are skipped.
func (r *pestRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (pests []models.Pest, err error) {
	done := utils.TrackQuery("findByIds", "pest")
	defer func() { done(err) }()

	if len(ids) == 0 {
		return []models.Pest{}, nil
	}
	found, err := findMany[models.Pest](ctx, r.collection, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return orderByIDs(ids, found, func(p models.Pest) primitive.ObjectID { return p.ID }), nil
}

func (r *pestRepository) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (pest *models.Pest, err error) {
	done := utils.TrackQuery("update", "pest")
	defer func() { done(err) }()

	if len(fields) == 0 {
		return findOne[models.Pest](ctx, r.collection, bson.M{"_id": id})
	}
	pest, err = findOneAndUpdate[models.Pest](ctx, r.collection, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		log.Error().Err(err).Str("pest_id", id.Hex()).Msg("Error updating pest")
		return nil, fmt.Errorf("failed to update pest: %w", err)
	}
	return pest, nil
}

func (r *pestRepository) Delete(ctx context.Context, id primitive.ObjectID) (pest *models.Pest, err error) {
	done := utils.TrackQuery("delete", "pest")
	defer func() { done(err) }()

	return findOneAndDelete[models.Pest](ctx, r.collection, bson.M{"_id": id})
}

func (r *pestRepository) AddCrop(ctx context.Context, pestIDs []primitive.ObjectID, cropID primitive.ObjectID) (err error) {
	done := utils.TrackQuery("addCrop", "pest")
	defer func() { done(err) }()

	if len(pestIDs) == 0 {
		return nil
	}
	_, err = r.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": pestIDs}},
		bson.M{"$addToSet": bson.M{"affected_crops": cropID}})
	return err
}

// RemoveCrop pulls cropID from the given pests, or from every pest when
// pestIDs is nil.
func (r *pestRepository) RemoveCrop(ctx context.Context, pestIDs []primitive.ObjectID, cropID primitive.ObjectID) (err error) {
	done := utils.TrackQuery("removeCrop", "pest")
	defer func() { done(err) }()

	filter := bson.M{"affected_crops": cropID}
	if pestIDs != nil {
		if len(pestIDs) == 0 {
			return nil
		}
		filter["_id"] = bson.M{"$in": pestIDs}
	}
	_, err = r.collection.UpdateMany(ctx, filter, bson.M{"$pull": bson.M{"affected_crops": cropID}})
	return err
}

func (r *pestRepository) DeleteAll(ctx context.Context) (err error) {
	done := utils.TrackQuery("deleteAll", "pest")
	defer func() { done(err) }()

	_, err = r.collection.DeleteMany(ctx, bson.M{})
	return err
}
